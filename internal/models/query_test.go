package models

import (
	"testing"
)

func TestCommandInput_Validate(t *testing.T) {
	tests := []struct {
		name     string
		input    *CommandInput
		wantErr  bool
		wantText string
	}{
		{"empty command", &CommandInput{Text: ""}, true, ""},
		{"blank command", &CommandInput{Text: "   \t"}, true, ""},
		{"trims surrounding space", &CommandInput{Text: "  /inn 7801234567 \n"}, false, "/inn 7801234567"},
		{"plain text passes", &CommandInput{Text: "/start"}, false, "/start"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && tt.input.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", tt.input.Text, tt.wantText)
			}
		})
	}
}
