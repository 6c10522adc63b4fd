package normalize

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Evgen-rus/Tg-mtproto/internal/models"
)

func TestNormalize_acceptsAndPassesThrough(t *testing.T) {
	f := &models.Fields{
		INN: models.Ptr("7801234567"),
		CompanyDetails: models.CompanyDetails{
			CompanyName: models.Ptr("ООО \"Ромашка\""),
			Revenue2024: models.Ptr(int64(1000000)),
		},
		RawText: "**ООО \"Ромашка\"**\nИНН 7801234567",
	}
	rec, err := NewNormalizer().Normalize(f)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	want := &models.Record{
		INN:            "7801234567",
		CompanyDetails: f.CompanyDetails,
		RawText:        f.RawText,
	}
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
	if rec.Income2024 != nil || rec.Founders != nil {
		t.Error("absent fields must stay absent")
	}
}

func TestNormalize_rejections(t *testing.T) {
	tests := []struct {
		name   string
		fields *models.Fields
	}{
		{"nil fields", nil},
		{"missing inn", &models.Fields{RawText: "text"}},
		{"empty inn", &models.Fields{INN: models.Ptr(""), RawText: "text"}},
		{"missing raw text", &models.Fields{INN: models.Ptr("7801234567")}},
		{"inn wrong length", &models.Fields{INN: models.Ptr("78012345678"), RawText: "text"}},
		{"inn not digits", &models.Fields{INN: models.Ptr("78012345ab"), RawText: "text"}},
	}
	n := NewNormalizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := n.Normalize(tt.fields)
			if !errors.Is(err, ErrRejected) {
				t.Errorf("expected ErrRejected, got %v", err)
			}
			if rec != nil {
				t.Errorf("rejected reply should not produce a record: %+v", rec)
			}
		})
	}
}

func TestIsINN(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"7801234567", true},
		{"780419031060", true},
		{"78012345671", false},
		{"", false},
		{"+780123456", false},
		{"７８０１２３４５６７", false},
	}
	for _, tt := range tests {
		if got := IsINN(tt.in); got != tt.want {
			t.Errorf("IsINN(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
