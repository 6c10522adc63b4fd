package correlate

import (
	"sync"
	"testing"
)

func TestPending_RecordResolve(t *testing.T) {
	p := NewPending()
	if _, ok := p.Resolve("7801234567"); ok {
		t.Fatal("empty map should not resolve")
	}

	p.RecordPending("7801234567", 1)
	p.RecordPending("7801234568", 2)
	p.RecordPending("7801234567", 3)

	if id, ok := p.Resolve("7801234567"); !ok || id != 3 {
		t.Errorf("Resolve = %d, %v; want latest query 3", id, ok)
	}
	if id, ok := p.Resolve("7801234567"); !ok || id != 3 {
		t.Errorf("second Resolve = %d, %v; entry should be kept", id, ok)
	}
	if p.Len() != 2 {
		t.Errorf("Len = %d, want 2", p.Len())
	}
}

func TestPending_Concurrent(t *testing.T) {
	p := NewPending()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p.RecordPending("7801234567", int64(i))
			p.Resolve("7801234567")
		}(i)
	}
	wg.Wait()
	if p.Len() != 1 {
		t.Errorf("Len = %d, want 1", p.Len())
	}
}

func TestCommandINN(t *testing.T) {
	tests := []struct {
		name    string
		command string
		prefix  string
		want    string
		wantOK  bool
	}{
		{"ten digits", "/inn 7801234567", "", "7801234567", true},
		{"twelve digits", "/inn 780419031060", "", "780419031060", true},
		{"upper case prefix", "/INN 7801234567", "", "7801234567", true},
		{"surrounding space", "  /inn   7801234567  ", "", "7801234567", true},
		{"trailing words", "/inn 7801234567 please", "", "7801234567", true},
		{"eleven digits", "/inn 78012345671", "", "", false},
		{"thirteen digits", "/inn 7801234567123", "", "", false},
		{"no argument", "/inn", "", "", false},
		{"glued argument", "/inn7801234567", "", "", false},
		{"other command", "/start", "", "", false},
		{"plain text", "7801234567", "", "", false},
		{"custom prefix", "/company 7801234567", "/company", "7801234567", true},
		{"default prefix not custom", "/inn 7801234567", "/company", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CommandINN(tt.command, tt.prefix)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("CommandINN(%q) = %q, %v; want %q, %v", tt.command, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
