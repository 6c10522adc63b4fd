package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestMeasureFootprint(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "tg_results.db")
	writeFile(t, db, "hello")
	writeFile(t, db+"-wal", "abc")
	writeFile(t, db+"-shm", "z")
	writeFile(t, filepath.Join(dir, "index", "store", "seg"), "ab")
	writeFile(t, filepath.Join(dir, "index", "meta"), "c")

	fp, err := MeasureFootprint(db, filepath.Join(dir, "index"))
	if err != nil {
		t.Fatal(err)
	}
	if fp.DatabaseBytes != 9 {
		t.Errorf("DatabaseBytes = %d, want 9", fp.DatabaseBytes)
	}
	if fp.IndexBytes != 3 {
		t.Errorf("IndexBytes = %d, want 3", fp.IndexBytes)
	}
	if fp.Total() != 12 {
		t.Errorf("Total = %d, want 12", fp.Total())
	}
}

func TestMeasureFootprint_Missing(t *testing.T) {
	dir := t.TempDir()
	fp, err := MeasureFootprint(filepath.Join(dir, "none.db"), "")
	if err != nil {
		t.Fatal(err)
	}
	if fp.Total() != 0 {
		t.Errorf("Total = %d, want 0", fp.Total())
	}
}

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()
	f1 := filepath.Join(dir, "f1.txt")
	writeFile(t, f1, "hello")
	sub := filepath.Join(dir, "sub")
	writeFile(t, filepath.Join(sub, "a"), "ab")

	tests := []struct {
		name  string
		paths []string
		want  int64
	}{
		{"file", []string{f1}, 5},
		{"dir", []string{sub}, 2},
		{"file and dir", []string{f1, sub}, 7},
		{"missing skipped", []string{f1, filepath.Join(dir, "nonexistent")}, 5},
		{"empty skipped", []string{"", sub}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DiskUsageBytes(tt.paths...)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %d bytes, want %d", got, tt.want)
			}
		})
	}
}
