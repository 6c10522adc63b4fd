package storage

import (
	"os"
	"path/filepath"
)

// sqliteSidecars are the files SQLite keeps next to a WAL-mode database.
var sqliteSidecars = []string{"-wal", "-shm"}

// Footprint reports on-disk sizes of the database (with its WAL sidecars) and the search index.
type Footprint struct {
	DatabaseBytes int64 `json:"database_bytes"`
	IndexBytes    int64 `json:"index_bytes"`
}

// Total returns the combined size.
func (f Footprint) Total() int64 {
	return f.DatabaseBytes + f.IndexBytes
}

// MeasureFootprint sums the database file, its -wal/-shm files and the index directory.
// Missing paths count as zero.
func MeasureFootprint(dbPath, indexPath string) (Footprint, error) {
	var fp Footprint
	if dbPath != "" {
		paths := []string{dbPath}
		for _, suffix := range sqliteSidecars {
			paths = append(paths, dbPath+suffix)
		}
		n, err := DiskUsageBytes(paths...)
		if err != nil {
			return fp, err
		}
		fp.DatabaseBytes = n
	}
	n, err := DiskUsageBytes(indexPath)
	if err != nil {
		return fp, err
	}
	fp.IndexBytes = n
	return fp, nil
}

// DiskUsageBytes returns the total size in bytes of the given paths.
// Each path may be a file or a directory (recursively summed).
// Missing paths and empty strings are skipped.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		if !info.IsDir() {
			total += info.Size()
			continue
		}
		err = filepath.Walk(p, func(_ string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !fi.IsDir() {
				total += fi.Size()
			}
			return nil
		})
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}
