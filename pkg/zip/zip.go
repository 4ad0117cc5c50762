// Package zip bundles in-memory files into a zip archive.
package zip

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"time"
)

// Entry is one file in an archive.
type Entry struct {
	Name     string
	Data     []byte
	Modified time.Time
}

// Write streams entries as a zip archive to w. Entries with an empty name are
// skipped.
func Write(w io.Writer, entries []Entry) error {
	zw := zip.NewWriter(w)
	for _, entry := range entries {
		if entry.Name == "" {
			continue
		}
		header := &zip.FileHeader{Name: entry.Name, Method: zip.Deflate}
		if !entry.Modified.IsZero() {
			header.Modified = entry.Modified
		}
		fw, err := zw.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("zip: create %s: %w", entry.Name, err)
		}
		if _, err := fw.Write(entry.Data); err != nil {
			return fmt.Errorf("zip: write %s: %w", entry.Name, err)
		}
	}
	return zw.Close()
}

// Archive is Write into a byte slice.
func Archive(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, entries); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
