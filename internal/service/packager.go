package service

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Entry is one converted file to package: its archive entry name and the
// intermediate file on disk.
type Entry struct {
	Name string
	Path string
}

// BuildArchive writes entries into a ZIP at archivePath, in the given order.
// Duplicate entry names get a numeric suffix before the extension. Returns
// the number of entries written; any write error aborts the archive.
func BuildArchive(archivePath string, entries []Entry) (int, error) {
	if len(entries) == 0 {
		return 0, fmt.Errorf("no files to archive")
	}
	zipFile, err := os.Create(archivePath)
	if err != nil {
		return 0, err
	}
	defer zipFile.Close()
	zipWriter := zip.NewWriter(zipFile)
	defer zipWriter.Close()

	seen := make(map[string]int)
	written := 0
	for _, e := range entries {
		name := uniqueName(seen, e.Name)
		w, err := zipWriter.Create(name)
		if err != nil {
			return written, fmt.Errorf("create zip entry %s: %w", name, err)
		}
		f, err := os.Open(e.Path)
		if err != nil {
			return written, fmt.Errorf("open %s: %w", e.Name, err)
		}
		_, err = io.Copy(w, f)
		f.Close()
		if err != nil {
			return written, fmt.Errorf("write zip entry %s: %w", name, err)
		}
		written++
	}
	if err := zipWriter.Close(); err != nil {
		return written, err
	}
	return written, nil
}

// uniqueName disambiguates repeated entry names: the second "a.webp" becomes
// "a-1.webp", the third "a-2.webp".
func uniqueName(seen map[string]int, name string) string {
	n := seen[name]
	seen[name] = n + 1
	if n == 0 {
		return name
	}
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), n, ext)
}
