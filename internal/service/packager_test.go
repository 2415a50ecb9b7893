package service

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture %s: %v", name, err)
	}
	return path
}

func TestBuildArchive(t *testing.T) {
	dir := t.TempDir()
	entries := []Entry{
		{Name: "a.webp", Path: writeFixture(t, dir, "f1", "first")},
		{Name: "b.webp", Path: writeFixture(t, dir, "f2", "second")},
	}
	archivePath := filepath.Join(dir, "out.zip")

	n, err := BuildArchive(archivePath, entries)
	if err != nil {
		t.Fatalf("BuildArchive() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("BuildArchive() = %d, want 2", n)
	}

	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer zr.Close()
	if len(zr.File) != 2 {
		t.Fatalf("archive has %d entries, want 2", len(zr.File))
	}
	for i, want := range []string{"a.webp", "b.webp"} {
		if zr.File[i].Name != want {
			t.Fatalf("entry %d = %q, want %q", i, zr.File[i].Name, want)
		}
	}

	rc, err := zr.File[1].Open()
	if err != nil {
		t.Fatalf("open entry: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read entry: %v", err)
	}
	if string(data) != "second" {
		t.Fatalf("entry content = %q, want %q", data, "second")
	}
}

func TestBuildArchiveSuffixesCollisions(t *testing.T) {
	dir := t.TempDir()
	entries := []Entry{
		{Name: "x.webp", Path: writeFixture(t, dir, "f1", "one")},
		{Name: "x.webp", Path: writeFixture(t, dir, "f2", "two")},
		{Name: "x.webp", Path: writeFixture(t, dir, "f3", "three")},
	}
	archivePath := filepath.Join(dir, "out.zip")

	if _, err := BuildArchive(archivePath, entries); err != nil {
		t.Fatalf("BuildArchive() error = %v", err)
	}
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer zr.Close()
	want := []string{"x.webp", "x-1.webp", "x-2.webp"}
	for i, w := range want {
		if zr.File[i].Name != w {
			t.Fatalf("entry %d = %q, want %q", i, zr.File[i].Name, w)
		}
	}
}

func TestBuildArchiveEmpty(t *testing.T) {
	if _, err := BuildArchive(filepath.Join(t.TempDir(), "out.zip"), nil); err == nil {
		t.Fatal("BuildArchive() succeeded with no entries")
	}
}

func TestBuildArchiveMissingFile(t *testing.T) {
	entries := []Entry{{Name: "gone.webp", Path: filepath.Join(t.TempDir(), "missing")}}
	if _, err := BuildArchive(filepath.Join(t.TempDir(), "out.zip"), entries); err == nil {
		t.Fatal("BuildArchive() succeeded with a missing source file")
	}
}
