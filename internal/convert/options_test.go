package convert

import (
	"errors"
	"testing"
)

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"webp", "jpeg", "png", "avif", "pdf", "docx"} {
		f, err := ParseFormat(s)
		if err != nil {
			t.Fatalf("ParseFormat(%q) error = %v", s, err)
		}
		if string(f) != s {
			t.Fatalf("ParseFormat(%q) = %q", s, f)
		}
	}
	for _, s := range []string{"", "gif", "tiff", "WEBP"} {
		if _, err := ParseFormat(s); !errors.Is(err, ErrInvalidOptions) {
			t.Fatalf("ParseFormat(%q) error = %v, want ErrInvalidOptions", s, err)
		}
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"ok", Options{Format: FormatWebP, Quality: 85}, false},
		{"min quality", Options{Format: FormatJPEG, Quality: MinQuality}, false},
		{"max quality", Options{Format: FormatPNG, Quality: MaxQuality}, false},
		{"quality too low", Options{Format: FormatWebP, Quality: 9}, true},
		{"quality too high", Options{Format: FormatWebP, Quality: 101}, true},
		{"unknown format", Options{Format: "bmp", Quality: 85}, true},
		{"negative width", Options{Format: FormatWebP, Quality: 85, MaxWidth: -1}, true},
		{"negative height", Options{Format: FormatWebP, Quality: 85, MaxHeight: -1}, true},
		{"bounded resize", Options{Format: FormatAVIF, Quality: 85, MaxWidth: 1920, MaxHeight: 1080}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidOptions) {
				t.Fatalf("Validate() error = %v, want ErrInvalidOptions chain", err)
			}
		})
	}
}

func TestForOptionsDispatch(t *testing.T) {
	deps := Deps{}
	for _, f := range []Format{FormatWebP, FormatJPEG, FormatPNG, FormatAVIF} {
		c, err := ForOptions(Options{Format: f, Quality: 85}, deps)
		if err != nil {
			t.Fatalf("ForOptions(%s) error = %v", f, err)
		}
		if _, ok := c.(*imageConverter); !ok {
			t.Fatalf("ForOptions(%s) = %T, want *imageConverter", f, c)
		}
	}
	c, err := ForOptions(Options{Format: FormatPDF, Quality: 85}, deps)
	if err != nil {
		t.Fatalf("ForOptions(pdf) error = %v", err)
	}
	if _, ok := c.(*pdfConverter); !ok {
		t.Fatalf("ForOptions(pdf) = %T, want *pdfConverter", c)
	}
	c, err = ForOptions(Options{Format: FormatDOCX, Quality: 85}, deps)
	if err != nil {
		t.Fatalf("ForOptions(docx) error = %v", err)
	}
	if _, ok := c.(*docxConverter); !ok {
		t.Fatalf("ForOptions(docx) = %T, want *docxConverter", c)
	}
}

func TestIsPDF(t *testing.T) {
	if !isPDF([]byte("%PDF-1.7\n...")) {
		t.Fatal("isPDF() = false for a pdf header")
	}
	if isPDF([]byte("PNG garbage")) {
		t.Fatal("isPDF() = true for non-pdf data")
	}
}

func TestBaseName(t *testing.T) {
	tests := map[string]string{
		"photo.png":        "photo",
		"dir/photo.jpeg":   "photo",
		"archive.tar.gz":   "archive.tar",
		"noext":            "noext",
		"":                 "file",
		".":                "file",
		"trailing.dot.":    "trailing.dot",
	}
	for in, want := range tests {
		if got := baseName(in); got != want {
			t.Fatalf("baseName(%q) = %q, want %q", in, got, want)
		}
	}
}
