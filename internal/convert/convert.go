// Package convert holds the external conversion collaborators. Each converter
// takes one uploaded file plus the job options and either returns output bytes
// or an error with a reason a user can read. The registry treats them as
// opaque.
package convert

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
)

type Result struct {
	Data    []byte
	OutName string
}

type Converter interface {
	Convert(ctx context.Context, name string, data []byte) (Result, error)
}

// Deps carries runtime configuration for converters that shell out or use
// native engines.
type Deps struct {
	OCRLanguages []string
	SofficePath  string
}

// ForOptions selects the converter for the job's output format. Called once
// at job start; options must already be validated.
func ForOptions(opts Options, deps Deps) (Converter, error) {
	switch {
	case opts.Format.IsImage():
		return &imageConverter{opts: opts}, nil
	case opts.Format == FormatPDF:
		return &pdfConverter{opts: opts}, nil
	case opts.Format == FormatDOCX:
		return &docxConverter{opts: opts, deps: deps}, nil
	}
	return nil, ErrInvalidOptions
}

var pdfMagic = []byte("%PDF-")

func isPDF(data []byte) bool {
	return bytes.HasPrefix(data, pdfMagic)
}

func baseName(name string) string {
	base := filepath.Base(name)
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "" || base == "." {
		base = "file"
	}
	return base
}
