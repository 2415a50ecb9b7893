package convert

import (
	"errors"
	"fmt"
)

// Format is the output kind selected once at job start.
type Format string

const (
	FormatWebP Format = "webp"
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatAVIF Format = "avif"
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

const (
	MinQuality = 10
	MaxQuality = 100
)

var ErrInvalidOptions = errors.New("invalid options")

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatWebP, FormatJPEG, FormatPNG, FormatAVIF, FormatPDF, FormatDOCX:
		return Format(s), nil
	}
	return "", fmt.Errorf("%w: unknown format %q", ErrInvalidOptions, s)
}

// IsImage reports whether the format is produced by the image re-encoder.
func (f Format) IsImage() bool {
	switch f {
	case FormatWebP, FormatJPEG, FormatPNG, FormatAVIF:
		return true
	}
	return false
}

type Options struct {
	Format         Format
	Quality        int
	MaxWidth       int
	MaxHeight      int
	CombinePDF     bool
	OCR            bool
	PreserveLayout bool
}

func (o Options) Validate() error {
	if _, err := ParseFormat(string(o.Format)); err != nil {
		return err
	}
	if o.Quality < MinQuality || o.Quality > MaxQuality {
		return fmt.Errorf("%w: quality %d out of range [%d..%d]", ErrInvalidOptions, o.Quality, MinQuality, MaxQuality)
	}
	if o.MaxWidth < 0 || o.MaxHeight < 0 {
		return fmt.Errorf("%w: negative max dimensions", ErrInvalidOptions)
	}
	return nil
}
