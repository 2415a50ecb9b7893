package convert

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// pdfConverter turns an image upload into a single-page PDF. PDF uploads pass
// through unchanged so they can take part in a combine step.
type pdfConverter struct {
	opts Options
}

func (c *pdfConverter) Convert(ctx context.Context, name string, data []byte) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	out := baseName(name) + ".pdf"
	if isPDF(data) {
		return Result{Data: data, OutName: out}, nil
	}

	img, err := decodeInput(data, c.opts.Quality)
	if err != nil {
		return Result{}, fmt.Errorf("decode %s: %w", name, err)
	}
	img = fitWithin(img, c.opts.MaxWidth, c.opts.MaxHeight)

	// pdfcpu imports from disk, so stage the page image in a scratch dir.
	tmp, err := os.MkdirTemp("", "mediaforge-pdf-*")
	if err != nil {
		return Result{}, fmt.Errorf("scratch dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	pagePath := filepath.Join(tmp, "page.png")
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Result{}, fmt.Errorf("stage %s: %w", name, err)
	}
	if err := os.WriteFile(pagePath, buf.Bytes(), 0o644); err != nil {
		return Result{}, fmt.Errorf("stage %s: %w", name, err)
	}

	outPath := filepath.Join(tmp, "out.pdf")
	if err := api.ImportImagesFile([]string{pagePath}, outPath, nil, nil); err != nil {
		return Result{}, fmt.Errorf("build pdf from %s: %w", name, err)
	}
	pdf, err := os.ReadFile(outPath)
	if err != nil {
		return Result{}, fmt.Errorf("read pdf for %s: %w", name, err)
	}
	return Result{Data: pdf, OutName: out}, nil
}

// MergePDFs merges the given PDF files, in order, into a single document at
// outFile.
func MergePDFs(ctx context.Context, inFiles []string, outFile string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(inFiles) == 0 {
		return fmt.Errorf("nothing to merge")
	}
	if err := api.MergeCreateFile(inFiles, outFile, false, nil); err != nil {
		return fmt.Errorf("merge %d pdfs: %w", len(inFiles), err)
	}
	return nil
}
