package convert

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	docx "github.com/fumiama/go-docx"
	fitz "github.com/gen2brain/go-fitz"
	"github.com/otiai10/gosseract/v2"
)

// docxConverter produces an editable document from a PDF or image upload.
// PDFs with a digital text layer are read page by page; pages without one
// fall back to OCR when enabled. PreserveLayout hands the whole file to an
// office-suite binary instead.
type docxConverter struct {
	opts Options
	deps Deps
}

func (c *docxConverter) Convert(ctx context.Context, name string, data []byte) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	out := baseName(name) + ".docx"

	if isPDF(data) {
		if c.opts.PreserveLayout {
			blob, err := c.sofficeConvert(ctx, name, data)
			if err != nil {
				return Result{}, err
			}
			return Result{Data: blob, OutName: out}, nil
		}
		blob, err := c.pdfToDocx(ctx, name, data)
		if err != nil {
			return Result{}, err
		}
		return Result{Data: blob, OutName: out}, nil
	}

	// Image input: OCR is the only route to text.
	img, err := decodeInput(data, c.opts.Quality)
	if err != nil {
		return Result{}, fmt.Errorf("decode %s: %w", name, err)
	}
	text, err := c.ocrImage(ctx, img)
	if err != nil {
		return Result{}, fmt.Errorf("ocr %s: %w", name, err)
	}
	blob, err := buildDocx([]string{text})
	if err != nil {
		return Result{}, fmt.Errorf("build docx for %s: %w", name, err)
	}
	return Result{Data: blob, OutName: out}, nil
}

func (c *docxConverter) pdfToDocx(ctx context.Context, name string, data []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer doc.Close()

	pages := make([]string, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := doc.Text(i)
		if err != nil {
			return nil, fmt.Errorf("extract text from %s page %d: %w", name, i+1, err)
		}
		if strings.TrimSpace(text) == "" && c.opts.OCR {
			img, err := doc.ImageDPI(i, dpiForQuality(c.opts.Quality))
			if err != nil {
				return nil, fmt.Errorf("render %s page %d: %w", name, i+1, err)
			}
			text, err = c.ocrImage(ctx, img)
			if err != nil {
				return nil, fmt.Errorf("ocr %s page %d: %w", name, i+1, err)
			}
		}
		pages = append(pages, text)
	}
	blob, err := buildDocx(pages)
	if err != nil {
		return nil, fmt.Errorf("build docx for %s: %w", name, err)
	}
	return blob, nil
}

func (c *docxConverter) ocrImage(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	client := gosseract.NewClient()
	defer client.Close()
	if len(c.deps.OCRLanguages) > 0 {
		if err := client.SetLanguage(c.deps.OCRLanguages...); err != nil {
			return "", err
		}
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", err
	}
	return client.Text()
}

// sofficeConvert shells out to LibreOffice for a layout-preserving
// conversion. The context bounds the subprocess lifetime.
func (c *docxConverter) sofficeConvert(ctx context.Context, name string, data []byte) ([]byte, error) {
	tmp, err := os.MkdirTemp("", "mediaforge-soffice-*")
	if err != nil {
		return nil, fmt.Errorf("scratch dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	inPath := filepath.Join(tmp, "input.pdf")
	if err := os.WriteFile(inPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("stage %s: %w", name, err)
	}

	bin := c.deps.SofficePath
	if bin == "" {
		bin = "soffice"
	}
	cmd := exec.CommandContext(ctx, bin, "--headless", "--convert-to", "docx", "--outdir", tmp, inPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("office conversion of %s failed: %v: %s", name, err, strings.TrimSpace(string(out)))
	}
	blob, err := os.ReadFile(filepath.Join(tmp, "input.docx"))
	if err != nil {
		return nil, fmt.Errorf("office conversion of %s produced no output: %w", name, err)
	}
	return blob, nil
}

func buildDocx(pages []string) ([]byte, error) {
	w := docx.New().WithDefaultTheme()
	for _, page := range pages {
		for _, line := range strings.Split(page, "\n") {
			para := w.AddParagraph()
			para.AddText(line)
		}
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
