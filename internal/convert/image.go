package convert

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	_ "image/gif"

	"github.com/chai2010/webp"
	"github.com/gen2brain/avif"
	fitz "github.com/gen2brain/go-fitz"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// imageConverter re-encodes one input into the target image format, resizing
// to fit the requested box first. PDF inputs are rasterized (first page) at a
// DPI derived from quality.
type imageConverter struct {
	opts Options
}

func (c *imageConverter) Convert(ctx context.Context, name string, data []byte) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	img, err := decodeInput(data, c.opts.Quality)
	if err != nil {
		return Result{}, fmt.Errorf("decode %s: %w", name, err)
	}
	img = fitWithin(img, c.opts.MaxWidth, c.opts.MaxHeight)

	var buf bytes.Buffer
	ext := string(c.opts.Format)
	switch c.opts.Format {
	case FormatWebP:
		err = webp.Encode(&buf, img, &webp.Options{Quality: float32(c.opts.Quality)})
	case FormatJPEG:
		ext = "jpg"
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: c.opts.Quality})
	case FormatPNG:
		err = png.Encode(&buf, img)
	case FormatAVIF:
		err = avif.Encode(&buf, img, avif.Options{Quality: c.opts.Quality, Speed: 8})
		if err != nil {
			// AVIF encoder is optional at runtime; fall back to WebP.
			buf.Reset()
			ext = "webp"
			err = webp.Encode(&buf, img, &webp.Options{Quality: float32(c.opts.Quality)})
		}
	default:
		return Result{}, fmt.Errorf("%w: format %q is not an image format", ErrInvalidOptions, c.opts.Format)
	}
	if err != nil {
		return Result{}, fmt.Errorf("encode %s as %s: %w", name, ext, err)
	}
	return Result{Data: buf.Bytes(), OutName: baseName(name) + "." + ext}, nil
}

// decodeInput decodes an uploaded blob into an image. PDFs render their first
// page; everything else goes through the registered image decoders.
func decodeInput(data []byte, quality int) (image.Image, error) {
	if isPDF(data) {
		doc, err := fitz.NewFromMemory(data)
		if err != nil {
			return nil, fmt.Errorf("open pdf: %w", err)
		}
		defer doc.Close()
		if doc.NumPage() == 0 {
			return nil, fmt.Errorf("pdf has no pages")
		}
		img, err := doc.ImageDPI(0, dpiForQuality(quality))
		if err != nil {
			return nil, fmt.Errorf("render pdf page: %w", err)
		}
		return img, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

// dpiForQuality maps the 10..100 quality slider onto a render resolution.
func dpiForQuality(q int) float64 {
	if q < MinQuality {
		q = MinQuality
	}
	if q > MaxQuality {
		q = MaxQuality
	}
	return 72 + float64(q*96)/100
}

// fitWithin downscales img to fit maxW x maxH, preserving aspect ratio. A
// zero bound means unconstrained on that axis; images are never upscaled.
func fitWithin(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return img
	}
	scale := 1.0
	if maxW > 0 && w > maxW {
		scale = float64(maxW) / float64(w)
	}
	if maxH > 0 && h > maxH {
		if s := float64(maxH) / float64(h); s < scale {
			scale = s
		}
	}
	if scale >= 1.0 {
		return img
	}
	dw, dh := int(float64(w)*scale), int(float64(h)*scale)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}
	dst := image.NewNRGBA(image.Rect(0, 0, dw, dh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
