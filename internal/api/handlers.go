package api

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/telezhkin/mediaforge/internal/convert"
	"github.com/telezhkin/mediaforge/internal/registry"
	"github.com/telezhkin/mediaforge/internal/web"
)

type APIHandler struct {
	Registry       *registry.Registry
	Log            *zap.Logger
	MaxUploadBytes int64
	Deps           convert.Deps
}

func RegisterHandlers(r *gin.Engine, h *APIHandler) {
	r.GET("/", h.index)
	r.POST("/start", h.start)
	r.GET("/status/:job_id", h.status)
	r.GET("/download/:job_id", h.download)
	r.POST("/optimize", h.optimize)
}

func (h *APIHandler) index(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", web.IndexHTML)
}

func (h *APIHandler) start(c *gin.Context) {
	uploads, opts, ok := h.parseSubmission(c)
	if !ok {
		return
	}

	id, total, err := h.Registry.Submit(c.Request.Context(), uploads, opts)
	if err != nil {
		if errors.Is(err, registry.ErrNoFiles) || errors.Is(err, convert.ErrInvalidOptions) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.Log.Error("submit", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start job"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_id": id, "total": total})
}

func (h *APIHandler) status(c *gin.Context) {
	view, err := h.Registry.Status(c.Param("job_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *APIHandler) download(c *gin.Context) {
	id := c.Param("job_id")
	path, name, err := h.Registry.Claim(id)
	switch {
	case err == nil:
	case errors.Is(err, registry.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	case errors.Is(err, registry.ErrNotReady):
		c.JSON(http.StatusConflict, gin.H{"error": "job not ready"})
		return
	case errors.Is(err, registry.ErrJobFailed):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
		return
	case errors.Is(err, registry.ErrArchiveGone):
		c.JSON(http.StatusGone, gin.H{"error": "archive no longer available"})
		return
	default:
		h.Log.Error("download", zap.String("job_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "download failed"})
		return
	}

	c.FileAttachment(path, name)
	h.Registry.DisposeArchive(id)
}

// optimize is the synchronous path: convert in-request and stream a ZIP back.
// Image formats only; large batches belong on /start.
func (h *APIHandler) optimize(c *gin.Context) {
	uploads, opts, ok := h.parseSubmission(c)
	if !ok {
		return
	}
	if !opts.Format.IsImage() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "optimize supports image formats only"})
		return
	}
	conv, err := convert.ForOptions(opts, h.Deps)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	processed := 0
	for _, up := range uploads {
		res, err := conv.Convert(c.Request.Context(), up.Name, up.Data)
		if err != nil {
			continue
		}
		w, err := zw.Create(res.OutName)
		if err != nil {
			continue
		}
		if _, err := w.Write(res.Data); err != nil {
			continue
		}
		processed++
	}
	if err := zw.Close(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build archive"})
		return
	}
	if processed == 0 {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "all images failed to process"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="optimized_images.zip"`)
	c.Data(http.StatusOK, "application/zip", buf.Bytes())
}

// parseSubmission reads the multipart form shared by /start and /optimize.
// On failure it writes the error response and returns ok=false.
func (h *APIHandler) parseSubmission(c *gin.Context) ([]registry.Upload, convert.Options, bool) {
	if h.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)
	}
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return nil, convert.Options{}, false
	}
	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files uploaded"})
		return nil, convert.Options{}, false
	}

	format, err := convert.ParseFormat(c.DefaultPostForm("format", "webp"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, convert.Options{}, false
	}
	opts := convert.Options{
		Format:         format,
		Quality:        formInt(c, "quality", 85),
		MaxWidth:       formInt(c, "max_width", 0),
		MaxHeight:      formInt(c, "max_height", 0),
		CombinePDF:     c.PostForm("combine_pdf") == "1",
		OCR:            c.PostForm("ocr") == "1",
		PreserveLayout: c.PostForm("preserve_layout") == "1",
	}
	if err := opts.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, convert.Options{}, false
	}

	uploads := make([]registry.Upload, 0, len(files))
	for _, fh := range files {
		data, err := readUpload(fh)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("read %s: %v", fh.Filename, err)})
			return nil, convert.Options{}, false
		}
		name := fh.Filename
		if name == "" {
			name = "file"
		}
		uploads = append(uploads, registry.Upload{Name: name, Size: int64(len(data)), Data: data})
	}
	return uploads, opts, true
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func formInt(c *gin.Context, key string, def int) int {
	v := c.PostForm(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// RequestLogger logs each request with latency, in place of gin's default
// writer-based logger.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)))
	}
}
