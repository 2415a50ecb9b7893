// Package registry owns the in-memory job map and the per-job background
// worker. It is the only writer of job state; handlers read through snapshot
// views.
package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/telezhkin/mediaforge/internal/convert"
	"github.com/telezhkin/mediaforge/internal/model"
	"github.com/telezhkin/mediaforge/internal/service"
)

var (
	ErrNoFiles     = errors.New("no files uploaded")
	ErrJobNotFound = errors.New("job not found")
	ErrNotReady    = errors.New("job not ready")
	ErrJobFailed   = errors.New("job failed")
	ErrArchiveGone = errors.New("archive no longer available")
)

// Upload is one file received at submission time, already read into memory.
type Upload struct {
	Name string
	Size int64
	Data []byte
}

type Params struct {
	WorkDir       string
	ArchiveDir    string
	MaxConcurrent int64
	ItemTimeout   time.Duration
	Deps          convert.Deps
	Logger        *zap.Logger

	// NewConverter and MergePDFs default to the convert package; tests
	// substitute fakes here.
	NewConverter func(convert.Options, convert.Deps) (convert.Converter, error)
	MergePDFs    func(context.Context, []string, string) error
}

type Registry struct {
	mu   sync.Mutex
	jobs map[string]*model.Job

	sem          *semaphore.Weighted
	workDir      string
	archiveDir   string
	itemTimeout  time.Duration
	deps         convert.Deps
	log          *zap.Logger
	newConverter func(convert.Options, convert.Deps) (convert.Converter, error)
	mergePDFs    func(context.Context, []string, string) error
}

func New(p Params) *Registry {
	if p.MaxConcurrent <= 0 {
		p.MaxConcurrent = 4
	}
	if p.ItemTimeout <= 0 {
		p.ItemTimeout = 2 * time.Minute
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.NewConverter == nil {
		p.NewConverter = convert.ForOptions
	}
	if p.MergePDFs == nil {
		p.MergePDFs = convert.MergePDFs
	}
	return &Registry{
		jobs:         make(map[string]*model.Job),
		sem:          semaphore.NewWeighted(p.MaxConcurrent),
		workDir:      p.WorkDir,
		archiveDir:   p.ArchiveDir,
		itemTimeout:  p.ItemTimeout,
		deps:         p.Deps,
		log:          p.Logger,
		newConverter: p.NewConverter,
		mergePDFs:    p.MergePDFs,
	}
}

// Submit validates the batch, registers a job with every item queued and
// schedules its worker. It returns as soon as the job is registered.
func (r *Registry) Submit(ctx context.Context, uploads []Upload, opts convert.Options) (string, int, error) {
	if len(uploads) == 0 {
		return "", 0, ErrNoFiles
	}
	if err := opts.Validate(); err != nil {
		return "", 0, err
	}
	conv, err := r.newConverter(opts, r.deps)
	if err != nil {
		return "", 0, err
	}

	id := uuid.NewString()
	items := make([]model.Item, len(uploads))
	for i, up := range uploads {
		items[i] = model.Item{Name: up.Name, Size: up.Size, Status: model.StatusQueued}
	}
	job := &model.Job{
		ID:        id,
		Total:     len(uploads),
		Status:    model.StatusQueued,
		Items:     items,
		CreatedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	r.jobs[id] = job
	r.mu.Unlock()

	r.log.Info("job submitted",
		zap.String("job_id", id),
		zap.Int("total", len(uploads)),
		zap.String("format", string(opts.Format)))

	go r.process(id, uploads, opts, conv)
	return id, len(uploads), nil
}

// Status returns a consistent snapshot of the job.
func (r *Registry) Status(id string) (model.JobView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return model.JobView{}, ErrJobNotFound
	}
	return job.View(), nil
}

// Claim hands out the finished archive exactly once. After a successful
// claim further calls report the archive as gone.
func (r *Registry) Claim(id string) (path, name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return "", "", ErrJobNotFound
	}
	switch job.Status {
	case model.StatusQueued, model.StatusProcessing:
		return "", "", ErrNotReady
	case model.StatusError:
		return "", "", fmt.Errorf("%w: %s", ErrJobFailed, job.Error)
	}
	if job.Consumed || job.ArchivePath == "" {
		return "", "", ErrArchiveGone
	}
	if _, err := os.Stat(job.ArchivePath); err != nil {
		// Swept by the retention loop while the record lived on.
		job.ArchivePath = ""
		return "", "", ErrArchiveGone
	}
	job.Consumed = true
	return job.ArchivePath, job.ArchiveName, nil
}

// DisposeArchive removes a claimed archive from disk. The job record stays
// for status polling.
func (r *Registry) DisposeArchive(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok || job.ArchivePath == "" {
		return
	}
	if err := os.Remove(job.ArchivePath); err != nil && !os.IsNotExist(err) {
		r.log.Warn("remove archive", zap.String("job_id", id), zap.Error(err))
	}
	job.ArchivePath = ""
}

// Evict drops terminal job records older than maxAge and returns how many
// were removed. Unclaimed archives belonging to evicted jobs go with them.
func (r *Registry) Evict(maxAge time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxAge)
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for id, job := range r.jobs {
		if !job.Status.Terminal() || job.CreatedAt.After(cutoff) {
			continue
		}
		if job.ArchivePath != "" {
			if err := os.Remove(job.ArchivePath); err != nil && !os.IsNotExist(err) {
				r.log.Warn("remove archive", zap.String("job_id", id), zap.Error(err))
			}
		}
		delete(r.jobs, id)
		evicted++
	}
	return evicted
}

// process is the worker: one goroutine per job, sole writer of its state.
func (r *Registry) process(id string, uploads []Upload, opts convert.Options, conv convert.Converter) {
	ctx := context.Background()
	if err := r.sem.Acquire(ctx, 1); err != nil {
		r.failJob(id, fmt.Sprintf("schedule: %v", err))
		return
	}
	defer r.sem.Release(1)

	r.setJobStatus(id, model.StatusProcessing)

	jobDir := filepath.Join(r.workDir, id)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		r.failJob(id, fmt.Sprintf("create work dir: %v", err))
		return
	}
	defer os.RemoveAll(jobDir)

	for i, up := range uploads {
		r.setItemStatus(id, i, model.StatusProcessing)
		start := time.Now()

		ictx, cancel := context.WithTimeout(ctx, r.itemTimeout)
		res, err := conv.Convert(ictx, up.Name, up.Data)
		cancel()

		if err == nil {
			path := filepath.Join(jobDir, fmt.Sprintf("%03d_%s", i, res.OutName))
			err = os.WriteFile(path, res.Data, 0o644)
			if err == nil {
				r.finishItem(id, i, res.OutName, path, "")
				r.log.Debug("item converted",
					zap.String("job_id", id),
					zap.String("item", up.Name),
					zap.Duration("took", time.Since(start)))
				continue
			}
		}
		r.finishItem(id, i, "", "", err.Error())
		r.log.Warn("item failed",
			zap.String("job_id", id),
			zap.String("item", up.Name),
			zap.Error(err))
	}

	r.packageJob(ctx, id, opts)
}

// packageJob assembles the final output from the successful items.
func (r *Registry) packageJob(ctx context.Context, id string, opts convert.Options) {
	entries := r.successfulEntries(id)
	if len(entries) == 0 {
		r.failJob(id, "no files converted successfully")
		return
	}

	if opts.Format == convert.FormatPDF && opts.CombinePDF {
		out := filepath.Join(r.archiveDir, id+".pdf")
		paths := make([]string, len(entries))
		for i, e := range entries {
			paths[i] = e.Path
		}
		if err := r.mergePDFs(ctx, paths, out); err != nil {
			r.failJob(id, fmt.Sprintf("combine pdf: %v", err))
			return
		}
		r.completeJob(id, out, "combined.pdf")
		return
	}

	out := filepath.Join(r.archiveDir, id+".zip")
	if _, err := service.BuildArchive(out, entries); err != nil {
		os.Remove(out)
		r.failJob(id, fmt.Sprintf("package archive: %v", err))
		return
	}
	r.completeJob(id, out, "converted.zip")
}

func (r *Registry) successfulEntries(id string) []service.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil
	}
	var entries []service.Entry
	for _, it := range job.Items {
		if it.Status == model.StatusDone {
			entries = append(entries, service.Entry{Name: it.OutName, Path: it.OutPath})
		}
	}
	return entries
}

func (r *Registry) setJobStatus(id string, s model.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		job.Status = s
	}
}

func (r *Registry) setItemStatus(id string, idx int, s model.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok && idx < len(job.Items) {
		job.Items[idx].Status = s
	}
}

// finishItem moves an item to its terminal state and bumps Processed, which
// counts terminal items regardless of outcome.
func (r *Registry) finishItem(id string, idx int, outName, outPath, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok || idx >= len(job.Items) {
		return
	}
	it := &job.Items[idx]
	if errMsg != "" {
		it.Status = model.StatusError
		it.Error = errMsg
	} else {
		it.Status = model.StatusDone
		it.OutName = outName
		it.OutPath = outPath
	}
	job.Processed++
}

func (r *Registry) completeJob(id, archivePath, archiveName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return
	}
	job.ArchivePath = archivePath
	job.ArchiveName = archiveName
	job.Status = model.StatusDone
	r.log.Info("job done", zap.String("job_id", id), zap.Int("total", job.Total))
}

func (r *Registry) failJob(id, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return
	}
	job.Status = model.StatusError
	job.Error = msg
	r.log.Warn("job failed", zap.String("job_id", id), zap.String("reason", msg))
}
