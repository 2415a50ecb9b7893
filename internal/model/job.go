package model

import "time"

type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusError      Status = "error"
)

// Terminal reports whether a status will never change again.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// Item is one uploaded file inside a job. Status and Error are written only
// by the job's worker; readers go through Job.View.
type Item struct {
	Name    string
	Size    int64
	Status  Status
	Error   string
	OutName string
	OutPath string // converted intermediate on disk, empty until done
}

// Job tracks one batch-conversion request from submission to archive pickup.
// All fields are guarded by the registry mutex.
type Job struct {
	ID          string
	Total       int
	Processed   int
	Status      Status
	Error       string
	Items       []Item
	ArchivePath string
	ArchiveName string
	Consumed    bool
	CreatedAt   time.Time
}

type ItemView struct {
	Name    string `json:"name"`
	Size    int64  `json:"size"`
	Status  Status `json:"status"`
	Error   string `json:"error,omitempty"`
	OutName string `json:"out_name,omitempty"`
}

type JobView struct {
	Total     int        `json:"total"`
	Processed int        `json:"processed"`
	Status    Status     `json:"status"`
	Error     string     `json:"error,omitempty"`
	Items     []ItemView `json:"items"`
}

// View returns a snapshot copy safe to use after the registry lock is
// released.
func (j *Job) View() JobView {
	items := make([]ItemView, len(j.Items))
	for i, it := range j.Items {
		items[i] = ItemView{
			Name:    it.Name,
			Size:    it.Size,
			Status:  it.Status,
			Error:   it.Error,
			OutName: it.OutName,
		}
	}
	return JobView{
		Total:     j.Total,
		Processed: j.Processed,
		Status:    j.Status,
		Error:     j.Error,
		Items:     items,
	}
}
