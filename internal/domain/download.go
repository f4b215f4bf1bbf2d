package domain

import (
	"context"
	"time"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusDownloading Status = "downloading"
	StatusMerging     Status = "merging"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusCancelled   Status = "cancelled"
	StatusInterrupted Status = "interrupted"
)

// Terminal reports whether a download in this status can still make progress.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusInterrupted:
		return true
	}
	return false
}

// Stream identifies one resolved media stream. The manifest URL is the
// identity the cache key is derived from; it must not change once a
// download has started.
type Stream struct {
	ManifestURL string `json:"manifest_url"`
	BaseURL     string `json:"base_url,omitempty"`
}

// Download represents one tracked download job, live or persisted.
type Download struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Quality     string    `json:"quality"`
	ManifestURL string    `json:"manifest_url"`
	OutputPath  string    `json:"output_path"`
	Status      Status    `json:"status"`
	Progress    *Progress `json:"progress,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	CancelFunc context.CancelFunc `json:"-"`
}

// DownloadRequest is what callers (API, CLI) hand to the manager to start
// a new download.
type DownloadRequest struct {
	ManifestURL string `json:"manifest_url"`
	OutputPath  string `json:"output_path"`
	Title       string `json:"title"`
	Quality     string `json:"quality"`
	Workers     int    `json:"threads"`
}
