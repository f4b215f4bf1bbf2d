package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/averol/gohls/internal/app"
	"github.com/averol/gohls/internal/cache"
	"github.com/averol/gohls/internal/domain"
	"github.com/averol/gohls/internal/hls"
	"github.com/segmentio/ksuid"
)

// saveInterval throttles how often a running download's snapshot hits the
// store; the progress callback itself fires per segment.
const saveInterval = 500 * time.Millisecond

type activeDownload struct {
	download *domain.Download
	session  *Session
}

// Manager tracks running sessions by download ID and persists their state.
// One session per download; cancel is cooperative.
type Manager struct {
	mu     sync.RWMutex
	app    *app.Context
	active map[string]*activeDownload
}

func NewManager(appCtx *app.Context) *Manager {
	return &Manager{
		app:    appCtx,
		active: make(map[string]*activeDownload),
	}
}

// Start registers a new download and launches its session. The returned
// record is already persisted with status pending.
func (m *Manager) Start(req domain.DownloadRequest) (*domain.Download, error) {
	if req.ManifestURL == "" {
		return nil, fmt.Errorf("manifest URL is required")
	}
	if req.OutputPath == "" {
		return nil, fmt.Errorf("output path is required")
	}

	cfg := m.app.Config
	workers := req.Workers
	if workers <= 0 {
		workers = cfg.Download.Workers
	}

	now := time.Now()
	dl := &domain.Download{
		ID:          ksuid.New().String(),
		Title:       req.Title,
		Quality:     req.Quality,
		ManifestURL: req.ManifestURL,
		OutputPath:  req.OutputPath,
		Status:      domain.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.app.Store.SaveDownload(dl); err != nil {
		return nil, fmt.Errorf("saving download: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	dl.CancelFunc = cancel

	client := hls.NewClient(hls.ClientConfig{
		Timeout:   cfg.Download.SegmentTimeout,
		UserAgent: cfg.HTTP.UserAgent,
		Referer:   cfg.HTTP.Referer,
		Origin:    cfg.HTTP.Origin,
	})
	session := NewSession(SessionConfig{
		Workers:        workers,
		Retries:        cfg.Download.Retries,
		RetryWait:      cfg.Download.RetryWait,
		SegmentTimeout: cfg.Download.SegmentTimeout,
	}, client, cache.NewStore(cfg.Cache.Root), m.app.Muxer, m.app.Logger, m.progressSink(dl))

	m.mu.Lock()
	m.active[dl.ID] = &activeDownload{download: dl, session: session}
	m.mu.Unlock()

	go m.run(ctx, dl, session)
	return dl, nil
}

// progressSink persists snapshots, throttled while downloading so the
// per-segment callback stays cheap. Runs on worker goroutines.
func (m *Manager) progressSink(dl *domain.Download) domain.ProgressFunc {
	var lastSave time.Time
	return func(p domain.Progress) {
		m.mu.Lock()
		dl.Progress = &p
		dl.Status = p.Status
		dl.UpdatedAt = time.Now()
		save := p.Status != domain.StatusDownloading || time.Since(lastSave) >= saveInterval
		if save {
			lastSave = time.Now()
		}
		snapshot := *dl
		m.mu.Unlock()

		if save {
			if err := m.app.Store.SaveDownload(&snapshot); err != nil {
				m.app.Logger.Warn("persisting progress for %s: %v", dl.ID, err)
			}
		}
	}
}

func (m *Manager) run(ctx context.Context, dl *domain.Download, session *Session) {
	ok, final := session.Run(ctx, dl.ManifestURL, dl.OutputPath)

	m.mu.Lock()
	dl.Status = final.Status
	dl.Progress = &final
	dl.UpdatedAt = time.Now()
	if !ok && len(final.Errors) > 0 {
		dl.Error = strings.Join(final.Errors, "; ")
	}
	snapshot := *dl
	delete(m.active, dl.ID)
	m.mu.Unlock()

	if err := m.app.Store.SaveDownload(&snapshot); err != nil {
		m.app.Logger.Error("persisting final state for %s: %v", dl.ID, err)
	}
	if dl.CancelFunc != nil {
		dl.CancelFunc()
	}
}

// Get returns the live record when the download is running, otherwise the
// persisted one.
func (m *Manager) Get(id string) (*domain.Download, bool) {
	m.mu.RLock()
	if act, ok := m.active[id]; ok {
		snapshot := *act.download
		m.mu.RUnlock()
		return &snapshot, true
	}
	m.mu.RUnlock()

	dl, err := m.app.Store.GetDownload(id)
	if err != nil || dl == nil {
		return nil, false
	}
	return dl, true
}

// List returns all known downloads with live entries overriding their
// persisted state.
func (m *Manager) List() []*domain.Download {
	stored, err := m.app.Store.ListDownloads()
	if err != nil {
		m.app.Logger.Error("listing downloads: %v", err)
		stored = nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Download, 0, len(stored))
	for _, dl := range stored {
		if act, ok := m.active[dl.ID]; ok {
			snapshot := *act.download
			out = append(out, &snapshot)
			continue
		}
		out = append(out, dl)
	}
	return out
}

// Cancel requests cooperative cancellation of a running download. Finished
// or unknown downloads report false.
func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	act, ok := m.active[id]
	if !ok {
		return false
	}
	act.session.Cancel()
	if act.download.CancelFunc != nil {
		act.download.CancelFunc()
	}
	return true
}

// Delete removes a finished download's record. The segment cache is left
// alone; an interrupted download stays resumable by URL.
func (m *Manager) Delete(id string) error {
	m.mu.RLock()
	_, running := m.active[id]
	m.mu.RUnlock()
	if running {
		return fmt.Errorf("download %s is running; cancel it first", id)
	}
	return m.app.Store.DeleteDownload(id)
}
