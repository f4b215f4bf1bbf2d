// Package engine implements the download state machine: plan the segment
// list, resume from cache, fetch with a fixed worker pool, merge, clean up.
package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/averol/gohls/internal/app"
	"github.com/averol/gohls/internal/cache"
	"github.com/averol/gohls/internal/domain"
	"github.com/averol/gohls/internal/hls"
	"github.com/averol/gohls/internal/infra/config"
	"github.com/averol/gohls/internal/infra/logger"
)

type SessionConfig struct {
	Workers        int
	Retries        int
	RetryWait      time.Duration
	SegmentTimeout time.Duration
}

// Session owns a single run's lifecycle. It is used once and discarded;
// resuming creates a new session that reuses the same cache key.
type Session struct {
	cfg        SessionConfig
	client     hls.Doer
	cache      *cache.Store
	muxer      app.Muxer
	log        *logger.Logger
	onProgress domain.ProgressFunc

	cancelled atomic.Bool

	fatalMu  sync.Mutex
	fatalErr error
}

func NewSession(cfg SessionConfig, client hls.Doer, store *cache.Store, muxer app.Muxer, log *logger.Logger, onProgress domain.ProgressFunc) *Session {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Workers > config.MaxWorkers {
		cfg.Workers = config.MaxWorkers
	}
	if cfg.Retries < 1 {
		cfg.Retries = 3
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = time.Second
	}
	if log == nil {
		log, _ = logger.New("", logger.LevelError, false)
	}
	return &Session{
		cfg:        cfg,
		client:     client,
		cache:      store,
		muxer:      muxer,
		log:        log,
		onProgress: onProgress,
	}
}

// Cancel requests cooperative cancellation. Workers stop taking new
// segments and new retry attempts; in-flight transfers finish on their own
// and are discarded. The cache is kept.
func (s *Session) Cancel() {
	s.cancelled.Store(true)
}

// fail records the first fatal error and stops the pool.
func (s *Session) fail(err error) {
	s.fatalMu.Lock()
	if s.fatalErr == nil {
		s.fatalErr = err
	}
	s.fatalMu.Unlock()
	s.cancelled.Store(true)
}

func (s *Session) fatal() error {
	s.fatalMu.Lock()
	defer s.fatalMu.Unlock()
	return s.fatalErr
}

// Run executes the full state machine for one manifest URL and reports
// success plus the final snapshot. Every ending except Completed leaves the
// cache on disk for the next attempt; Completed purges it.
func (s *Session) Run(ctx context.Context, manifestURL, outputPath string) (bool, domain.Progress) {
	// Planning
	content, err := hls.FetchManifest(ctx, s.client, manifestURL)
	if err != nil {
		return false, fatalSnapshot(err)
	}
	segments, err := hls.ParseMediaPlaylist(content, manifestURL)
	if err != nil {
		return false, fatalSnapshot(err)
	}
	total := len(segments)

	entry, err := s.cache.Entry(manifestURL)
	if err != nil {
		return false, fatalSnapshot(err)
	}

	// Resuming
	cached, cachedBytes := entry.Scan(total)
	t := newTracker(total, len(cached), cachedBytes, s.onProgress)
	if len(cached) > 0 {
		s.log.Info("resuming %s: %d/%d segments cached", cache.KeyFor(manifestURL), len(cached), total)
	}

	pending := make([]hls.Segment, 0, total-len(cached))
	for _, seg := range segments {
		if _, ok := cached[seg.Index]; !ok {
			pending = append(pending, seg)
		}
	}

	// Downloading
	if len(pending) > 0 {
		s.log.Info("downloading %d segments with %d workers", len(pending), s.cfg.Workers)
		t.emit(domain.StatusDownloading)

		stop := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				s.Cancel()
			case <-stop:
			}
		}()

		q := newWorkQueue(pending)
		var wg sync.WaitGroup
		for i := 0; i < s.cfg.Workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.worker(entry, q, t)
			}()
		}
		wg.Wait()
		close(stop)
	} else {
		// Idempotent completion: everything cached, zero fetches.
		t.emit(domain.StatusDownloading)
	}

	if err := s.fatal(); err != nil {
		t.recordError(err.Error())
		return false, t.final(domain.StatusFailed, 0)
	}
	if s.cancelled.Load() {
		s.log.Warn("download cancelled, cache preserved")
		return false, t.final(domain.StatusCancelled, 0)
	}

	downloaded, failed := t.counts()
	if failed > 0 {
		s.log.Error("%d segments failed, cache preserved for retry", failed)
		return false, t.final(domain.StatusFailed, 0)
	}
	if downloaded != total {
		t.recordError("download incomplete")
		return false, t.final(domain.StatusFailed, 0)
	}

	// Merging
	t.emit(domain.StatusMerging)
	size, err := s.merge(ctx, entry, total, outputPath)
	if err != nil {
		t.recordError(err.Error())
		return false, t.final(domain.StatusFailed, 0)
	}

	if err := entry.Purge(); err != nil {
		s.log.Warn("could not remove cache dir %s: %v", entry.Dir(), err)
	}
	s.log.Info("completed %s (%d bytes)", outputPath, size)
	return true, t.final(domain.StatusCompleted, size)
}

// merge builds the ordered concat list and invokes the muxer. Success
// requires a zero exit and a non-empty output file.
func (s *Session) merge(ctx context.Context, entry *cache.Entry, total int, outputPath string) (int64, error) {
	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, &domain.MergeError{Reason: "creating output directory: " + err.Error()}
		}
	}
	listPath, err := entry.ConcatList(total)
	if err != nil {
		return 0, err
	}
	if err := s.muxer.Merge(ctx, listPath, outputPath); err != nil {
		return 0, err
	}
	info, err := os.Stat(outputPath)
	if err != nil || info.Size() == 0 {
		return 0, &domain.MergeError{Reason: "output file is empty or missing"}
	}
	return info.Size(), nil
}

func fatalSnapshot(err error) domain.Progress {
	return domain.Progress{
		Status: domain.StatusFailed,
		Errors: []string{err.Error()},
	}
}
