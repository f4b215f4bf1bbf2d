package engine

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/averol/gohls/internal/cache"
	"github.com/averol/gohls/internal/domain"
)

// testOrigin serves a 10-segment media playlist and counts segment fetches.
type testOrigin struct {
	srv *httptest.Server

	mu       sync.Mutex
	fetches  map[int]int
	failIdx  map[int]bool
	segDelay time.Duration
}

func newTestOrigin(t *testing.T, totalSegments int) *testOrigin {
	t.Helper()
	o := &testOrigin{
		fetches: make(map[int]int),
		failIdx: make(map[int]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/index.m3u8", func(w http.ResponseWriter, r *http.Request) {
		var sb strings.Builder
		sb.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n")
		for i := 0; i < totalSegments; i++ {
			fmt.Fprintf(&sb, "#EXTINF:6.0,\nseg%d.ts\n", i)
		}
		sb.WriteString("#EXT-X-ENDLIST\n")
		w.Write([]byte(sb.String()))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		var idx int
		if _, err := fmt.Sscanf(r.URL.Path, "/seg%d.ts", &idx); err != nil {
			http.NotFound(w, r)
			return
		}
		o.mu.Lock()
		o.fetches[idx]++
		fail := o.failIdx[idx]
		delay := o.segDelay
		o.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}
		if fail {
			http.Error(w, "upstream error", http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, "payload-for-segment-%d", idx)
	})

	o.srv = httptest.NewServer(mux)
	t.Cleanup(o.srv.Close)
	return o
}

func (o *testOrigin) manifestURL() string { return o.srv.URL + "/index.m3u8" }

func (o *testOrigin) fetchCount(idx int) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.fetches[idx]
}

func (o *testOrigin) totalFetches() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, c := range o.fetches {
		n += c
	}
	return n
}

// fakeMuxer writes a non-empty output file, or fails when told to.
type fakeMuxer struct {
	mu       sync.Mutex
	calls    int
	fail     bool
	lastList string
}

func (m *fakeMuxer) Merge(_ context.Context, listPath, destPath string) error {
	m.mu.Lock()
	m.calls++
	m.lastList = listPath
	fail := m.fail
	m.mu.Unlock()
	if fail {
		return &domain.MergeError{Reason: "muxer exited with status 1"}
	}
	return os.WriteFile(destPath, []byte("merged output"), 0644)
}

func (m *fakeMuxer) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func newTestSession(o *testOrigin, cacheRoot string, muxer *fakeMuxer, workers int) *Session {
	return NewSession(SessionConfig{
		Workers:   workers,
		Retries:   3,
		RetryWait: 10 * time.Millisecond,
	}, o.srv.Client(), cache.NewStore(cacheRoot), muxer, nil, nil)
}

func cacheDir(root, manifestURL string) string {
	return filepath.Join(root, cache.KeyFor(manifestURL))
}

func TestSessionFullDownload(t *testing.T) {
	o := newTestOrigin(t, 10)
	root := t.TempDir()
	muxer := &fakeMuxer{}
	out := filepath.Join(t.TempDir(), "show.mp4")

	s := newTestSession(o, root, muxer, 4)
	ok, final := s.Run(context.Background(), o.manifestURL(), out)

	if !ok {
		t.Fatalf("Run() failed: %v", final.Errors)
	}
	if final.Status != domain.StatusCompleted {
		t.Errorf("status = %q, want completed", final.Status)
	}
	if final.Percent != 100 || final.DownloadedSegments != 10 || final.FailedSegments != 0 {
		t.Errorf("final = %+v, want 10/10 at 100%%", final)
	}
	if final.FileSize == 0 {
		t.Error("final snapshot has no file size")
	}
	if muxer.callCount() != 1 {
		t.Errorf("muxer called %d times, want 1", muxer.callCount())
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("output file missing: %v", err)
	}
	// Success purges the cache.
	if _, err := os.Stat(cacheDir(root, o.manifestURL())); !os.IsNotExist(err) {
		t.Error("cache directory survived a completed download")
	}
}

func TestSessionSegmentFailureKeepsCache(t *testing.T) {
	o := newTestOrigin(t, 10)
	o.failIdx[5] = true
	root := t.TempDir()
	muxer := &fakeMuxer{}
	out := filepath.Join(t.TempDir(), "show.mp4")

	s := newTestSession(o, root, muxer, 4)
	ok, final := s.Run(context.Background(), o.manifestURL(), out)

	if ok {
		t.Fatal("Run() succeeded despite a failing segment")
	}
	if final.Status != domain.StatusFailed {
		t.Errorf("status = %q, want failed", final.Status)
	}
	if final.FailedSegments != 1 || final.DownloadedSegments != 9 {
		t.Errorf("final = %d downloaded / %d failed, want 9 / 1", final.DownloadedSegments, final.FailedSegments)
	}
	if got := o.fetchCount(5); got != 3 {
		t.Errorf("segment 5 fetched %d times, want 3 (retry budget)", got)
	}
	found := false
	for _, e := range final.Errors {
		if strings.Contains(e, "segment 5") {
			found = true
		}
	}
	if !found {
		t.Errorf("errors %v do not identify segment 5", final.Errors)
	}
	if muxer.callCount() != 0 {
		t.Error("muxer invoked for a failed download")
	}
	// The 9 good segments stay for the next attempt.
	entries, err := os.ReadDir(cacheDir(root, o.manifestURL()))
	if err != nil {
		t.Fatalf("cache dir gone after failure: %v", err)
	}
	if len(entries) != 9 {
		t.Errorf("cache holds %d files, want 9", len(entries))
	}
}

func TestSessionResumeSkipsCachedSegments(t *testing.T) {
	o := newTestOrigin(t, 10)
	root := t.TempDir()
	muxer := &fakeMuxer{}
	out := filepath.Join(t.TempDir(), "show.mp4")

	// Pre-populate segments 0-6 as a prior interrupted run would.
	store := cache.NewStore(root)
	entry, err := store.Entry(o.manifestURL())
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i <= 6; i++ {
		if err := entry.Write(i, []byte("cached")); err != nil {
			t.Fatal(err)
		}
	}

	s := newTestSession(o, root, muxer, 4)
	ok, final := s.Run(context.Background(), o.manifestURL(), out)

	if !ok {
		t.Fatalf("Run() failed: %v", final.Errors)
	}
	if final.DownloadedSegments != 10 {
		t.Errorf("downloaded = %d, want 10", final.DownloadedSegments)
	}
	for i := 0; i <= 6; i++ {
		if o.fetchCount(i) != 0 {
			t.Errorf("cached segment %d was re-fetched", i)
		}
	}
	if got := o.totalFetches(); got != 3 {
		t.Errorf("total fetches = %d, want 3 (segments 7-9)", got)
	}
}

func TestSessionIdempotentCompletion(t *testing.T) {
	o := newTestOrigin(t, 5)
	root := t.TempDir()
	muxer := &fakeMuxer{}
	out := filepath.Join(t.TempDir(), "show.mp4")

	store := cache.NewStore(root)
	entry, err := store.Entry(o.manifestURL())
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if err := entry.Write(i, []byte("cached")); err != nil {
			t.Fatal(err)
		}
	}

	s := newTestSession(o, root, muxer, 4)
	ok, final := s.Run(context.Background(), o.manifestURL(), out)

	if !ok {
		t.Fatalf("Run() failed: %v", final.Errors)
	}
	if got := o.totalFetches(); got != 0 {
		t.Errorf("fully cached run fetched %d segments, want 0", got)
	}
	if muxer.callCount() != 1 {
		t.Errorf("muxer called %d times, want 1", muxer.callCount())
	}
	if final.Status != domain.StatusCompleted || final.Percent != 100 {
		t.Errorf("final = %+v, want completed at 100%%", final)
	}
}

func TestSessionMergeFailureKeepsCache(t *testing.T) {
	o := newTestOrigin(t, 5)
	root := t.TempDir()
	muxer := &fakeMuxer{fail: true}
	out := filepath.Join(t.TempDir(), "show.mp4")

	s := newTestSession(o, root, muxer, 2)
	ok, final := s.Run(context.Background(), o.manifestURL(), out)

	if ok {
		t.Fatal("Run() succeeded despite merge failure")
	}
	if final.Status != domain.StatusFailed {
		t.Errorf("status = %q, want failed", final.Status)
	}
	if len(final.Errors) == 0 {
		t.Error("merge failure produced no error")
	}
	// All segments were fetched; the cache survives so only the merge has
	// to be redone.
	entries, err := os.ReadDir(cacheDir(root, o.manifestURL()))
	if err != nil {
		t.Fatalf("cache dir gone after merge failure: %v", err)
	}
	segs := 0
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "segment_") {
			segs++
		}
	}
	if segs != 5 {
		t.Errorf("cache holds %d segments, want 5", segs)
	}
}

func TestSessionEmptyOutputIsFailure(t *testing.T) {
	o := newTestOrigin(t, 3)
	root := t.TempDir()
	out := filepath.Join(t.TempDir(), "show.mp4")

	// Muxer exits cleanly but writes nothing.
	muxer := &emptyOutputMuxer{}
	s := NewSession(SessionConfig{Workers: 2, Retries: 3, RetryWait: 10 * time.Millisecond},
		o.srv.Client(), cache.NewStore(root), muxer, nil, nil)
	ok, final := s.Run(context.Background(), o.manifestURL(), out)

	if ok {
		t.Fatal("Run() succeeded with an empty output file")
	}
	if final.Status != domain.StatusFailed {
		t.Errorf("status = %q, want failed", final.Status)
	}
}

type emptyOutputMuxer struct{}

func (emptyOutputMuxer) Merge(_ context.Context, _, destPath string) error {
	return os.WriteFile(destPath, nil, 0644)
}

func TestSessionCancellation(t *testing.T) {
	o := newTestOrigin(t, 10)
	o.segDelay = 100 * time.Millisecond
	root := t.TempDir()
	muxer := &fakeMuxer{}
	out := filepath.Join(t.TempDir(), "show.mp4")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	s := newTestSession(o, root, muxer, 2)
	ok, final := s.Run(ctx, o.manifestURL(), out)

	if ok {
		t.Fatal("Run() succeeded despite cancellation")
	}
	if final.Status != domain.StatusCancelled {
		t.Errorf("status = %q, want cancelled", final.Status)
	}
	if muxer.callCount() != 0 {
		t.Error("muxer invoked after cancellation")
	}
	// Whatever made it to disk stays there.
	if _, err := os.Stat(cacheDir(root, o.manifestURL())); err != nil {
		t.Errorf("cache dir gone after cancellation: %v", err)
	}
}

func TestSessionBadManifest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	s := NewSession(SessionConfig{Workers: 2, Retries: 3, RetryWait: time.Millisecond},
		srv.Client(), cache.NewStore(t.TempDir()), &fakeMuxer{}, nil, nil)
	ok, final := s.Run(context.Background(), srv.URL+"/index.m3u8", "out.mp4")

	if ok {
		t.Fatal("Run() succeeded with an unreachable manifest")
	}
	if final.Status != domain.StatusFailed || len(final.Errors) == 0 {
		t.Errorf("final = %+v, want failed with an error", final)
	}
}

func TestNewSessionClampsWorkers(t *testing.T) {
	s := NewSession(SessionConfig{Workers: 100}, nil, nil, nil, nil, nil)
	if s.cfg.Workers != 32 {
		t.Errorf("workers = %d, want clamp to 32", s.cfg.Workers)
	}
	s = NewSession(SessionConfig{Workers: 0}, nil, nil, nil, nil, nil)
	if s.cfg.Workers != 1 {
		t.Errorf("workers = %d, want clamp to 1", s.cfg.Workers)
	}
}
