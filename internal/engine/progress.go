package engine

import (
	"sync"
	"time"

	"github.com/averol/gohls/internal/domain"
)

// tracker holds the run counters behind one mutex. Snapshots are computed
// and the sink invoked while the lock is held, so a snapshot always matches
// the counters that produced it and callbacks arrive in counter order as
// seen by each worker.
type tracker struct {
	mu sync.Mutex

	total         int
	cachedAtStart int
	bytesAtStart  int64

	downloaded int
	failed     int
	bytes      int64
	errors     []string

	start time.Time
	sink  domain.ProgressFunc
}

func newTracker(total, cachedAtStart int, cachedBytes int64, sink domain.ProgressFunc) *tracker {
	if sink == nil {
		sink = func(domain.Progress) {}
	}
	return &tracker{
		total:         total,
		cachedAtStart: cachedAtStart,
		bytesAtStart:  cachedBytes,
		downloaded:    cachedAtStart,
		bytes:         cachedBytes,
		start:         time.Now(),
		sink:          sink,
	}
}

// segmentDone credits one completed segment and emits a snapshot before the
// lock is released.
func (t *tracker) segmentDone(size int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.downloaded++
	t.bytes += size
	t.sink(t.snapshotLocked(domain.StatusDownloading))
}

// segmentFailed records a segment that exhausted its retry budget. Other
// segments keep going; the error surfaces in the run's error list.
func (t *tracker) segmentFailed(err *domain.SegmentFetchError) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failed++
	t.errors = append(t.errors, err.Error())
}

// recordError appends a run-level error without touching the segment
// counters.
func (t *tracker) recordError(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errors = append(t.errors, msg)
}

// emit publishes a snapshot with the given status, for phase transitions
// that are not tied to a segment completion.
func (t *tracker) emit(status domain.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sink(t.snapshotLocked(status))
}

// final builds the terminal snapshot and publishes it.
func (t *tracker) final(status domain.Status, fileSize int64) domain.Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.snapshotLocked(status)
	p.FileSize = fileSize
	t.sink(p)
	return p
}

func (t *tracker) counts() (downloaded, failed int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.downloaded, t.failed
}

func (t *tracker) snapshotLocked(status domain.Status) domain.Progress {
	elapsed := time.Since(t.start).Seconds()

	var percent float64
	if t.total > 0 {
		percent = float64(t.downloaded) / float64(t.total) * 100
	}

	var segSpeed, mbps float64
	var eta int
	if elapsed > 0 {
		segSpeed = float64(t.downloaded-t.cachedAtStart) / elapsed
		mbps = float64(t.bytes-t.bytesAtStart) / elapsed / (1024 * 1024)
	}
	if segSpeed > 0 {
		eta = int(float64(t.total-t.downloaded) / segSpeed)
	}

	errs := make([]string, len(t.errors))
	copy(errs, t.errors)

	return domain.Progress{
		Status:             status,
		Percent:            percent,
		DownloadedSegments: t.downloaded,
		TotalSegments:      t.total,
		FailedSegments:     t.failed,
		SpeedMBps:          mbps,
		SpeedSegments:      segSpeed,
		ETASeconds:         eta,
		BytesDownloaded:    t.bytes,
		Errors:             errs,
	}
}
