package engine

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/averol/gohls/internal/cache"
	"github.com/averol/gohls/internal/domain"
	"github.com/averol/gohls/internal/hls"
)

// worker drains the queue until it is empty or the session is cancelled.
// The cancellation flag is checked before and after every pop; an attempt
// already on the wire is never aborted, its result is just discarded.
func (s *Session) worker(entry *cache.Entry, q *workQueue, t *tracker) {
	for {
		if s.cancelled.Load() {
			return
		}
		seg, ok := q.pop()
		if !ok {
			return
		}
		if s.cancelled.Load() {
			return
		}
		// A prior run may have completed this index between the resume
		// scan and now; credit it instead of re-fetching.
		if info, err := os.Stat(entry.SegmentPath(seg.Index)); err == nil && info.Size() > 0 {
			t.segmentDone(info.Size())
			continue
		}
		s.fetchSegment(seg, entry, t)
	}
}

// fetchSegment runs the retry loop for one segment: up to Retries attempts
// with a fixed wait in between. Exhausting the budget records a failed
// segment and lets the rest of the pool keep going.
func (s *Session) fetchSegment(seg hls.Segment, entry *cache.Entry, t *tracker) {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.Retries; attempt++ {
		if s.cancelled.Load() {
			return
		}
		data, err := s.fetchOnce(seg.URL)
		if err == nil {
			if s.cancelled.Load() {
				return
			}
			if werr := entry.Write(seg.Index, data); werr != nil {
				// Cache writes failing is not a per-segment condition;
				// abort the whole run.
				s.fail(werr)
				return
			}
			t.segmentDone(int64(len(data)))
			return
		}
		lastErr = err
		if attempt < s.cfg.Retries {
			if s.cancelled.Load() {
				return
			}
			time.Sleep(s.cfg.RetryWait)
		}
	}
	t.segmentFailed(&domain.SegmentFetchError{
		Index:    seg.Index,
		Attempts: s.cfg.Retries,
		Cause:    lastErr,
	})
}

// fetchOnce issues a single GET. The request deliberately carries no
// session context: cancellation declines new attempts but never tears down
// a transfer in flight. The client's timeout bounds each attempt.
func (s *Session) fetchOnce(url string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
