package engine

import "github.com/averol/gohls/internal/hls"

// workQueue hands pending segments to the worker pool. It is filled with
// every non-cached segment and closed before the first worker starts, so a
// receive never blocks: it either yields a segment or reports the queue
// drained.
type workQueue struct {
	ch chan hls.Segment
}

func newWorkQueue(segments []hls.Segment) *workQueue {
	q := &workQueue{ch: make(chan hls.Segment, len(segments))}
	for _, seg := range segments {
		q.ch <- seg
	}
	close(q.ch)
	return q
}

func (q *workQueue) pop() (hls.Segment, bool) {
	seg, ok := <-q.ch
	return seg, ok
}
