package domain

import "fmt"

// ManifestError means the playlist was empty or unparseable. Fatal: nothing
// is fetched after it.
type ManifestError struct {
	URL    string
	Reason string
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("manifest %s: %s", e.URL, e.Reason)
}

// SegmentFetchError records one segment exhausting its retry budget. It is
// aggregated into the run's error list, never fatal on its own.
type SegmentFetchError struct {
	Index    int
	Attempts int
	Cause    error
}

func (e *SegmentFetchError) Error() string {
	return fmt.Sprintf("segment %d: %v", e.Index, e.Cause)
}

func (e *SegmentFetchError) Unwrap() error { return e.Cause }

// CacheIOError means the segment cache directory could not be created or
// written. Fatal to the run.
type CacheIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *CacheIOError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *CacheIOError) Unwrap() error { return e.Err }

// MergeError means the muxer exited non-zero or produced an empty output
// file. Fatal to the run, but the cache is kept so it stays resumable.
type MergeError struct {
	Reason string
	Output string
}

func (e *MergeError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("merge failed: %s: %s", e.Reason, e.Output)
	}
	return "merge failed: " + e.Reason
}
