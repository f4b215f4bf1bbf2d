package domain

// Progress is an immutable snapshot of a run's counters, produced under the
// session's lock and handed to the progress sink. Consumers must not mutate
// it; the engine never does after emission.
type Progress struct {
	Status             Status   `json:"status"`
	Percent            float64  `json:"percent"`
	DownloadedSegments int      `json:"downloaded_segments"`
	TotalSegments      int      `json:"total_segments"`
	FailedSegments     int      `json:"failed_segments"`
	SpeedMBps          float64  `json:"speed_mbps"`
	SpeedSegments      float64  `json:"speed_segments"`
	ETASeconds         int      `json:"eta_seconds"`
	BytesDownloaded    int64    `json:"bytes_downloaded"`
	FileSize           int64    `json:"file_size,omitempty"`
	Errors             []string `json:"errors"`
}

// ProgressFunc receives snapshots. It is called synchronously from whichever
// worker goroutine completed a segment, while the counters lock is held, so
// it must return promptly and must be safe for concurrent callers' state.
type ProgressFunc func(Progress)
