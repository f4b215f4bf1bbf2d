// Package merge drives the external muxer that concatenates cached
// segments into the final container without re-encoding.
package merge

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/averol/gohls/internal/domain"
)

// FFmpeg concatenates transport-stream segments with stream copy.
type FFmpeg struct {
	BinaryPath string
}

// NewFFmpeg locates the ffmpeg binary. An explicit path skips the PATH
// lookup so a bundled binary can be used.
func NewFFmpeg(path string) (*FFmpeg, error) {
	if path != "" {
		return &FFmpeg{BinaryPath: path}, nil
	}
	resolved, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg binary not found in PATH: %w", err)
	}
	return &FFmpeg{BinaryPath: resolved}, nil
}

// Merge runs the concat demuxer over the ordered list file. A non-zero
// exit is a MergeError carrying the tail of ffmpeg's output.
func (f *FFmpeg) Merge(ctx context.Context, listPath, destPath string) error {
	cmd := exec.CommandContext(ctx, f.BinaryPath, f.args(listPath, destPath)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return &domain.MergeError{
			Reason: fmt.Sprintf("ffmpeg: %v", err),
			Output: tail(string(output), 512),
		}
	}
	return nil
}

func (f *FFmpeg) args(listPath, destPath string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-stats",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-bsf:a", "aac_adtstoasc",
		"-y",
		destPath,
	}
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
