package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != "8750" {
		t.Errorf("port = %q, want 8750", cfg.Port)
	}
	if cfg.Download.Workers != 16 {
		t.Errorf("workers = %d, want 16", cfg.Download.Workers)
	}
	if cfg.Download.Retries != 3 {
		t.Errorf("retries = %d, want 3", cfg.Download.Retries)
	}
	if cfg.Download.RetryWait != time.Second {
		t.Errorf("retry_wait = %v, want 1s", cfg.Download.RetryWait)
	}
	if cfg.Download.SegmentTimeout != 30*time.Second {
		t.Errorf("segment_timeout = %v, want 30s", cfg.Download.SegmentTimeout)
	}
	if cfg.Cache.Root == "" || cfg.Store.SQLitePath == "" {
		t.Error("cache root and store path should have defaults")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
port: "9000"
download:
  workers: 8
  retries: 5
  retry_wait: 2s
cache:
  root: /tmp/hls-cache
merge:
  ffmpeg_path: /opt/ffmpeg
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != "9000" {
		t.Errorf("port = %q, want 9000", cfg.Port)
	}
	if cfg.Download.Workers != 8 || cfg.Download.Retries != 5 || cfg.Download.RetryWait != 2*time.Second {
		t.Errorf("download config = %+v", cfg.Download)
	}
	if cfg.Cache.Root != "/tmp/hls-cache" {
		t.Errorf("cache root = %q", cfg.Cache.Root)
	}
	if cfg.Merge.FFmpegPath != "/opt/ffmpeg" {
		t.Errorf("ffmpeg_path = %q", cfg.Merge.FFmpegPath)
	}
}

func TestLoadExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for explicit missing config file")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GOHLS_DOWNLOAD_WORKERS", "4")
	t.Setenv("GOHLS_PORT", "8123")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Download.Workers != 4 {
		t.Errorf("workers = %d, want 4 from env", cfg.Download.Workers)
	}
	if cfg.Port != "8123" {
		t.Errorf("port = %q, want 8123 from env", cfg.Port)
	}
}

func TestApplyBoundsClamps(t *testing.T) {
	tests := []struct {
		name        string
		workers     int
		wantWorkers int
	}{
		{"zero workers", 0, 1},
		{"negative workers", -3, 1},
		{"over max", 100, MaxWorkers},
		{"in range", 12, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.Download.Workers = tt.workers
			cfg.applyBounds()
			if cfg.Download.Workers != tt.wantWorkers {
				t.Errorf("workers = %d, want %d", cfg.Download.Workers, tt.wantWorkers)
			}
		})
	}

	cfg := &Config{}
	cfg.applyBounds()
	if cfg.Download.Retries != 1 {
		t.Errorf("retries = %d, want clamp to 1", cfg.Download.Retries)
	}
	if cfg.Download.RetryWait != time.Second {
		t.Errorf("retry_wait = %v, want 1s", cfg.Download.RetryWait)
	}
	if cfg.Download.SegmentTimeout != 30*time.Second {
		t.Errorf("segment_timeout = %v, want 30s", cfg.Download.SegmentTimeout)
	}
}
