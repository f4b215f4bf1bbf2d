package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Cache    CacheConfig    `mapstructure:"cache" yaml:"cache"`
	Download DownloadConfig `mapstructure:"download" yaml:"download"`
	Merge    MergeConfig    `mapstructure:"merge" yaml:"merge"`
	HTTP     HTTPConfig     `mapstructure:"http" yaml:"http"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`

	Port string `mapstructure:"port" yaml:"port"`
}

type CacheConfig struct {
	Root string `mapstructure:"root" yaml:"root"`
}

type DownloadConfig struct {
	OutDir         string        `mapstructure:"out_dir" yaml:"out_dir"`
	Workers        int           `mapstructure:"workers" yaml:"workers"`
	Retries        int           `mapstructure:"retries" yaml:"retries"`
	RetryWait      time.Duration `mapstructure:"retry_wait" yaml:"retry_wait"`
	SegmentTimeout time.Duration `mapstructure:"segment_timeout" yaml:"segment_timeout"`
}

type MergeConfig struct {
	FFmpegPath string `mapstructure:"ffmpeg_path" yaml:"ffmpeg_path"`
}

type HTTPConfig struct {
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`
	Referer   string `mapstructure:"referer" yaml:"referer"`
	Origin    string `mapstructure:"origin" yaml:"origin"`
}

type LogConfig struct {
	Path          string `mapstructure:"path" yaml:"path"`
	Level         string `mapstructure:"level" yaml:"level"`
	IncludeStdout bool   `mapstructure:"include_stdout" yaml:"include_stdout"`
}

type StoreConfig struct {
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
}

// MaxWorkers bounds the fetch pool size regardless of what a caller asks
// for.
const MaxWorkers = 32

// Load reads the yaml config file, falling back to defaults when no path
// is given and no config.yaml exists next to the binary. Environment
// variables with the GOHLS_ prefix override file values.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("port", "8750")
	v.SetDefault("cache.root", defaultCacheRoot())
	v.SetDefault("download.out_dir", "./downloads")
	v.SetDefault("download.workers", 16)
	v.SetDefault("download.retries", 3)
	v.SetDefault("download.retry_wait", time.Second)
	v.SetDefault("download.segment_timeout", 30*time.Second)
	v.SetDefault("log.path", "gohls.log")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.include_stdout", true)
	v.SetDefault("store.sqlite_path", defaultStorePath())

	explicit := path != ""
	if path == "" {
		path = "config.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	v.SetEnvPrefix("GOHLS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.applyBounds()
	return &cfg, nil
}

// applyBounds clamps values the engine depends on into sane ranges rather
// than rejecting the config outright.
func (c *Config) applyBounds() {
	if c.Download.Workers < 1 {
		c.Download.Workers = 1
	}
	if c.Download.Workers > MaxWorkers {
		c.Download.Workers = MaxWorkers
	}
	if c.Download.Retries < 1 {
		c.Download.Retries = 1
	}
	if c.Download.RetryWait <= 0 {
		c.Download.RetryWait = time.Second
	}
	if c.Download.SegmentTimeout <= 0 {
		c.Download.SegmentTimeout = 30 * time.Second
	}
	if c.Download.OutDir == "" {
		c.Download.OutDir = "./downloads"
	}
	if c.Cache.Root == "" {
		c.Cache.Root = defaultCacheRoot()
	}
	if c.Store.SQLitePath == "" {
		c.Store.SQLitePath = defaultStorePath()
	}
}

func defaultCacheRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".gohls-cache")
	}
	return filepath.Join(home, ".cache", "gohls")
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "gohls.db")
	}
	return filepath.Join(home, ".local", "share", "gohls", "downloads.db")
}
