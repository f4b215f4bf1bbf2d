package app

import (
	"context"

	"github.com/averol/gohls/internal/domain"
	"github.com/averol/gohls/internal/hls"
	"github.com/averol/gohls/internal/infra/config"
	"github.com/averol/gohls/internal/infra/logger"
)

// Muxer concatenates the ordered list file into the destination container.
// Narrow on purpose so tests can swap ffmpeg for a fake.
type Muxer interface {
	Merge(ctx context.Context, listPath, destPath string) error
}

// Store persists download records and their latest progress snapshot.
type Store interface {
	SaveDownload(d *domain.Download) error
	GetDownload(id string) (*domain.Download, error)
	ListDownloads() ([]*domain.Download, error)
	DeleteDownload(id string) error
	MarkInterrupted() (int, error)
	Close() error
}

// Resolver lists the quality variants behind a manifest URL. The engine
// itself only ever consumes a chosen variant's manifest URL.
type Resolver interface {
	Variants(ctx context.Context, manifestURL string) ([]hls.Variant, error)
}

// Downloads is the manager surface the API controllers drive.
type Downloads interface {
	Start(req domain.DownloadRequest) (*domain.Download, error)
	Get(id string) (*domain.Download, bool)
	List() []*domain.Download
	Cancel(id string) bool
	Delete(id string) error
}

// Context holds the shared environment: configuration, logging, and the
// high-level interfaces services talk through so packages depend on
// contracts instead of each other.
type Context struct {
	Config *config.Config
	Logger *logger.Logger

	Store     Store
	Muxer     Muxer
	Resolver  Resolver
	Downloads Downloads
}

func NewContext(cfg *config.Config, log *logger.Logger) *Context {
	return &Context{
		Config: cfg,
		Logger: log,
	}
}
