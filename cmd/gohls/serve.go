package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/averol/gohls/internal/api"
	"github.com/averol/gohls/internal/engine"
	"github.com/averol/gohls/internal/hls"
	"github.com/averol/gohls/internal/platform"
	"github.com/averol/gohls/internal/store"
	"github.com/labstack/echo/v5"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx, err := newAppContext(true)
		if err != nil {
			return err
		}
		cfg := appCtx.Config

		if cfg.Merge.FFmpegPath == "" {
			if err := platform.ValidateDependencies(); err != nil {
				return err
			}
		}

		st, err := store.NewPersistentStore(cfg.Store.SQLitePath)
		if err != nil {
			return err
		}
		defer st.Close()
		appCtx.Store = st

		// Anything a dead process left mid-flight is interrupted, not
		// downloading; its cache keeps it resumable.
		if n, err := st.MarkInterrupted(); err != nil {
			appCtx.Logger.Warn("marking interrupted downloads: %v", err)
		} else if n > 0 {
			appCtx.Logger.Info("marked %d interrupted download(s)", n)
		}

		appCtx.Resolver = &hls.StreamResolver{Client: hls.NewClient(hls.ClientConfig{
			Timeout:   cfg.Download.SegmentTimeout,
			UserAgent: cfg.HTTP.UserAgent,
			Referer:   cfg.HTTP.Referer,
			Origin:    cfg.HTTP.Origin,
		})}
		appCtx.Downloads = engine.NewManager(appCtx)

		e := echo.New()
		api.RegisterRoutes(e, appCtx)

		srv := &http.Server{
			Addr:     ":" + cfg.Port,
			Handler:  e,
			ErrorLog: log.New(appCtx.Logger, "", 0),
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			appCtx.Logger.Info("API server listening on %s", srv.Addr)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		case <-ctx.Done():
			appCtx.Logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
		}
		return nil
	},
}
