package main

import (
	"fmt"
	"os"

	"github.com/averol/gohls/internal/app"
	"github.com/averol/gohls/internal/infra/config"
	"github.com/averol/gohls/internal/infra/logger"
	"github.com/averol/gohls/internal/merge"
	"github.com/spf13/cobra"
)

var version = "1.0.0"

var configPath string

var rootCmd = &cobra.Command{
	Use:     "gohls",
	Short:   "gohls is a resumable HLS stream downloader",
	Long:    "gohls fetches HLS media segments concurrently into a resumable on-disk cache and merges them into a single file with ffmpeg.",
	Version: version,
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml")
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newAppContext wires config, logging, and the muxer; the store is attached
// only by commands that need persistence.
func newAppContext(stdout bool) (*app.Context, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log.Path, logger.ParseLevel(cfg.Log.Level), stdout && cfg.Log.IncludeStdout)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	muxer, err := merge.NewFFmpeg(cfg.Merge.FFmpegPath)
	if err != nil {
		return nil, err
	}

	appCtx := app.NewContext(cfg, log)
	appCtx.Muxer = muxer
	return appCtx, nil
}
