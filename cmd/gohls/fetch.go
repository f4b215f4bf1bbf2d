package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/averol/gohls/internal/cache"
	"github.com/averol/gohls/internal/domain"
	"github.com/averol/gohls/internal/engine"
	"github.com/averol/gohls/internal/hls"
	"github.com/spf13/cobra"
)

var (
	fetchOutput   string
	fetchName     string
	fetchThreads  int
	fetchVariants bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <manifest-url>",
	Short: "Download one HLS stream to a local file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manifestURL := args[0]

		appCtx, err := newAppContext(false)
		if err != nil {
			return err
		}
		cfg := appCtx.Config

		client := hls.NewClient(hls.ClientConfig{
			Timeout:   cfg.Download.SegmentTimeout,
			UserAgent: cfg.HTTP.UserAgent,
			Referer:   cfg.HTTP.Referer,
			Origin:    cfg.HTTP.Origin,
		})

		if fetchVariants {
			resolver := &hls.StreamResolver{Client: client}
			variants, err := resolver.Variants(cmd.Context(), manifestURL)
			if err != nil {
				return err
			}
			for i, v := range variants {
				fmt.Printf("[%d] %s\n", i+1, v.Label)
			}
			return nil
		}

		name := fetchName
		if name == "" {
			name = "output"
		}
		if !strings.HasSuffix(name, ".mp4") {
			name += ".mp4"
		}
		outputPath := filepath.Join(fetchOutput, name)

		threads := fetchThreads
		if threads <= 0 {
			threads = cfg.Download.Workers
		}

		session := engine.NewSession(engine.SessionConfig{
			Workers:        threads,
			Retries:        cfg.Download.Retries,
			RetryWait:      cfg.Download.RetryWait,
			SegmentTimeout: cfg.Download.SegmentTimeout,
		}, client, cache.NewStore(cfg.Cache.Root), appCtx.Muxer, appCtx.Logger, printProgress)

		// Ctrl+C requests cooperative cancellation; the cache stays on
		// disk so the same command resumes the download.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ok, final := session.Run(ctx, manifestURL, outputPath)
		fmt.Println()
		if !ok {
			for _, e := range final.Errors {
				fmt.Fprintf(os.Stderr, "  - %s\n", e)
			}
			switch final.Status {
			case domain.StatusCancelled:
				fmt.Println("download cancelled, cache preserved - run again to resume")
			default:
				fmt.Println("download failed, cache preserved - run again to retry")
			}
			os.Exit(1)
		}

		fmt.Printf("saved %s (%.2f MB)\n", outputPath, float64(final.FileSize)/(1024*1024))
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "./", "output directory")
	fetchCmd.Flags().StringVarP(&fetchName, "name", "n", "", "output filename")
	fetchCmd.Flags().IntVarP(&fetchThreads, "threads", "t", 0, "number of download workers")
	fetchCmd.Flags().BoolVar(&fetchVariants, "variants", false, "list quality variants and exit")
}

// printProgress renders the single-line progress bar. It runs inside the
// session's counter lock, so it only formats and writes.
func printProgress(p domain.Progress) {
	switch p.Status {
	case domain.StatusDownloading:
		const barLength = 40
		filled := int(barLength * p.Percent / 100)
		if filled > barLength {
			filled = barLength
		}
		bar := strings.Repeat("#", filled) + strings.Repeat("-", barLength-filled)
		fmt.Printf("\r[%s] %.1f%% | %d/%d | %.1f seg/s | %.2f MB/s | ETA: %ds   ",
			bar, p.Percent, p.DownloadedSegments, p.TotalSegments,
			p.SpeedSegments, p.SpeedMBps, p.ETASeconds)
	case domain.StatusMerging:
		fmt.Printf("\nmerging %d segments...\n", p.TotalSegments)
	}
}
