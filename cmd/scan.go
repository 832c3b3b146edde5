package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/attendance-scanner/internal/capture"
	"github.com/kozaktomas/attendance-scanner/internal/config"
	"github.com/kozaktomas/attendance-scanner/internal/session"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a headless capture session from an MJPEG camera",
	Long: `Run a capture session in the terminal. Frames are read from the MJPEG
camera, submitted to the recognition service and every confirmed member is
printed as attendance is recorded.

Examples:
  attendance-scanner scan --camera http://10.0.0.5:8081/stream
  attendance-scanner scan --duration 10m --org 42`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().Duration("duration", 0, "Stop after this long (0 runs until Ctrl+C)")
	addPipelineFlags(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	applyPipelineFlags(cmd, cfg)

	if cfg.Camera.URL == "" {
		return errors.New("CAMERA_URL environment variable or --camera flag is required")
	}

	client, err := newRecognitionClient(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if d := mustGetDuration(cmd, "duration"); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	scheduler := newScheduler(cfg, newMJPEGSource(cfg), client)
	events := scheduler.Events().Subscribe()
	defer scheduler.Events().Unsubscribe(events)

	fmt.Printf("Connecting to camera %s...\n", cfg.Camera.URL)
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("starting capture: %w", err)
	}
	fmt.Println("Scanning. Press Ctrl+C to stop")

	done := make(chan struct{})
	go func() {
		defer close(done)
		scheduler.Run(ctx)
	}()

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("Scanning"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("responses"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)

	for {
		select {
		case <-done:
			_ = bar.Finish()
			printScanSummary(scheduler.Collector())
			return nil
		case ev := <-events:
			handleScanEvent(bar, ev)
		}
	}
}

func handleScanEvent(bar *progressbar.ProgressBar, ev capture.Event) {
	switch ev.Type {
	case capture.EventTracks:
		bar.Describe("Scanning")
		_ = bar.Add(1)
	case capture.EventRecognized:
		entry, ok := ev.Data.(session.Entry)
		if !ok {
			return
		}
		_ = bar.Clear()
		fmt.Printf("%s  %s (%.0f%%)\n", entry.Timestamp.Format("15:04:05"), entry.Message, entry.Confidence*100)
	case capture.EventPaused:
		bar.Describe("Paused")
	case capture.EventError:
		bar.Describe("Recognizer error")
	}
}

func printScanSummary(collector *session.Collector) {
	stats := collector.Stats()
	fmt.Println()
	fmt.Println("Session summary")
	fmt.Printf("  Recognized:     %d\n", stats.Recognized)
	fmt.Printf("  Unique members: %d\n", stats.UniqueMembers)
	fmt.Printf("  Repeats:        %d\n", stats.Repeats)
}
