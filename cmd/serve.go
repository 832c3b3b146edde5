package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/attendance-scanner/internal/camera"
	"github.com/kozaktomas/attendance-scanner/internal/config"
	"github.com/kozaktomas/attendance-scanner/internal/overlay"
	"github.com/kozaktomas/attendance-scanner/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web dashboard",
	Long: `Start the Attendance Scanner web dashboard.
Without a camera URL the browser pushes frames from its own camera over a
WebSocket. With --camera (or CAMERA_URL) frames are read from an MJPEG stream.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
	addPipelineFlags(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	applyPipelineFlags(cmd, cfg)
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}

	client, err := newRecognitionClient(cfg)
	if err != nil {
		return err
	}

	style, err := overlay.StyleFromTuning(cfg.Tuning.Overlay)
	if err != nil {
		return fmt.Errorf("invalid overlay tuning: %w", err)
	}

	var (
		source camera.Source
		push   *camera.PushSource
	)
	if cfg.Camera.URL != "" {
		source = newMJPEGSource(cfg)
		fmt.Printf("Reading frames from MJPEG camera %s\n", cfg.Camera.URL)
	} else {
		push = camera.NewPushSource(cfg.Camera.ReadyTimeout)
		source = push
		fmt.Println("Waiting for the browser to push camera frames")
	}

	scheduler := newScheduler(cfg, source, client)
	server := web.NewServer(cfg, scheduler, client, push, overlay.NewRenderer(style))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Attendance Scanner on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
