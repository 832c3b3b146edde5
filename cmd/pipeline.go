package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/attendance-scanner/internal/camera"
	"github.com/kozaktomas/attendance-scanner/internal/capture"
	"github.com/kozaktomas/attendance-scanner/internal/config"
	"github.com/kozaktomas/attendance-scanner/internal/recognition"
	"github.com/kozaktomas/attendance-scanner/internal/session"
)

// addPipelineFlags registers the flags shared by serve and scan.
func addPipelineFlags(cmd *cobra.Command) {
	cmd.Flags().String("camera", "", "MJPEG camera stream URL (overrides CAMERA_URL)")
	cmd.Flags().String("org", "", "Organization ID sent with every frame (overrides ORGANIZATION_ID)")
	cmd.Flags().Int("refresh-hz", 0, "Capture loop tick rate (overrides CAPTURE_REFRESH_HZ)")
}

// applyPipelineFlags copies explicitly set flags over the environment config.
func applyPipelineFlags(cmd *cobra.Command, cfg *config.Config) {
	if v := mustGetString(cmd, "camera"); v != "" {
		cfg.Camera.URL = v
	}
	if v := mustGetString(cmd, "org"); v != "" {
		cfg.Recognition.OrganizationID = v
	}
	if v := mustGetInt(cmd, "refresh-hz"); v > 0 {
		cfg.Capture.RefreshHz = v
	}
}

// newRecognitionClient creates the recognition client, honoring --capture.
func newRecognitionClient(cfg *config.Config) (*recognition.Client, error) {
	if cfg.Recognition.URL == "" {
		return nil, errors.New("RECOGNITION_URL environment variable is required")
	}

	client := recognition.NewClient(cfg.Recognition.URL, cfg.Recognition.RecognizePath, cfg.Recognition.HealthPath, cfg.Recognition.Timeout)
	if captureDir != "" {
		if err := client.SetCaptureDir(captureDir); err != nil {
			return nil, fmt.Errorf("setting capture dir: %w", err)
		}
		fmt.Printf("Capturing recognition responses to %s\n", captureDir)
	}
	return client, nil
}

func newMJPEGSource(cfg *config.Config) *camera.MJPEGSource {
	return camera.NewMJPEGSource(cfg.Camera.URL, cfg.Camera.Width, cfg.Camera.Height, cfg.Camera.ReadyTimeout)
}

func newScheduler(cfg *config.Config, source camera.Source, recognizer capture.Recognizer) *capture.Scheduler {
	return capture.NewScheduler(source, recognizer, session.NewCollector(), capture.Options{
		OrganizationID: cfg.Recognition.OrganizationID,
		FrameInterval:  cfg.Tuning.Capture.FrameInterval(),
		Cooldown:       cfg.Tuning.Capture.Cooldown(),
		Staleness:      cfg.Tuning.Capture.Staleness(),
		RefreshHz:      cfg.Capture.RefreshHz,
	})
}
