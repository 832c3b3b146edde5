package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/attendance-scanner/internal/config"
	"github.com/kozaktomas/attendance-scanner/internal/constants"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the recognition service is ready",
	RunE:  runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	client, err := newRecognitionClient(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), constants.HealthTimeout)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		return fmt.Errorf("recognition service unreachable: %w", err)
	}

	fmt.Printf("Recognition service: %s\n", cfg.Recognition.URL)
	fmt.Printf("  Status:     %s\n", health.Status)
	if health.Downstream != "" {
		fmt.Printf("  Database:   %s\n", health.Downstream)
	}
	fmt.Printf("  Latency:    %s\n", health.Latency)

	if !health.Ready {
		return fmt.Errorf("recognition service is not ready")
	}
	fmt.Println("Ready")
	return nil
}
