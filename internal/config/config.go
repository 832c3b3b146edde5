package config

import (
	_ "embed"
	"os"
	"strconv"
	"time"

	"github.com/kozaktomas/attendance-scanner/internal/constants"
	"gopkg.in/yaml.v3"
)

//go:embed tuning.yaml
var tuningYAML []byte

type Config struct {
	Recognition RecognitionConfig
	Camera      CameraConfig
	Capture     CaptureConfig
	Web         WebConfig
	Tuning      TuningConfig
}

type RecognitionConfig struct {
	URL            string        // base URL of the recognition service
	RecognizePath  string        // defaults to /api/recognize/
	HealthPath     string        // defaults to /api/health/
	Timeout        time.Duration // per-request timeout
	OrganizationID string        // context key sent with every frame
}

type CameraConfig struct {
	URL          string // MJPEG stream URL; empty means frames are pushed by the browser
	ReadyTimeout time.Duration
	Width        int
	Height       int
}

type CaptureConfig struct {
	RefreshHz int // tick rate of the capture loop
}

type WebConfig struct {
	Host string
	Port int
}

type TuningConfig struct {
	Overlay OverlayTuning `yaml:"overlay"`
	Capture CaptureTuning `yaml:"capture"`
}

type OverlayTuning struct {
	Palette []string `yaml:"palette"`
	Success string   `yaml:"success"`
	Glow    float64  `yaml:"glow"`
	Stroke  float64  `yaml:"stroke"`
}

type CaptureTuning struct {
	FrameIntervalMS int `yaml:"frame_interval_ms"`
	CooldownMS      int `yaml:"cooldown_ms"`
	StalenessMS     int `yaml:"staleness_ms"`
}

// FrameInterval returns the throttle interval, falling back to the default.
func (c CaptureTuning) FrameInterval() time.Duration {
	return msOrDefault(c.FrameIntervalMS, constants.FrameInterval)
}

// Cooldown returns the post-confirmation pause, falling back to the default.
func (c CaptureTuning) Cooldown() time.Duration {
	return msOrDefault(c.CooldownMS, constants.CooldownWindow)
}

// Staleness returns the track staleness budget, falling back to the default.
func (c CaptureTuning) Staleness() time.Duration {
	return msOrDefault(c.StalenessMS, constants.StalenessBudget)
}

func msOrDefault(ms int, def time.Duration) time.Duration {
	if ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envMillis reads a positive millisecond count from the environment.
func envMillis(key string, defaultVal time.Duration) time.Duration {
	return time.Duration(envInt(key, int(defaultVal/time.Millisecond))) * time.Millisecond
}

// envString returns the env var or the default when unset.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// LoadTuning parses the embedded tuning defaults.
func LoadTuning() TuningConfig {
	var tuning TuningConfig
	if err := yaml.Unmarshal(tuningYAML, &tuning); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded tuning.yaml: " + err.Error())
	}
	return tuning
}

func Load() *Config {
	return &Config{
		Recognition: RecognitionConfig{
			URL:            os.Getenv("RECOGNITION_URL"),
			RecognizePath:  envString("RECOGNITION_RECOGNIZE_PATH", "/api/recognize/"),
			HealthPath:     envString("RECOGNITION_HEALTH_PATH", "/api/health/"),
			Timeout:        envMillis("RECOGNITION_TIMEOUT_MS", constants.DefaultRecognitionTimeout),
			OrganizationID: os.Getenv("ORGANIZATION_ID"),
		},
		Camera: CameraConfig{
			URL:          os.Getenv("CAMERA_URL"),
			ReadyTimeout: envMillis("CAMERA_READY_TIMEOUT_MS", constants.CameraReadyTimeout),
			Width:        envInt("CAMERA_WIDTH", constants.TargetCameraWidth),
			Height:       envInt("CAMERA_HEIGHT", constants.TargetCameraHeight),
		},
		Capture: CaptureConfig{
			RefreshHz: envInt("CAPTURE_REFRESH_HZ", constants.DefaultRefreshHz),
		},
		Web: WebConfig{
			Host: envString("WEB_HOST", "0.0.0.0"),
			Port: envInt("WEB_PORT", 8080),
		},
		Tuning: LoadTuning(),
	}
}
