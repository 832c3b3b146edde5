// Package recognition is the transport to the remote face recognition service.
package recognition

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kozaktomas/attendance-scanner/internal/constants"
)

const (
	defaultRecognitionURL = "http://localhost:8000"
	defaultRecognizePath  = "/api/recognize/"
	defaultHealthPath     = "/api/health/"
)

// ErrTransport wraps every failed recognition or health call: network errors,
// timeouts, non-2xx statuses, undecodable bodies and success=false payloads.
var ErrTransport = errors.New("recognition transport error")

// Client submits frames to the recognition service. It never retries.
type Client struct {
	baseURL       string
	recognizePath string
	healthPath    string
	timeout       time.Duration
	client        *http.Client
	captureDir    string
}

// NewClient creates a new recognition client
func NewClient(baseURL, recognizePath, healthPath string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultRecognitionURL
	}
	if recognizePath == "" {
		recognizePath = defaultRecognizePath
	}
	if healthPath == "" {
		healthPath = defaultHealthPath
	}
	if timeout <= 0 {
		timeout = constants.DefaultRecognitionTimeout
	}
	return &Client{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		recognizePath: "/" + strings.TrimPrefix(recognizePath, "/"),
		healthPath:    "/" + strings.TrimPrefix(healthPath, "/"),
		timeout:       timeout,
		client:        &http.Client{},
	}
}

// Recognize submits one JPEG frame and returns the reported faces.
func (c *Client) Recognize(ctx context.Context, frame []byte, organizationID string) (*Response, error) {
	if len(frame) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrTransport)
	}

	reqBody, err := json.Marshal(recognizeRequest{
		Image:          base64.StdEncoding.EncodeToString(frame),
		OrganizationID: organizationID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.recognizePath, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	c.captureResponse("recognize", body)

	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", ErrTransport, err)
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = resp.Message
		}
		return nil, fmt.Errorf("%w: service reported failure: %s", ErrTransport, msg)
	}

	return &resp, nil
}

// Health probes the service and its database dependency.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.HealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+c.healthPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	start := time.Now()
	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	health := parseHealth(body)
	health.Latency = time.Since(start).Round(time.Millisecond).String()
	return health, nil
}

// do sends the request and returns the body of a 2xx response.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: API error (status %d): %s", ErrTransport, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return body, nil
}

// parseHealth reads a loosely structured health document such as
// {"status": "ok", "database": "connected"} or {"ready": false}. A bare JSON
// bool or string is the answer itself. An empty or non-JSON 2xx body counts
// as ready.
func parseHealth(body []byte) *Health {
	var raw any
	if len(bytes.TrimSpace(body)) == 0 || json.Unmarshal(body, &raw) != nil || raw == nil {
		return &Health{Ready: true, Status: "ok"}
	}

	switch v := raw.(type) {
	case bool:
		return &Health{Ready: v, Status: readiness(v)}
	case string:
		return &Health{Ready: isHealthyValue(v), Status: v}
	case map[string]any:
		return parseHealthObject(v)
	default:
		return &Health{Status: fmt.Sprintf("unrecognized health body %s", strings.TrimSpace(string(body)))}
	}
}

func parseHealthObject(raw map[string]any) *Health {
	h := &Health{}
	if status := firstOf(raw, "status", "state"); status != nil {
		h.Status = fmt.Sprint(status)
	}
	if down := firstOf(raw, "database", "db", "supabase", "downstream"); down != nil {
		h.Downstream = fmt.Sprint(down)
	}

	if flag := firstOf(raw, "ready", "healthy", "ok"); flag != nil {
		h.Ready = isHealthyValue(fmt.Sprint(flag))
		if h.Status == "" {
			h.Status = readiness(h.Ready)
		}
	} else {
		if h.Status == "" {
			h.Status = "ok"
		}
		h.Ready = isHealthyValue(h.Status)
	}
	if h.Downstream != "" && !isHealthyValue(h.Downstream) {
		h.Ready = false
	}
	return h
}

func readiness(ready bool) string {
	if ready {
		return "ready"
	}
	return "not ready"
}

func firstOf(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return nil
}

func isHealthyValue(v string) bool {
	switch strings.ToLower(v) {
	case "ok", "healthy", "up", "ready", "connected", "true":
		return true
	}
	return false
}

// SetCaptureDir enables response capturing to the specified directory.
// Pass an empty string to disable capturing.
func (c *Client) SetCaptureDir(dir string) error {
	if dir == "" {
		c.captureDir = ""
		return nil
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("could not create capture directory: %w", err)
	}
	c.captureDir = dir
	return nil
}

// captureResponse saves the response body to a file if capturing is enabled.
func (c *Client) captureResponse(endpoint string, body []byte) {
	if c.captureDir == "" {
		return
	}

	filename := fmt.Sprintf("%s_%s.json", endpoint, time.Now().Format("20060102_150405.000"))
	path := filepath.Join(c.captureDir, filename)

	// Pretty-print JSON if possible
	var prettyJSON bytes.Buffer
	if err := json.Indent(&prettyJSON, body, "", "  "); err == nil {
		body = prettyJSON.Bytes()
	}

	// WriteFile error is non-critical for capturing - log and continue
	if err := os.WriteFile(path, body, 0600); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to capture response to %s: %v\n", path, err)
	}
}
