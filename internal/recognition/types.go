package recognition

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Status is the recognition state the service reports for a face.
type Status string

// Status values reported by the recognition endpoint.
const (
	StatusDetecting Status = "detecting"
	StatusConfirmed Status = "confirmed"
)

// MemberID is the member identity reported by the service. The backend sends
// either a JSON string or a number, both are accepted.
type MemberID string

func (m *MemberID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*m = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("unmarshal member id: %w", err)
		}
		*m = MemberID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("unmarshal member id: %w", err)
	}
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		*m = MemberID(strconv.FormatInt(i, 10))
		return nil
	}
	*m = MemberID(n.String())
	return nil
}

// Face is a single observation in a recognition response.
type Face struct {
	BBox       []float64 `json:"bbox"` // [x1, y1, x2, y2] in submitted frame pixels
	ID         MemberID  `json:"id,omitempty"`
	Name       string    `json:"name,omitempty"`
	Status     Status    `json:"status"`
	Confidence *float64  `json:"confidence,omitempty"`
}

// Response is the success payload of the recognition endpoint.
type Response struct {
	Success     bool   `json:"success"`
	Faces       []Face `json:"faces"`
	ShouldPause bool   `json:"shouldPause,omitempty"`
	Message     string `json:"message,omitempty"`
	Error       string `json:"error,omitempty"`
}

// recognizeRequest is the body sent with every frame.
type recognizeRequest struct {
	Image          string `json:"image"` // base64 JPEG without data-URL prefix
	OrganizationID string `json:"organization_id,omitempty"`
}

// Health is the result of a health probe.
type Health struct {
	Ready      bool   `json:"ready"`
	Status     string `json:"status"`
	Downstream string `json:"downstream,omitempty"`
	Latency    string `json:"latency"`
}
