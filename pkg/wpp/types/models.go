package types

import "time"

// HostDevice describes the phone paired to a session, as reported by the
// automation server.
type HostDevice struct {
	ID       string `json:"id"`
	PushName string `json:"pushname"`
	Battery  *int   `json:"battery"`
	Plugged  *bool  `json:"plugged"`
	Platform string `json:"platform"`
}

// Event is one frame of the session event feed. The automation server
// emits "qr" frames while a session awaits pairing and "state" frames on
// every connection state transition.
type Event struct {
	Event   string `json:"event"`
	Session string `json:"session"`
	State   string `json:"state,omitempty"`
	QR      *QR    `json:"qr,omitempty"`
}

// Event kinds on the feed.
const (
	EventQR    = "qr"
	EventState = "state"
)

// QR carries the pairing payloads of a "qr" frame.
type QR struct {
	Base64 string `json:"base64"`
	ASCII  string `json:"ascii"`
}

// StartSessionRequest is the body for starting a session on the server.
type StartSessionRequest struct {
	Session   string `json:"session"`
	TokensDir string `json:"tokensDir,omitempty"`
	Waiting   bool   `json:"waitQrCode"`
}

// SendMessageRequest is the body for a text send.
type SendMessageRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// StatusResponse is the generic envelope the automation server answers with.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HostDeviceResponse wraps the host-device query result.
type HostDeviceResponse struct {
	Status   string      `json:"status"`
	Response *HostDevice `json:"response"`
}

// ClientConfig represents the configuration for the automation-server client
type ClientConfig struct {
	BaseURL        string        `json:"base_url"`
	APIKey         string        `json:"api_key"`
	Timeout        time.Duration `json:"timeout"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
}
