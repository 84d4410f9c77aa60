package models

import (
	"time"

	"zapcentral/pkg/wpp/types"
)

// SessionStatus represents the normalized state of a WhatsApp session
type SessionStatus string

const (
	SessionStatusAwaitingPairing SessionStatus = "AWAITING_PAIRING"
	SessionStatusAwaitingScan    SessionStatus = "AWAITING_SCAN"
	SessionStatusConnected       SessionStatus = "CONNECTED"
	SessionStatusDisconnected    SessionStatus = "DISCONNECTED"
	SessionStatusError           SessionStatus = "ERROR"
	SessionStatusUnknown         SessionStatus = "UNKNOWN"
)

// Device is a snapshot of the paired physical device. It is replaced
// wholesale on every refresh, never merged.
type Device struct {
	ID           string  `json:"id"`
	DisplayName  string  `json:"displayName"`
	BatteryLevel *string `json:"batteryLevel"`
	IsCharging   *bool   `json:"isCharging"`
	Platform     *string `json:"platform"`
}

// Session is one paired messaging identity. The Client handle is owned
// exclusively by the session and is nil until the adapter connect resolves.
type Session struct {
	ID          string
	Phone       string
	PhoneIntl   string
	Company     string
	Status      SessionStatus
	RawStatus   string
	QRCode      string
	QRCodeASCII string
	UpdatedAt   time.Time
	ConnectedAt *time.Time
	Devices     []Device
	LastError   string
	Client      types.Client
}

// SessionView is the serialized form handed to external collaborators.
type SessionView struct {
	SessionID   string     `json:"sessionId"`
	Phone       string     `json:"phone"`
	PhoneIntl   string     `json:"phoneIntl"`
	Company     string     `json:"company"`
	Status      string     `json:"status"`
	QRCode      *string    `json:"qrCode"`
	QRCodeASCII *string    `json:"qrCodeAscii"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	ConnectedAt *time.Time `json:"connectedAt"`
	Devices     []Device   `json:"devices"`
	Error       *string    `json:"error"`
}

// View builds the serialized snapshot of a session. QR payloads and the
// last error serialize as null when absent.
func (s *Session) View() SessionView {
	view := SessionView{
		SessionID:   s.ID,
		Phone:       s.Phone,
		PhoneIntl:   s.PhoneIntl,
		Company:     s.Company,
		Status:      string(s.Status),
		UpdatedAt:   s.UpdatedAt,
		ConnectedAt: s.ConnectedAt,
		Devices:     s.Devices,
	}
	if view.Devices == nil {
		view.Devices = []Device{}
	}
	if s.QRCode != "" {
		qr := s.QRCode
		view.QRCode = &qr
	}
	if s.QRCodeASCII != "" {
		ascii := s.QRCodeASCII
		view.QRCodeASCII = &ascii
	}
	if s.LastError != "" {
		errMsg := s.LastError
		view.Error = &errMsg
	}
	return view
}
