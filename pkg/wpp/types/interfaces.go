package types

import "context"

// Client is the handle to one established session on the automation
// server. A handle is owned by exactly one registry session.
type Client interface {
	SendText(ctx context.Context, chatID, body string) error
	HostDevice(ctx context.Context) (*HostDevice, error)
	State(ctx context.Context) (string, error)
	Close() error
}

// EventHandler receives the asynchronous lifecycle events of a session.
// Events for one session arrive in emission order; no cross-session
// ordering is guaranteed.
type EventHandler interface {
	OnQR(sessionID, qrImage, qrASCII string)
	OnStateChange(sessionID, rawState string)
}

// Connector establishes sessions against the automation server and wires
// their event feeds to a handler.
type Connector interface {
	Connect(ctx context.Context, sessionID string, handler EventHandler) (Client, error)
}
