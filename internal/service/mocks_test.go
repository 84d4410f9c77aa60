package service

import (
	"context"
	"sync"

	"zapcentral/pkg/wpp/types"

	"github.com/stretchr/testify/mock"
)

// Mock adapter handle
type mockClient struct {
	mock.Mock
}

func (m *mockClient) SendText(ctx context.Context, chatID, body string) error {
	args := m.Called(ctx, chatID, body)
	return args.Error(0)
}

func (m *mockClient) HostDevice(ctx context.Context) (*types.HostDevice, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.HostDevice), args.Error(1)
}

func (m *mockClient) State(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

func newIdleClient() *mockClient {
	client := &mockClient{}
	client.On("Close").Return(nil).Maybe()
	client.On("HostDevice", mock.Anything).Return(nil, nil).Maybe()
	return client
}

// stubConnector hands out a fixed client (or error) and signals each
// completed connect so tests can wait for the async handshake.
type stubConnector struct {
	mu        sync.Mutex
	client    types.Client
	err       error
	connected chan string
}

func newStubConnector(client types.Client) *stubConnector {
	return &stubConnector{
		client:    client,
		connected: make(chan string, 16),
	}
}

func (s *stubConnector) Connect(ctx context.Context, sessionID string, handler types.EventHandler) (types.Client, error) {
	s.mu.Lock()
	client, err := s.client, s.err
	s.mu.Unlock()

	defer func() { s.connected <- sessionID }()
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (s *stubConnector) failWith(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// sentMessage records one SendMessage call on the stub directory.
type sentMessage struct {
	SessionID string
	Target    string
	Body      string
}

// stubDirectory is a SessionDirectory with a fixed resolution answer.
type stubDirectory struct {
	mu        sync.Mutex
	sessionID string
	ok        bool
	sendErr   error
	sent      []sentMessage
}

func (d *stubDirectory) ConnectedSession(preferredID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.ok {
		return "", false
	}
	if preferredID != "" && preferredID != d.sessionID {
		return "", false
	}
	return d.sessionID, true
}

func (d *stubDirectory) SendMessage(ctx context.Context, sessionID, target, body string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sendErr != nil {
		return d.sendErr
	}
	d.sent = append(d.sent, sentMessage{SessionID: sessionID, Target: target, Body: body})
	return nil
}

func (d *stubDirectory) sentMessages() []sentMessage {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]sentMessage, len(d.sent))
	copy(out, d.sent)
	return out
}

// blockingDirectory parks every send until its context is canceled and
// signals once the first send is in flight.
type blockingDirectory struct {
	started chan struct{}
}

func (d *blockingDirectory) ConnectedSession(preferredID string) (string, bool) {
	return "session_5511999998888", true
}

func (d *blockingDirectory) SendMessage(ctx context.Context, sessionID, target, body string) error {
	select {
	case d.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return ctx.Err()
}
