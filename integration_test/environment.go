package integration_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"zapcentral/internal/database"
	"zapcentral/internal/models"
	"zapcentral/internal/service"
	"zapcentral/pkg/wpp"
	wpptypes "zapcentral/pkg/wpp/types"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// SentMessage is one send-message call recorded by the fake automation
// server.
type SentMessage struct {
	Session string
	Phone   string
	Message string
}

// TestEnvironment wires a real registry, scheduler and store against a
// fake WPPConnect automation server. Event frames are injected through
// EmitQR and EmitState and flow over a real websocket feed.
type TestEnvironment struct {
	t         *testing.T
	logger    *logrus.Logger
	tokensDir string

	db        *database.Database
	registry  *service.Registry
	scheduler *service.ReminderScheduler

	wppServer *httptest.Server

	mu     sync.Mutex
	feeds  map[string]chan wpptypes.Event
	sent   []SentMessage
	device *wpptypes.HostDevice
}

// NewTestEnvironment builds a fully wired environment. Everything is torn
// down through t.Cleanup in reverse construction order.
func NewTestEnvironment(t *testing.T) *TestEnvironment {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	env := &TestEnvironment{
		t:      t,
		logger: logger,
		feeds:  make(map[string]chan wpptypes.Event),
	}

	env.wppServer = httptest.NewServer(env.automationHandler())

	dir := t.TempDir()
	env.tokensDir = filepath.Join(dir, "tokens")

	db, err := database.New(filepath.Join(dir, "reminders.db"))
	require.NoError(t, err)
	env.db = db

	connector := wpp.NewConnector(wpptypes.ClientConfig{
		BaseURL: env.wppServer.URL,
		APIKey:  "integration-key",
		Timeout: 5 * time.Second,
	}, logger)

	env.registry = service.NewRegistry(connector, env.tokensDir, logger)
	env.scheduler = service.NewReminderScheduler(db, env.registry, models.SchedulerConfig{
		IntervalSec:    1,
		LeadTimeMin:    60,
		SendTimeoutSec: 5,
	}, time.UTC, logger)

	t.Cleanup(func() {
		for _, view := range env.registry.ListSessions(context.Background()) {
			_ = env.registry.DeleteSession(view.SessionID)
		}
		_ = db.Close()
		env.wppServer.Close()
	})

	return env
}

func (env *TestEnvironment) automationHandler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/api/{session}/start-session", func(w http.ResponseWriter, r *http.Request) {
		env.writeStatus(w, "success")
	}).Methods(http.MethodPost)

	router.HandleFunc("/api/{session}/close-session", func(w http.ResponseWriter, r *http.Request) {
		env.writeStatus(w, "success")
	}).Methods(http.MethodPost)

	router.HandleFunc("/api/{session}/send-message", func(w http.ResponseWriter, r *http.Request) {
		var req wpptypes.SendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		env.mu.Lock()
		env.sent = append(env.sent, SentMessage{
			Session: mux.Vars(r)["session"],
			Phone:   req.Phone,
			Message: req.Message,
		})
		env.mu.Unlock()
		env.writeStatus(w, "success")
	}).Methods(http.MethodPost)

	router.HandleFunc("/api/{session}/host-device", func(w http.ResponseWriter, r *http.Request) {
		env.mu.Lock()
		device := env.device
		env.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(wpptypes.HostDeviceResponse{
			Status:   "success",
			Response: device,
		})
	}).Methods(http.MethodGet)

	router.HandleFunc("/ws/{session}", func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		feed := env.feed(mux.Vars(r)["session"])

		// CloseRead yields a context canceled when the peer goes away
		ctx := conn.CloseRead(r.Context())
		for {
			select {
			case frame := <-feed:
				if err := wsjson.Write(ctx, conn, frame); err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}).Methods(http.MethodGet)

	return router
}

func (env *TestEnvironment) writeStatus(w http.ResponseWriter, status string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(wpptypes.StatusResponse{Status: status})
}

func (env *TestEnvironment) feed(sessionID string) chan wpptypes.Event {
	env.mu.Lock()
	defer env.mu.Unlock()

	feed, ok := env.feeds[sessionID]
	if !ok {
		feed = make(chan wpptypes.Event, 16)
		env.feeds[sessionID] = feed
	}
	return feed
}

// EmitQR injects a pairing frame into the session's event feed.
func (env *TestEnvironment) EmitQR(sessionID, base64, ascii string) {
	env.feed(sessionID) <- wpptypes.Event{
		Event:   wpptypes.EventQR,
		Session: sessionID,
		QR:      &wpptypes.QR{Base64: base64, ASCII: ascii},
	}
}

// EmitState injects a raw state frame into the session's event feed.
func (env *TestEnvironment) EmitState(sessionID, rawState string) {
	env.feed(sessionID) <- wpptypes.Event{
		Event:   wpptypes.EventState,
		Session: sessionID,
		State:   rawState,
	}
}

// SetHostDevice configures the device the fake server reports.
func (env *TestEnvironment) SetHostDevice(device *wpptypes.HostDevice) {
	env.mu.Lock()
	env.device = device
	env.mu.Unlock()
}

// SentMessages returns a copy of every recorded send.
func (env *TestEnvironment) SentMessages() []SentMessage {
	env.mu.Lock()
	defer env.mu.Unlock()

	out := make([]SentMessage, len(env.sent))
	copy(out, env.sent)
	return out
}

// WaitForStatus polls the registry until the session reaches the wanted
// status or the timeout elapses.
func (env *TestEnvironment) WaitForStatus(sessionID string, status models.SessionStatus, timeout time.Duration) models.SessionView {
	env.t.Helper()

	deadline := time.Now().Add(timeout)
	var last models.SessionView
	for time.Now().Before(deadline) {
		view, err := env.registry.GetSession(context.Background(), sessionID)
		if err == nil {
			last = view
			if view.Status == string(status) {
				return view
			}
		}
		time.Sleep(20 * time.Millisecond)
	}

	env.t.Fatalf("session %s did not reach %s within %v (last status %q)", sessionID, status, timeout, last.Status)
	return models.SessionView{}
}

// SeedReminder inserts a reminder row and returns its id.
func (env *TestEnvironment) SeedReminder(job *models.ReminderJob) int64 {
	env.t.Helper()

	ctx := context.Background()
	conn, err := env.db.Acquire(ctx)
	require.NoError(env.t, err)
	defer func() { _ = conn.Release() }()

	id, err := conn.CreateReminder(ctx, job)
	require.NoError(env.t, err)
	return id
}

// LoadReminder fetches a reminder row by id.
func (env *TestEnvironment) LoadReminder(id int64) *models.ReminderJob {
	env.t.Helper()

	ctx := context.Background()
	conn, err := env.db.Acquire(ctx)
	require.NoError(env.t, err)
	defer func() { _ = conn.Release() }()

	job, err := conn.GetReminder(ctx, id)
	require.NoError(env.t, err)
	require.NotNil(env.t, job, "reminder %d not found", id)
	return job
}
