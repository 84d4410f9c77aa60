package service

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"zapcentral/internal/constants"
	"zapcentral/internal/errors"
	"zapcentral/internal/models"
	"zapcentral/internal/phone"
	"zapcentral/internal/privacy"
	"zapcentral/pkg/wpp/types"

	"github.com/sirupsen/logrus"
)

// Raw adapter states that normalize to CONNECTED / DISCONNECTED. Matching
// is case-insensitive; anything else passes through uppercased.
var (
	connectedStates = map[string]struct{}{
		"islogged":      {},
		"qrreadsuccess": {},
		"inchat":        {},
		"connected":     {},
		"open":          {},
	}
	disconnectedStates = map[string]struct{}{
		"qrreadfail":         {},
		"notlogged":          {},
		"desconnectedmobile": {},
		"browserclose":       {},
		"autoclosecalled":    {},
		"disconnected":       {},
	}
)

// Registry owns the in-memory session map: creation, event-driven status
// transitions and teardown. One session per phone number at a time.
type Registry struct {
	connector      types.Connector
	tokensDir      string
	logger         *logrus.Logger
	connectTimeout time.Duration
	now            func() time.Time

	mu       sync.RWMutex
	sessions map[string]*models.Session
}

// NewRegistry creates an empty registry bound to one adapter connector.
func NewRegistry(connector types.Connector, tokensDir string, logger *logrus.Logger) *Registry {
	return &Registry{
		connector:      connector,
		tokensDir:      tokensDir,
		logger:         logger,
		connectTimeout: time.Duration(constants.DefaultConnectTimeout) * time.Second,
		now:            time.Now,
		sessions:       make(map[string]*models.Session),
	}
}

// CreateSession validates the phone, derives the session id and starts an
// asynchronous adapter connect. It returns immediately; pairing progress
// arrives through the event callbacks. Calling it again for the same phone
// returns the existing session unless that session is already CONNECTED.
func (r *Registry) CreateSession(rawPhone, company string) (models.SessionView, error) {
	localDigits := phone.NormalizeLocal(phone.SanitizeDigits(rawPhone))
	companyName := strings.TrimSpace(company)
	// Cap by runes, not bytes, so accented names are never cut mid-character
	if runes := []rune(companyName); len(runes) > constants.MaxCompanyNameLength {
		companyName = string(runes[:constants.MaxCompanyNameLength])
	}

	if len(localDigits) < constants.MinLocalPhoneDigits {
		return models.SessionView{}, errors.NewValidationError("phone",
			"invalid phone: area code plus number required")
	}

	intlDigits := phone.EnsureCountryCode(localDigits)
	sessionID := constants.SessionIDPrefix + intlDigits

	r.mu.Lock()
	if existing, ok := r.sessions[sessionID]; ok {
		if existing.Status == models.SessionStatusConnected {
			r.mu.Unlock()
			return models.SessionView{}, errors.NewConflictError(sessionID,
				"number already connected: disconnect the device before requesting a new QR")
		}
		if companyName != "" {
			existing.Company = companyName
			existing.UpdatedAt = r.now()
		}
		view := existing.View()
		r.mu.Unlock()
		return view, nil
	}

	session := &models.Session{
		ID:        sessionID,
		Phone:     localDigits,
		PhoneIntl: intlDigits,
		Company:   companyName,
		Status:    models.SessionStatusAwaitingPairing,
		UpdatedAt: r.now(),
	}
	r.sessions[sessionID] = session
	view := session.View()
	r.mu.Unlock()

	r.logger.WithField("session", privacy.MaskSessionID(sessionID)).Info("Session created, starting adapter connect")
	go r.connect(sessionID)

	return view, nil
}

// connect runs the adapter handshake off the request path. The session may
// have been deleted by the time it resolves; the handle is closed in that
// case instead of being attached.
func (r *Registry) connect(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.connectTimeout)
	defer cancel()

	client, err := r.connector.Connect(ctx, sessionID, r)

	r.mu.Lock()
	session, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		if client != nil {
			if closeErr := client.Close(); closeErr != nil {
				r.logger.WithError(closeErr).WithField("session", privacy.MaskSessionID(sessionID)).
					Warn("Failed to close orphaned adapter handle")
			}
		}
		return
	}

	if err != nil {
		connErr := errors.NewConnectionError(sessionID, err)
		session.Status = models.SessionStatusError
		session.LastError = connErr.Error()
		session.UpdatedAt = r.now()
		r.mu.Unlock()
		r.logger.WithError(connErr).WithField("session", privacy.MaskSessionID(sessionID)).
			Error("Failed to establish session")
		return
	}

	session.Client = client
	session.UpdatedAt = r.now()
	r.mu.Unlock()
}

// OnQR stores pairing payloads and moves the session to AWAITING_SCAN.
// No-op when the session was deleted while the event was in flight.
func (r *Registry) OnQR(sessionID, qrImage, qrASCII string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return
	}

	if qrImage != "" {
		if !strings.HasPrefix(qrImage, "data:") {
			qrImage = "data:image/png;base64," + qrImage
		}
		session.QRCode = qrImage
	}
	if qrASCII != "" {
		session.QRCodeASCII = qrASCII
	}
	if qrImage != "" || qrASCII != "" {
		session.Status = models.SessionStatusAwaitingScan
		session.UpdatedAt = r.now()
	}
}

// OnStateChange normalizes the raw adapter state and applies the
// transition. Entering CONNECTED sets the set-once ConnectedAt, clears QR
// payloads and kicks off an asynchronous device refresh.
func (r *Registry) OnStateChange(sessionID, rawState string) {
	normalized := normalizeStatus(rawState)

	r.mu.Lock()
	session, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return
	}

	session.RawStatus = rawState
	session.Status = normalized
	session.UpdatedAt = r.now()

	if normalized == models.SessionStatusConnected {
		if session.ConnectedAt == nil {
			connectedAt := session.UpdatedAt
			session.ConnectedAt = &connectedAt
		}
		session.QRCode = ""
		session.QRCodeASCII = ""
		r.mu.Unlock()

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(),
				time.Duration(constants.DefaultDeviceRefreshSec)*time.Second)
			defer cancel()
			r.RefreshDevice(ctx, sessionID)
		}()
		return
	}
	r.mu.Unlock()
}

func normalizeStatus(rawState string) models.SessionStatus {
	if rawState == "" {
		return models.SessionStatusUnknown
	}

	value := strings.ToLower(rawState)
	if _, ok := connectedStates[value]; ok {
		return models.SessionStatusConnected
	}
	if _, ok := disconnectedStates[value]; ok {
		return models.SessionStatusDisconnected
	}
	return models.SessionStatus(strings.ToUpper(rawState))
}

// GetSession returns a snapshot of one session. A CONNECTED session with
// no device info gets a synchronous refresh first so pollers always see
// fresh device data.
func (r *Registry) GetSession(ctx context.Context, sessionID string) (models.SessionView, error) {
	if r.needsDeviceRefresh(sessionID) {
		r.RefreshDevice(ctx, sessionID)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return models.SessionView{}, errors.NewNotFoundError("session", sessionID)
	}
	return session.View(), nil
}

// ListSessions returns snapshots of every session, ordered by id.
func (r *Registry) ListSessions(ctx context.Context) []models.SessionView {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)

	views := make([]models.SessionView, 0, len(ids))
	for _, id := range ids {
		if r.needsDeviceRefresh(id) {
			r.RefreshDevice(ctx, id)
		}
		r.mu.RLock()
		session, ok := r.sessions[id]
		if ok {
			views = append(views, session.View())
		}
		r.mu.RUnlock()
	}
	return views
}

// DeleteSession closes the adapter handle, removes the registry entry and
// deletes the on-disk token artifacts. Handle and artifact errors are
// logged, never fatal.
func (r *Registry) DeleteSession(sessionID string) error {
	r.mu.Lock()
	session, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return errors.NewNotFoundError("session", sessionID)
	}
	delete(r.sessions, sessionID)
	client := session.Client
	r.mu.Unlock()

	if client != nil {
		if err := client.Close(); err != nil {
			r.logger.WithError(err).WithField("session", privacy.MaskSessionID(sessionID)).
				Error("Failed to close session handle")
		}
	}

	r.removeArtifacts(sessionID)
	return nil
}

func (r *Registry) removeArtifacts(sessionID string) {
	if r.tokensDir == "" {
		return
	}
	dir := filepath.Join(r.tokensDir, sessionID)
	if err := os.RemoveAll(dir); err != nil {
		r.logger.WithError(err).WithField("session", privacy.MaskSessionID(sessionID)).
			Error("Failed to remove session artifacts")
	}
}

// SendMessage delivers a text through a CONNECTED session. Bare digit
// targets are normalized to an individual chat address.
func (r *Registry) SendMessage(ctx context.Context, sessionID, target, body string) error {
	r.mu.RLock()
	session, ok := r.sessions[sessionID]
	var client types.Client
	var connected bool
	if ok {
		client = session.Client
		connected = session.Status == models.SessionStatusConnected
	}
	r.mu.RUnlock()

	if !ok {
		return errors.NewNotFoundError("session", sessionID)
	}
	if !connected || client == nil {
		return errors.New(errors.ErrCodeSessionNotConnected, "session is not connected").
			WithContext("session_id", sessionID).
			WithUserMessage("Session is not connected")
	}

	if !strings.Contains(target, "@") {
		target = phone.ChatID(phone.EnsureCountryCode(phone.SanitizeDigits(target)))
	}

	if err := client.SendText(ctx, target, body); err != nil {
		return errors.NewDeliveryError(sessionID, err)
	}

	r.logger.WithFields(logrus.Fields{
		"session": privacy.MaskSessionID(sessionID),
		"target":  privacy.MaskChatID(target),
	}).Info("Message sent")
	return nil
}

// ConnectedSession resolves the session for a scheduled send: the
// preferred id when set (exact match, must be CONNECTED), otherwise any
// CONNECTED session.
func (r *Registry) ConnectedSession(preferredID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if preferredID != "" {
		session, ok := r.sessions[preferredID]
		if !ok || session.Status != models.SessionStatusConnected {
			return "", false
		}
		return preferredID, true
	}

	ids := make([]string, 0, len(r.sessions))
	for id, session := range r.sessions {
		if session.Status == models.SessionStatusConnected {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return "", false
	}
	sort.Strings(ids)
	return ids[0], true
}
