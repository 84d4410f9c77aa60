package service

import (
	"os"

	"zapcentral/internal/models"
	"zapcentral/internal/phone"
	"zapcentral/internal/privacy"
)

// RestoreSessions reconstructs registry entries from on-disk token
// directories left by previous runs and reconnects each one. An expired
// pairing simply produces a fresh QR event, exactly like first-time
// pairing. Best-effort: a missing directory means nothing to restore.
// Returns the number of sessions restored.
func (r *Registry) RestoreSessions() int {
	if r.tokensDir == "" {
		return 0
	}

	entries, err := os.ReadDir(r.tokensDir)
	if err != nil {
		if !os.IsNotExist(err) {
			r.logger.WithError(err).Warn("Failed to read tokens directory, nothing to restore")
		}
		return 0
	}

	restored := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		sessionID := entry.Name()
		intlDigits := phone.DigitsFromSessionID(sessionID)
		if intlDigits == "" {
			continue
		}

		r.mu.Lock()
		if _, exists := r.sessions[sessionID]; exists {
			r.mu.Unlock()
			continue
		}
		r.sessions[sessionID] = &models.Session{
			ID:        sessionID,
			Phone:     phone.NormalizeLocal(intlDigits),
			PhoneIntl: intlDigits,
			Status:    models.SessionStatusAwaitingPairing,
			UpdatedAt: r.now(),
		}
		r.mu.Unlock()

		r.logger.WithField("session", privacy.MaskSessionID(sessionID)).
			Info("Restoring session from stored tokens")
		go r.connect(sessionID)
		restored++
	}

	return restored
}
