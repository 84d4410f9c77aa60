package wpp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"zapcentral/pkg/wpp/types"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"
)

// eventFeed is the per-session websocket subscription to the automation
// server. Frames are dispatched to the handler on a dedicated goroutine,
// one frame at a time, so per-session emission order is preserved.
type eventFeed struct {
	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}
}

func (c *connector) dialEventFeed(ctx context.Context, sessionID string, handler types.EventHandler) (*eventFeed, error) {
	wsURL, err := websocketURL(c.cfg.BaseURL, sessionID)
	if err != nil {
		return nil, err
	}

	opts := &websocket.DialOptions{}
	if c.cfg.APIKey != "" {
		opts.HTTPHeader = http.Header{"Authorization": []string{"Bearer " + c.cfg.APIKey}}
	}

	conn, _, err := websocket.Dial(ctx, wsURL, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to dial event feed: %w", err)
	}

	feedCtx, cancel := context.WithCancel(context.Background())
	feed := &eventFeed{
		conn:   conn,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go feed.readLoop(feedCtx, sessionID, handler, c.logger)
	return feed, nil
}

func (f *eventFeed) readLoop(ctx context.Context, sessionID string, handler types.EventHandler, logger *logrus.Logger) {
	defer close(f.done)

	for {
		var event types.Event
		if err := wsjson.Read(ctx, f.conn, &event); err != nil {
			if ctx.Err() != nil || isNormalClosure(err) {
				return
			}
			logger.WithError(err).WithField("session", sessionID).Warn("Event feed closed unexpectedly")
			handler.OnStateChange(sessionID, "disconnected")
			return
		}

		// Feeds are per-session; tolerate servers that omit the field.
		if event.Session == "" {
			event.Session = sessionID
		}

		switch event.Event {
		case types.EventQR:
			if event.QR == nil {
				continue
			}
			handler.OnQR(event.Session, event.QR.Base64, event.QR.ASCII)
		case types.EventState:
			handler.OnStateChange(event.Session, event.State)
		default:
			logger.WithFields(logrus.Fields{
				"session": sessionID,
				"event":   event.Event,
			}).Debug("Ignoring unknown event kind")
		}
	}
}

// Close stops the read loop and waits for it to drain.
func (f *eventFeed) Close() {
	f.cancel()
	_ = f.conn.Close(websocket.StatusNormalClosure, "session closed")
	<-f.done
}

func isNormalClosure(err error) bool {
	var closeErr websocket.CloseError
	if errors.As(err, &closeErr) {
		return closeErr.Code == websocket.StatusNormalClosure || closeErr.Code == websocket.StatusGoingAway
	}
	return false
}

func websocketURL(baseURL, sessionID string) (string, error) {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(baseURL, "https://") + "/ws/" + sessionID, nil
	case strings.HasPrefix(baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(baseURL, "http://") + "/ws/" + sessionID, nil
	default:
		return "", fmt.Errorf("unsupported base URL scheme: %s", baseURL)
	}
}
