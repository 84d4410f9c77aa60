package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"zapcentral/internal/errors"
	"zapcentral/internal/models"
	"zapcentral/pkg/wpp/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func waitConnected(t *testing.T, connector *stubConnector, sessionID string) {
	t.Helper()
	select {
	case id := <-connector.connected:
		require.Equal(t, sessionID, id)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for adapter connect")
	}
}

// connectedSession drives a session all the way to CONNECTED with the
// given client attached.
func connectedSession(t *testing.T, registry *Registry, connector *stubConnector, rawPhone string) string {
	t.Helper()
	view, err := registry.CreateSession(rawPhone, "")
	require.NoError(t, err)
	waitConnected(t, connector, view.SessionID)
	registry.OnStateChange(view.SessionID, "isLogged")
	return view.SessionID
}

func TestCreateSessionValidatesPhone(t *testing.T) {
	registry := NewRegistry(newStubConnector(newIdleClient()), "", testLogger())

	_, err := registry.CreateSession("9 8888", "Oficina")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidationFailed, errors.GetCode(err))
}

func TestCreateSessionDerivesStableID(t *testing.T) {
	connector := newStubConnector(newIdleClient())
	registry := NewRegistry(connector, "", testLogger())

	first, err := registry.CreateSession("(11) 99999-8888", "Oficina")
	require.NoError(t, err)
	assert.Equal(t, "session_5511999998888", first.SessionID)
	assert.Equal(t, "11999998888", first.Phone)
	assert.Equal(t, models.SessionStatusAwaitingPairing, models.SessionStatus(first.Status))
	waitConnected(t, connector, first.SessionID)

	// Same number, already with the country code: same session, no new connect.
	second, err := registry.CreateSession("5511999998888", "Oficina Nova")
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, "Oficina Nova", second.Company)
	assert.Len(t, registry.ListSessions(context.Background()), 1)
}

func TestCreateSessionConflictWhenConnected(t *testing.T) {
	connector := newStubConnector(newIdleClient())
	registry := NewRegistry(connector, "", testLogger())

	sessionID := connectedSession(t, registry, connector, "11999998888")

	_, err := registry.CreateSession("11999998888", "Oficina")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSessionConflict, errors.GetCode(err))

	view, err := registry.GetSession(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, string(models.SessionStatusConnected), view.Status)
}

func TestCreateSessionTruncatesCompany(t *testing.T) {
	registry := NewRegistry(newStubConnector(newIdleClient()), "", testLogger())

	view, err := registry.CreateSession("11999998888", strings.Repeat("a", 80))
	require.NoError(t, err)
	assert.Len(t, view.Company, 50)
}

func TestCreateSessionTruncatesCompanyByRunes(t *testing.T) {
	registry := NewRegistry(newStubConnector(newIdleClient()), "", testLogger())

	view, err := registry.CreateSession("11999998888", strings.Repeat("ç", 80))
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(view.Company))
	assert.Equal(t, 50, utf8.RuneCountInString(view.Company))
	assert.Equal(t, strings.Repeat("ç", 50), view.Company)
}

func TestConnectFailureSetsError(t *testing.T) {
	connector := newStubConnector(nil)
	connector.failWith(fmt.Errorf("adapter unreachable"))
	registry := NewRegistry(connector, "", testLogger())

	view, err := registry.CreateSession("11999998888", "")
	require.NoError(t, err)
	waitConnected(t, connector, view.SessionID)

	view, err = registry.GetSession(context.Background(), view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, string(models.SessionStatusError), view.Status)
	require.NotNil(t, view.Error)
	assert.Contains(t, *view.Error, string(errors.ErrCodeConnectionFailed))
	assert.Contains(t, *view.Error, "adapter unreachable")
}

func TestOnQRMovesToAwaitingScan(t *testing.T) {
	connector := newStubConnector(newIdleClient())
	registry := NewRegistry(connector, "", testLogger())

	view, err := registry.CreateSession("11999998888", "")
	require.NoError(t, err)
	waitConnected(t, connector, view.SessionID)

	registry.OnQR(view.SessionID, "iVBORw0KGgo=", "##  ##\n  ##  ")

	view, err = registry.GetSession(context.Background(), view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, string(models.SessionStatusAwaitingScan), view.Status)
	require.NotNil(t, view.QRCode)
	assert.Equal(t, "data:image/png;base64,iVBORw0KGgo=", *view.QRCode)
	require.NotNil(t, view.QRCodeASCII)
}

func TestOnQRKeepsExistingDataURL(t *testing.T) {
	connector := newStubConnector(newIdleClient())
	registry := NewRegistry(connector, "", testLogger())

	view, err := registry.CreateSession("11999998888", "")
	require.NoError(t, err)
	waitConnected(t, connector, view.SessionID)

	registry.OnQR(view.SessionID, "data:image/png;base64,AAAA", "")

	view, err = registry.GetSession(context.Background(), view.SessionID)
	require.NoError(t, err)
	require.NotNil(t, view.QRCode)
	assert.Equal(t, "data:image/png;base64,AAAA", *view.QRCode)
}

func TestOnEventsForUnknownSessionAreIgnored(t *testing.T) {
	registry := NewRegistry(newStubConnector(newIdleClient()), "", testLogger())

	registry.OnQR("session_5511999990000", "AAAA", "")
	registry.OnStateChange("session_5511999990000", "isLogged")

	assert.Empty(t, registry.ListSessions(context.Background()))
}

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want models.SessionStatus
	}{
		{"isLogged", models.SessionStatusConnected},
		{"qrReadSuccess", models.SessionStatusConnected},
		{"inChat", models.SessionStatusConnected},
		{"CONNECTED", models.SessionStatusConnected},
		{"open", models.SessionStatusConnected},
		{"qrReadFail", models.SessionStatusDisconnected},
		{"notLogged", models.SessionStatusDisconnected},
		{"desconnectedMobile", models.SessionStatusDisconnected},
		{"browserClose", models.SessionStatusDisconnected},
		{"autocloseCalled", models.SessionStatusDisconnected},
		{"disconnected", models.SessionStatusDisconnected},
		{"", models.SessionStatusUnknown},
		{"pairing", models.SessionStatus("PAIRING")},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeStatus(tt.raw))
		})
	}
}

func TestConnectedAtSetOnce(t *testing.T) {
	connector := newStubConnector(newIdleClient())
	registry := NewRegistry(connector, "", testLogger())

	clock := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	registry.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	sessionID := connectedSession(t, registry, connector, "11999998888")

	view, err := registry.GetSession(context.Background(), sessionID)
	require.NoError(t, err)
	require.NotNil(t, view.ConnectedAt)
	firstConnected := *view.ConnectedAt

	registry.OnStateChange(sessionID, "browserClose")
	registry.OnStateChange(sessionID, "isLogged")

	view, err = registry.GetSession(context.Background(), sessionID)
	require.NoError(t, err)
	require.NotNil(t, view.ConnectedAt)
	assert.Equal(t, firstConnected, *view.ConnectedAt)
	assert.True(t, view.UpdatedAt.After(firstConnected))
}

func TestConnectedClearsQR(t *testing.T) {
	connector := newStubConnector(newIdleClient())
	registry := NewRegistry(connector, "", testLogger())

	view, err := registry.CreateSession("11999998888", "")
	require.NoError(t, err)
	waitConnected(t, connector, view.SessionID)

	registry.OnQR(view.SessionID, "AAAA", "ascii")
	registry.OnStateChange(view.SessionID, "qrReadSuccess")

	view, err = registry.GetSession(context.Background(), view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, string(models.SessionStatusConnected), view.Status)
	assert.Nil(t, view.QRCode)
	assert.Nil(t, view.QRCodeASCII)
}

func TestGetSessionNotFound(t *testing.T) {
	registry := NewRegistry(newStubConnector(newIdleClient()), "", testLogger())

	_, err := registry.GetSession(context.Background(), "session_5511999998888")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNotFound, errors.GetCode(err))
}

func TestListSessionsOrderedByID(t *testing.T) {
	connector := newStubConnector(newIdleClient())
	registry := NewRegistry(connector, "", testLogger())

	for _, raw := range []string{"11999990002", "11999990001", "11999990003"} {
		view, err := registry.CreateSession(raw, "")
		require.NoError(t, err)
		waitConnected(t, connector, view.SessionID)
	}

	views := registry.ListSessions(context.Background())
	require.Len(t, views, 3)
	assert.Equal(t, "session_5511999990001", views[0].SessionID)
	assert.Equal(t, "session_5511999990002", views[1].SessionID)
	assert.Equal(t, "session_5511999990003", views[2].SessionID)
}

func TestGetSessionRefreshesDeviceInfo(t *testing.T) {
	battery := 87
	plugged := true
	client := &mockClient{}
	client.On("Close").Return(nil).Maybe()
	client.On("HostDevice", mock.Anything).Return(&types.HostDevice{
		Battery: &battery,
		Plugged: &plugged,
	}, nil)

	connector := newStubConnector(client)
	registry := NewRegistry(connector, "", testLogger())

	sessionID := connectedSession(t, registry, connector, "11999998888")

	view, err := registry.GetSession(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, view.Devices, 1)

	device := view.Devices[0]
	assert.Equal(t, "5511999998888", device.ID)
	assert.Equal(t, "Sem nome", device.DisplayName)
	require.NotNil(t, device.BatteryLevel)
	assert.Equal(t, "87%", *device.BatteryLevel)
	require.NotNil(t, device.IsCharging)
	assert.True(t, *device.IsCharging)
	assert.Nil(t, device.Platform)
}

func TestDeleteSessionRemovesEntryAndArtifacts(t *testing.T) {
	tokensDir := t.TempDir()
	client := newIdleClient()
	connector := newStubConnector(client)
	registry := NewRegistry(connector, tokensDir, testLogger())

	view, err := registry.CreateSession("11999998888", "")
	require.NoError(t, err)
	waitConnected(t, connector, view.SessionID)

	artifactDir := filepath.Join(tokensDir, view.SessionID)
	require.NoError(t, os.MkdirAll(artifactDir, 0o755))

	require.NoError(t, registry.DeleteSession(view.SessionID))

	assert.Empty(t, registry.ListSessions(context.Background()))
	_, statErr := os.Stat(artifactDir)
	assert.True(t, os.IsNotExist(statErr))
	client.AssertCalled(t, "Close")

	err = registry.DeleteSession(view.SessionID)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNotFound, errors.GetCode(err))
}

func TestSendMessage(t *testing.T) {
	t.Run("unknown session", func(t *testing.T) {
		registry := NewRegistry(newStubConnector(newIdleClient()), "", testLogger())
		err := registry.SendMessage(context.Background(), "session_5511999998888", "11988887777", "oi")
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeNotFound, errors.GetCode(err))
	})

	t.Run("not connected", func(t *testing.T) {
		connector := newStubConnector(newIdleClient())
		registry := NewRegistry(connector, "", testLogger())
		view, err := registry.CreateSession("11999998888", "")
		require.NoError(t, err)
		waitConnected(t, connector, view.SessionID)

		err = registry.SendMessage(context.Background(), view.SessionID, "11988887777", "oi")
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeSessionNotConnected, errors.GetCode(err))
	})

	t.Run("bare digits become a chat address", func(t *testing.T) {
		client := newIdleClient()
		client.On("SendText", mock.Anything, "5511988887777@c.us", "oi").Return(nil)

		connector := newStubConnector(client)
		registry := NewRegistry(connector, "", testLogger())
		sessionID := connectedSession(t, registry, connector, "11999998888")

		require.NoError(t, registry.SendMessage(context.Background(), sessionID, "(11) 98888-7777", "oi"))
		client.AssertExpectations(t)
	})

	t.Run("explicit group address passes through", func(t *testing.T) {
		client := newIdleClient()
		client.On("SendText", mock.Anything, "120363025@g.us", "aviso").Return(nil)

		connector := newStubConnector(client)
		registry := NewRegistry(connector, "", testLogger())
		sessionID := connectedSession(t, registry, connector, "11999998888")

		require.NoError(t, registry.SendMessage(context.Background(), sessionID, "120363025@g.us", "aviso"))
		client.AssertExpectations(t)
	})

	t.Run("adapter failure surfaces as delivery error", func(t *testing.T) {
		client := newIdleClient()
		client.On("SendText", mock.Anything, mock.Anything, mock.Anything).Return(fmt.Errorf("socket closed"))

		connector := newStubConnector(client)
		registry := NewRegistry(connector, "", testLogger())
		sessionID := connectedSession(t, registry, connector, "11999998888")

		err := registry.SendMessage(context.Background(), sessionID, "11988887777", "oi")
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeDeliveryFailed, errors.GetCode(err))
	})
}

func TestConnectedSessionResolution(t *testing.T) {
	connector := newStubConnector(newIdleClient())
	registry := NewRegistry(connector, "", testLogger())

	idle, err := registry.CreateSession("11999990001", "")
	require.NoError(t, err)
	waitConnected(t, connector, idle.SessionID)

	second := connectedSession(t, registry, connector, "11999990003")
	first := connectedSession(t, registry, connector, "11999990002")

	t.Run("preferred connected session wins", func(t *testing.T) {
		got, ok := registry.ConnectedSession(second)
		require.True(t, ok)
		assert.Equal(t, second, got)
	})

	t.Run("preferred session must be connected", func(t *testing.T) {
		_, ok := registry.ConnectedSession(idle.SessionID)
		assert.False(t, ok)
	})

	t.Run("no preference picks the lowest connected id", func(t *testing.T) {
		got, ok := registry.ConnectedSession("")
		require.True(t, ok)
		assert.Equal(t, first, got)
	})

	t.Run("unknown preferred session resolves nothing", func(t *testing.T) {
		_, ok := registry.ConnectedSession("session_5511999990099")
		assert.False(t, ok)
	})
}
