package integration_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"zapcentral/internal/models"
	wpptypes "zapcentral/pkg/wpp/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionPairingLifecycle(t *testing.T) {
	env := NewTestEnvironment(t)

	view, err := env.registry.CreateSession("(11) 99999-8888", "Clinica Sorriso")
	require.NoError(t, err)
	require.Equal(t, "session_5511999998888", view.SessionID)
	assert.Equal(t, string(models.SessionStatusAwaitingPairing), view.Status)

	sessionID := view.SessionID

	env.EmitQR(sessionID, "qr-image-bytes", "##ascii##")
	scanning := env.WaitForStatus(sessionID, models.SessionStatusAwaitingScan, 5*time.Second)
	require.NotNil(t, scanning.QRCode)
	assert.Equal(t, "data:image/png;base64,qr-image-bytes", *scanning.QRCode)
	require.NotNil(t, scanning.QRCodeASCII)
	assert.Equal(t, "##ascii##", *scanning.QRCodeASCII)

	battery := 91
	env.SetHostDevice(&wpptypes.HostDevice{
		ID:       "5511999998888",
		PushName: "Ana",
		Battery:  &battery,
		Platform: "android",
	})

	env.EmitState(sessionID, "qrReadSuccess")
	connected := env.WaitForStatus(sessionID, models.SessionStatusConnected, 5*time.Second)
	assert.Nil(t, connected.QRCode)
	assert.Nil(t, connected.QRCodeASCII)
	require.NotNil(t, connected.ConnectedAt)
	connectedAt := *connected.ConnectedAt

	require.Eventually(t, func() bool {
		view, err := env.registry.GetSession(context.Background(), sessionID)
		return err == nil && len(view.Devices) == 1
	}, 5*time.Second, 20*time.Millisecond, "device info never arrived")

	view, err = env.registry.GetSession(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", view.Devices[0].DisplayName)
	require.NotNil(t, view.Devices[0].BatteryLevel)
	assert.Equal(t, "91%", *view.Devices[0].BatteryLevel)

	env.EmitState(sessionID, "browserClose")
	disconnected := env.WaitForStatus(sessionID, models.SessionStatusDisconnected, 5*time.Second)
	require.NotNil(t, disconnected.ConnectedAt)
	assert.Equal(t, connectedAt, *disconnected.ConnectedAt)
}

func TestDeleteSessionRemovesTokenArtifacts(t *testing.T) {
	env := NewTestEnvironment(t)

	view, err := env.registry.CreateSession("11 98888-0001", "Oficina Central")
	require.NoError(t, err)
	sessionID := view.SessionID

	env.EmitState(sessionID, "isLogged")
	env.WaitForStatus(sessionID, models.SessionStatusConnected, 5*time.Second)

	artifactDir := filepath.Join(env.tokensDir, sessionID)
	require.NoError(t, os.MkdirAll(artifactDir, 0o755))

	require.NoError(t, env.registry.DeleteSession(sessionID))

	_, err = env.registry.GetSession(context.Background(), sessionID)
	assert.Error(t, err)

	_, err = os.Stat(artifactDir)
	assert.True(t, os.IsNotExist(err))
}

func TestSessionRestoreFromStoredTokens(t *testing.T) {
	env := NewTestEnvironment(t)

	require.NoError(t, os.MkdirAll(filepath.Join(env.tokensDir, "session_5511999990001"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(env.tokensDir, "chrome-profile"), 0o755))

	restored := env.registry.RestoreSessions()
	assert.Equal(t, 1, restored)

	env.EmitState("session_5511999990001", "isLogged")
	view := env.WaitForStatus("session_5511999990001", models.SessionStatusConnected, 5*time.Second)
	assert.Equal(t, "5511999990001", view.PhoneIntl)
}
