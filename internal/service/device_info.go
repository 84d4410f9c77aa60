package service

import (
	"context"
	"fmt"

	"zapcentral/internal/constants"
	"zapcentral/internal/models"
	"zapcentral/internal/privacy"
	"zapcentral/pkg/wpp/types"
)

// RefreshDevice queries the adapter for the paired device and replaces the
// session's device list with a fresh single-element snapshot. Device info
// is best-effort: failures are logged and swallowed, and a nil device
// keeps whatever was there before.
func (r *Registry) RefreshDevice(ctx context.Context, sessionID string) {
	r.mu.RLock()
	session, ok := r.sessions[sessionID]
	var client types.Client
	var intlDigits string
	if ok {
		client = session.Client
		intlDigits = session.PhoneIntl
	}
	r.mu.RUnlock()

	if !ok || client == nil {
		return
	}

	device, err := client.HostDevice(ctx)
	if err != nil {
		r.logger.WithError(err).WithField("session", privacy.MaskSessionID(sessionID)).
			Error("Failed to fetch paired device info")
		return
	}
	if device == nil {
		return
	}

	snapshot := deviceSnapshot(device, intlDigits)

	r.mu.Lock()
	defer r.mu.Unlock()

	// The session may have been deleted while the query was in flight
	session, ok = r.sessions[sessionID]
	if !ok {
		return
	}
	session.Devices = []models.Device{snapshot}
	session.UpdatedAt = r.now()
}

func (r *Registry) needsDeviceRefresh(sessionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[sessionID]
	return ok && session.Status == models.SessionStatusConnected && len(session.Devices) == 0
}

func deviceSnapshot(device *types.HostDevice, fallbackID string) models.Device {
	snapshot := models.Device{
		ID:          device.ID,
		DisplayName: device.PushName,
		IsCharging:  device.Plugged,
	}
	if snapshot.ID == "" {
		snapshot.ID = fallbackID
	}
	if snapshot.DisplayName == "" {
		snapshot.DisplayName = constants.DefaultDeviceName
	}
	if device.Battery != nil {
		battery := fmt.Sprintf("%d%%", *device.Battery)
		snapshot.BatteryLevel = &battery
	}
	if device.Platform != "" {
		platform := device.Platform
		snapshot.Platform = &platform
	}
	return snapshot
}
