// Package discovery creates a Device for each room exposed by the Adax API.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"github.com/clambin/adax-monitor/internal/device"
	"log/slog"
)

// ErrNoRooms indicates that the API didn't return any rooms.
var ErrNoRooms = errors.New("no rooms found")

// Filter restricts discovery to a single room. A zero RoomID discovers all rooms.
// Name, if set, overrides the name of the selected room.
type Filter struct {
	RoomID int
	Name   string
}

// Discover lists the rooms and returns a Device for each room matching the filter. Devices are seeded with the
// room data returned by the API, so they have a state before their first poll.
func Discover(ctx context.Context, service device.RoomService, filter Filter, listener device.Listener, logger *slog.Logger) ([]*device.Device, error) {
	rooms, err := service.ListRooms(ctx)
	if err != nil {
		logger.Error("failed to list rooms", "err", err)
		return nil, fmt.Errorf("discover: %w", err)
	}

	var devices []*device.Device
	for _, room := range rooms {
		if filter.RoomID != 0 && room.ID != filter.RoomID {
			continue
		}
		name := room.GetName()
		if filter.RoomID != 0 && filter.Name != "" {
			name = filter.Name
		}
		d := device.New(service, room.ID, name, listener, logger.With("component", "device"))
		d.Update(rooms)
		devices = append(devices, d)
		logger.Debug("room discovered", "room", d.State())
	}

	switch {
	case filter.RoomID != 0 && len(devices) == 0:
		logger.Error("room not found", "room", filter.RoomID)
		return nil, fmt.Errorf("discover room %d: %w", filter.RoomID, device.ErrRoomNotFound)
	case len(devices) == 0:
		logger.Error("no rooms found")
		return nil, ErrNoRooms
	}
	logger.Info("rooms discovered", "count", len(devices))
	return devices, nil
}
