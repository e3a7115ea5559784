// Package device tracks the state of a single Adax room.
//
// A Device holds the last observed current & target temperature of its room. It's refreshed by polling the
// room list (Poll, or Update when the room list is shared between devices) and controlled through SetTarget.
package device

import (
	"context"
	"errors"
	"fmt"
	"github.com/clambin/adax-monitor/pkg/adax"
	"log/slog"
	"sync"
)

// ErrRoomNotFound indicates that the room list did not contain the device's room.
var ErrRoomNotFound = errors.New("room not found")

// RoomService is the part of the Adax API used by a Device.
type RoomService interface {
	ListRooms(ctx context.Context) ([]adax.Room, error)
	SetTemperature(ctx context.Context, roomID int, temperature float64) error
}

// A Listener is notified when a device's state changes outside of a poll.
type Listener interface {
	StateChanged(State)
}

// ListenerFunc adapts a func to a Listener.
type ListenerFunc func(State)

func (f ListenerFunc) StateChanged(state State) {
	f(state)
}

// Device is the last known state of a room.
type Device struct {
	service  RoomService
	id       int
	name     string
	listener Listener
	logger   *slog.Logger
	lock     sync.RWMutex
	current  *float64
	target   *float64
	mode     Mode
}

// New returns a Device for the room with the provided id. listener may be nil.
func New(service RoomService, id int, name string, listener Listener, logger *slog.Logger) *Device {
	return &Device{
		service:  service,
		id:       id,
		name:     name,
		listener: listener,
		logger:   logger.With("room", id),
		mode:     ModeHeat,
	}
}

func (d *Device) ID() int {
	return d.id
}

func (d *Device) Name() string {
	return d.name
}

// Poll retrieves the room list and applies the device's entry. If the list can't be retrieved, or doesn't contain
// the device's room, the current state is kept.
func (d *Device) Poll(ctx context.Context) error {
	rooms, err := d.service.ListRooms(ctx)
	if err != nil {
		d.logger.Error("failed to poll room", "err", err, "kind", adax.FailureKind(err))
		return fmt.Errorf("poll: %w", err)
	}
	if !d.Update(rooms) {
		d.logger.Error("room not found in room list")
		return fmt.Errorf("poll: %w", ErrRoomNotFound)
	}
	return nil
}

// Update applies the device's entry in rooms. Only the fields present in the entry are overwritten.
// Returns false if rooms doesn't contain the device's room.
func (d *Device) Update(rooms []adax.Room) bool {
	for _, room := range rooms {
		if room.ID != d.id {
			continue
		}
		d.lock.Lock()
		if current, ok := room.CurrentCelsius(); ok {
			d.current = &current
		}
		if target, ok := room.TargetCelsius(); ok {
			d.target = &target
		}
		d.lock.Unlock()
		return true
	}
	return false
}

// SetTarget sets the room's target temperature. A nil temperature is ignored. A temperature the API can't
// represent fails with adax.ErrInvalidTemperature and leaves the state unchanged. On success, the local state is
// updated immediately and the listener is notified, without waiting for the next poll.
func (d *Device) SetTarget(ctx context.Context, temperature *float64) error {
	if temperature == nil {
		return nil
	}
	target := *temperature
	if _, err := adax.ToHundredths(target); err != nil {
		d.logger.Warn("rejected target temperature", "err", err)
		return fmt.Errorf("set target: %w", err)
	}
	if err := d.service.SetTemperature(ctx, d.id, target); err != nil {
		d.logger.Error("failed to set target temperature", "target", target, "err", err)
		return fmt.Errorf("set target: %w", err)
	}
	d.lock.Lock()
	d.target = &target
	d.lock.Unlock()
	d.logger.Info("target temperature set", "target", target)

	if d.listener != nil {
		d.listener.StateChanged(d.State())
	}
	return nil
}

// Mode returns the device's mode. Adax rooms are always heating.
func (d *Device) Mode() Mode {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return d.mode
}

// State returns a snapshot of the device's state.
func (d *Device) State() State {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return State{
		ID:      d.id,
		Name:    d.name,
		Current: copyValue(d.current),
		Target:  copyValue(d.target),
		Mode:    d.mode,
	}
}

func copyValue(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
