package poller

import (
	"github.com/clambin/adax-monitor/internal/device"
	"log/slog"
	"strconv"
	"time"
)

// Update is the state of all rooms after a poll.
type Update struct {
	// Timestamp of the last successful poll. Zero if no poll has succeeded yet.
	Timestamp time.Time      `json:"timestamp"`
	Rooms     []device.State `json:"rooms"`
	// Missing lists the ids of rooms that the last poll no longer returned. Their state is the last one observed.
	Missing []int `json:"missing,omitempty"`
}

// GetRoom returns the state of the room with the provided id.
func (u Update) GetRoom(id int) (device.State, bool) {
	for _, room := range u.Rooms {
		if room.ID == id {
			return room, true
		}
	}
	return device.State{}, false
}

// GetRoomID returns the id of the room with the provided name.
func (u Update) GetRoomID(name string) (int, bool) {
	for _, room := range u.Rooms {
		if room.Name == name {
			return room.ID, true
		}
	}
	return 0, false
}

func (u Update) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(u.Rooms)+1)
	for _, room := range u.Rooms {
		attrs = append(attrs, slog.Attr{Key: "room_" + strconv.Itoa(room.ID), Value: room.LogValue()})
	}
	if len(u.Missing) > 0 {
		attrs = append(attrs, slog.Any("missing", u.Missing))
	}
	return slog.GroupValue(attrs...)
}
