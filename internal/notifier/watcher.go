package notifier

import (
	"context"
	"fmt"
	"github.com/clambin/adax-monitor/internal/device"
	"github.com/clambin/adax-monitor/internal/poller"
	"github.com/clambin/go-common/set"
	"log/slog"
)

// Watcher compares each Update from the poller with the previous one and reports the changes to a Notifier.
type Watcher struct {
	Poller   poller.Poller
	Notifier Notifier
	Logger   *slog.Logger
	rooms    map[int]device.State
	missing  set.Set[int]
}

func (w *Watcher) Run(ctx context.Context) error {
	w.Logger.Debug("started")
	defer w.Logger.Debug("stopped")

	ch := w.Poller.Subscribe()
	defer w.Poller.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-ch:
			w.process(update)
		}
	}
}

func (w *Watcher) process(update poller.Update) {
	missing := make(set.Set[int])
	for _, id := range update.Missing {
		missing.Add(id)
	}
	// the first update is the baseline
	if w.rooms != nil {
		for _, room := range update.Rooms {
			for _, msg := range w.changes(w.rooms[room.ID], room, missing) {
				w.Notifier.Notify(msg)
			}
		}
	}
	w.rooms = make(map[int]device.State, len(update.Rooms))
	for _, room := range update.Rooms {
		w.rooms[room.ID] = room
	}
	w.missing = missing
}

func (w *Watcher) changes(previous, current device.State, missing set.Set[int]) []Message {
	var messages []Message
	wasMissing, isMissing := w.missing.Contains(current.ID), missing.Contains(current.ID)
	switch {
	case isMissing && !wasMissing:
		messages = append(messages, Message{Level: Warning, Title: current.Name + ": no longer reported", Text: "the Adax API no longer reports this room"})
	case !isMissing && wasMissing:
		messages = append(messages, Message{Level: Info, Title: current.Name + ": reported again"})
	}
	if current.Target != nil && (previous.Target == nil || *previous.Target != *current.Target) {
		msg := Message{Level: Info, Title: fmt.Sprintf("%s: target temperature set to %.1fºC", current.Name, *current.Target)}
		if previous.Target != nil {
			msg.Text = fmt.Sprintf("was %.1fºC", *previous.Target)
		}
		messages = append(messages, msg)
	}
	return messages
}
