package notifier

import (
	"context"
	"github.com/clambin/adax-monitor/internal/device"
	"github.com/clambin/adax-monitor/internal/poller"
	"github.com/clambin/adax-monitor/pkg/pubsub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func TestWatcher_process(t *testing.T) {
	tests := []struct {
		name    string
		updates []poller.Update
		want    []Message
	}{
		{
			name: "baseline",
			updates: []poller.Update{
				{Rooms: []device.State{makeState(5, "Living room", 22)}, Missing: []int{5}},
			},
		},
		{
			name: "no change",
			updates: []poller.Update{
				{Rooms: []device.State{makeState(5, "Living room", 22)}},
				{Rooms: []device.State{makeState(5, "Living room", 22)}},
			},
		},
		{
			name: "target changed",
			updates: []poller.Update{
				{Rooms: []device.State{makeState(5, "Living room", 22)}},
				{Rooms: []device.State{makeState(5, "Living room", 21.5)}},
			},
			want: []Message{{Level: Info, Title: "Living room: target temperature set to 21.5ºC", Text: "was 22.0ºC"}},
		},
		{
			name: "first target",
			updates: []poller.Update{
				{Rooms: []device.State{{ID: 5, Name: "Living room"}}},
				{Rooms: []device.State{makeState(5, "Living room", 21.5)}},
			},
			want: []Message{{Level: Info, Title: "Living room: target temperature set to 21.5ºC"}},
		},
		{
			name: "room vanishes and returns",
			updates: []poller.Update{
				{Rooms: []device.State{makeState(5, "Living room", 22)}},
				{Rooms: []device.State{makeState(5, "Living room", 22)}, Missing: []int{5}},
				{Rooms: []device.State{makeState(5, "Living room", 22)}, Missing: []int{5}},
				{Rooms: []device.State{makeState(5, "Living room", 22)}},
			},
			want: []Message{
				{Level: Warning, Title: "Living room: no longer reported", Text: "the Adax API no longer reports this room"},
				{Level: Info, Title: "Living room: reported again"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n fakeNotifier
			w := Watcher{Notifier: &n, Logger: slog.New(slog.DiscardHandler)}
			for _, update := range tt.updates {
				w.process(update)
			}
			assert.Equal(t, tt.want, n.received())
		})
	}
}

func TestWatcher_Run(t *testing.T) {
	p := fakePoller{Publisher: pubsub.New[poller.Update](slog.New(slog.DiscardHandler))}
	var n fakeNotifier
	w := Watcher{Poller: &p, Notifier: &n, Logger: slog.New(slog.DiscardHandler)}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error)
	go func() { errCh <- w.Run(ctx) }()
	require.Eventually(t, func() bool { return p.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	p.Publish(poller.Update{Rooms: []device.State{makeState(5, "Living room", 22)}})
	// Publish only keeps the latest pending update: wait for the watcher to pick up the baseline
	time.Sleep(100 * time.Millisecond)
	p.Publish(poller.Update{Rooms: []device.State{makeState(5, "Living room", 19)}})
	assert.Eventually(t, func() bool { return len(n.received()) == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-errCh)
}

var _ poller.Poller = &fakePoller{}

type fakePoller struct {
	*pubsub.Publisher[poller.Update]
}

func (f *fakePoller) Refresh() {}

var _ Notifier = &fakeNotifier{}

type fakeNotifier struct {
	lock     sync.Mutex
	messages []Message
}

func (f *fakeNotifier) Notify(msg Message) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.messages = append(f.messages, msg)
}

func (f *fakeNotifier) received() []Message {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.messages
}

func makeState(id int, name string, target float64) device.State {
	return device.State{ID: id, Name: name, Target: &target, Mode: device.ModeHeat}
}
