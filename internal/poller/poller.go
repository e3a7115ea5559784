package poller

import (
	"context"
	"github.com/clambin/adax-monitor/internal/device"
	"github.com/clambin/adax-monitor/pkg/adax"
	"github.com/clambin/adax-monitor/pkg/pubsub"
	"github.com/clambin/go-common/set"
	"log/slog"
	"slices"
	"sync"
	"time"
)

type Poller interface {
	Subscribe() chan Update
	Unsubscribe(ch chan Update)
	Refresh()
}

// RoomLister returns all rooms, in one call.
type RoomLister interface {
	ListRooms(ctx context.Context) ([]adax.Room, error)
}

var (
	_ Poller          = &AdaxPoller{}
	_ device.Listener = &AdaxPoller{}
)

// AdaxPoller periodically lists all rooms and applies the result to its devices. After each successful poll,
// or when a device's state changes, it publishes an Update to its subscribers.
type AdaxPoller struct {
	client RoomLister
	*pubsub.Publisher[Update]
	interval time.Duration
	metrics  *Metrics
	logger   *slog.Logger
	refresh  chan struct{}
	lock     sync.RWMutex
	devices  map[int]*device.Device
	missing  set.Set[int]
	lastPoll time.Time
}

// New returns a new AdaxPoller. metrics may be nil.
func New(client RoomLister, interval time.Duration, metrics *Metrics, logger *slog.Logger) *AdaxPoller {
	return &AdaxPoller{
		client:    client,
		Publisher: pubsub.New[Update](logger.With(slog.String("component", "registry"))),
		interval:  interval,
		metrics:   metrics,
		logger:    logger,
		refresh:   make(chan struct{}, 1),
		devices:   make(map[int]*device.Device),
		missing:   make(set.Set[int]),
	}
}

// Add registers devices with the poller.
func (p *AdaxPoller) Add(devices ...*device.Device) {
	p.lock.Lock()
	defer p.lock.Unlock()
	for _, d := range devices {
		p.devices[d.ID()] = d
	}
}

// Device returns the device for the room with the provided id.
func (p *AdaxPoller) Device(id int) (*device.Device, bool) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	d, ok := p.devices[id]
	return d, ok
}

// Devices returns all devices, ordered by room id.
func (p *AdaxPoller) Devices() []*device.Device {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.sortedDevices()
}

func (p *AdaxPoller) sortedDevices() []*device.Device {
	devices := make([]*device.Device, 0, len(p.devices))
	for _, d := range p.devices {
		devices = append(devices, d)
	}
	slices.SortFunc(devices, func(a, b *device.Device) int { return a.ID() - b.ID() })
	return devices
}

func (p *AdaxPoller) Run(ctx context.Context) error {
	p.logger.Debug("started", slog.Duration("interval", p.interval))
	defer p.logger.Debug("stopped")

	timer := time.NewTicker(p.interval)
	defer timer.Stop()

	for {
		shouldPoll := false
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			shouldPoll = true
		case <-p.refresh:
			shouldPoll = true
		}

		if shouldPoll {
			// poll for new data
			if err := p.poll(ctx); err != nil {
				p.logger.Error("failed to get adax rooms", slog.Any("err", err), slog.String("kind", adax.FailureKind(err)))
			}
		}
	}
}

// Refresh requests an immediate poll. If a request is already pending, Refresh does nothing.
func (p *AdaxPoller) Refresh() {
	select {
	case p.refresh <- struct{}{}:
	default:
	}
}

// StateChanged publishes an Update when a device's state changes between polls (e.g. after a new target temperature is set).
func (p *AdaxPoller) StateChanged(state device.State) {
	p.logger.Debug("device state changed", "state", state)
	p.Publish(p.snapshot())
}

func (p *AdaxPoller) poll(ctx context.Context) error {
	start := time.Now()
	rooms, err := p.client.ListRooms(ctx)
	if err != nil {
		p.metrics.failed(err)
		return err
	}
	p.apply(rooms, start)
	p.metrics.succeeded(start)
	update := p.snapshot()
	p.Publish(update)
	p.logger.Debug("poll completed", slog.Duration("duration", time.Since(start)), slog.Any("update", update))
	return nil
}

// apply updates all devices from the room list and tracks which rooms have vanished from it.
func (p *AdaxPoller) apply(rooms []adax.Room, timestamp time.Time) {
	p.lock.Lock()
	defer p.lock.Unlock()
	for id, d := range p.devices {
		found := d.Update(rooms)
		switch {
		case !found && !p.missing.Contains(id):
			p.missing.Add(id)
			p.logger.Warn("room no longer reported by the API. keeping last known state", "room", id, "name", d.Name())
		case found && p.missing.Contains(id):
			delete(p.missing, id)
			p.logger.Info("room reported again by the API", "room", id, "name", d.Name())
		}
	}
	p.lastPoll = timestamp
}

func (p *AdaxPoller) snapshot() Update {
	p.lock.RLock()
	defer p.lock.RUnlock()
	devices := p.sortedDevices()
	update := Update{
		Timestamp: p.lastPoll,
		Rooms:     make([]device.State, len(devices)),
	}
	for i, d := range devices {
		update.Rooms[i] = d.State()
	}
	if len(p.missing) > 0 {
		update.Missing = p.missing.List()
		slices.Sort(update.Missing)
	}
	return update
}
