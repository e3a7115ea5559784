package collector

import (
	"context"
	"github.com/clambin/adax-monitor/internal/device"
	"github.com/clambin/adax-monitor/internal/poller"
	"github.com/prometheus/client_golang/prometheus"
	"log/slog"
	"strconv"
	"sync"
)

var (
	adaxRoomTemperatureCelsius = prometheus.NewDesc(
		prometheus.BuildFQName("adax", "room", "temperature_celsius"),
		"Current temperature of this room in degrees celsius",
		[]string{"room_id", "room_name"},
		nil,
	)
	adaxRoomTargetTempCelsius = prometheus.NewDesc(
		prometheus.BuildFQName("adax", "room", "target_temp_celsius"),
		"Target temperature of this room in degrees celsius",
		[]string{"room_id", "room_name"},
		nil,
	)
	adaxRoomMode = prometheus.NewDesc(
		prometheus.BuildFQName("adax", "room", "mode"),
		"Mode of this room. 1 for the active mode, see label 'mode'",
		[]string{"room_id", "room_name", "mode"},
		nil,
	)
	adaxRoomReported = prometheus.NewDesc(
		prometheus.BuildFQName("adax", "room", "reported"),
		"1 if the room was included in the last poll. If 0, the room's metrics are its last known values",
		[]string{"room_id", "room_name"},
		nil,
	)
)

var _ prometheus.Collector = &Collector{}

// Collector exports the state of each room, as published by the poller.
type Collector struct {
	Poller     poller.Poller
	Logger     *slog.Logger
	lock       sync.RWMutex
	lastUpdate *poller.Update
}

func (c *Collector) Run(ctx context.Context) error {
	c.Logger.Debug("started")
	defer c.Logger.Debug("stopped")

	ch := c.Poller.Subscribe()
	defer c.Poller.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-ch:
			c.process(update)
		}
	}
}

func (c *Collector) process(update poller.Update) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.lastUpdate = &update
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- adaxRoomMode
	ch <- adaxRoomReported
	ch <- adaxRoomTargetTempCelsius
	ch <- adaxRoomTemperatureCelsius
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	if c.lastUpdate == nil {
		return
	}
	missing := make(map[int]struct{}, len(c.lastUpdate.Missing))
	for _, id := range c.lastUpdate.Missing {
		missing[id] = struct{}{}
	}
	for _, room := range c.lastUpdate.Rooms {
		c.collectRoom(ch, room, missing)
	}
}

// collectRoom reports a room's metrics. Room names are chosen by the user and need not be unique, so each series also carries the room id.
func (c *Collector) collectRoom(ch chan<- prometheus.Metric, room device.State, missing map[int]struct{}) {
	id := strconv.Itoa(room.ID)
	if room.Current != nil {
		ch <- prometheus.MustNewConstMetric(adaxRoomTemperatureCelsius, prometheus.GaugeValue, *room.Current, id, room.Name)
	}
	if room.Target != nil {
		ch <- prometheus.MustNewConstMetric(adaxRoomTargetTempCelsius, prometheus.GaugeValue, *room.Target, id, room.Name)
	}
	for _, mode := range device.SupportedModes() {
		var value float64
		if mode == room.Mode {
			value = 1
		}
		ch <- prometheus.MustNewConstMetric(adaxRoomMode, prometheus.GaugeValue, value, id, room.Name, mode.String())
	}
	reported := 1.0
	if _, ok := missing[room.ID]; ok {
		reported = 0
	}
	ch <- prometheus.MustNewConstMetric(adaxRoomReported, prometheus.GaugeValue, reported, id, room.Name)
}
