package health

import (
	"context"
	"encoding/json"
	"github.com/clambin/adax-monitor/internal/poller"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Health reports the last update received from the poller. If no poll has succeeded for longer than maxAge,
// the monitor is considered unhealthy.
type Health struct {
	poller.Poller
	logger  *slog.Logger
	maxAge  time.Duration
	update  poller.Update
	updated bool
	lock    sync.RWMutex
	now     func() time.Time
}

func New(p poller.Poller, maxAge time.Duration, logger *slog.Logger) *Health {
	return &Health{
		Poller: p,
		logger: logger,
		maxAge: maxAge,
		now:    time.Now,
	}
}

func (h *Health) Run(ctx context.Context) error {
	h.logger.Debug("started")
	defer h.logger.Debug("stopped")

	ch := h.Poller.Subscribe()
	defer h.Poller.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-ch:
			h.lock.Lock()
			h.update = update
			h.updated = true
			h.lock.Unlock()
		}
	}
}

type report struct {
	Healthy bool          `json:"healthy"`
	Age     string        `json:"age,omitempty"`
	Update  poller.Update `json:"update"`
}

func (h *Health) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.lock.RLock()
	defer h.lock.RUnlock()
	if !h.updated {
		http.Error(w, "no update yet", http.StatusServiceUnavailable)
		h.Poller.Refresh()
		return
	}

	r := report{Healthy: true, Update: h.update}
	statusCode := http.StatusOK
	if h.update.Timestamp.IsZero() {
		r.Healthy = false
	} else {
		age := h.now().Sub(h.update.Timestamp)
		r.Age = age.Round(time.Second).String()
		r.Healthy = h.maxAge <= 0 || age <= h.maxAge
	}
	if !r.Healthy {
		h.logger.Warn("no recent poll", "last", h.update.Timestamp)
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(r); err != nil {
		h.logger.Error("failed to encode health report", "err", err)
	}
}
