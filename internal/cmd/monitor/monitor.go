package monitor

import (
	"context"
	"errors"
	"fmt"
	"github.com/clambin/adax-monitor/internal/api"
	"github.com/clambin/adax-monitor/internal/collector"
	"github.com/clambin/adax-monitor/internal/configuration"
	"github.com/clambin/adax-monitor/internal/discovery"
	"github.com/clambin/adax-monitor/internal/health"
	"github.com/clambin/adax-monitor/internal/mqttbridge"
	"github.com/clambin/adax-monitor/internal/notifier"
	"github.com/clambin/adax-monitor/internal/poller"
	"github.com/clambin/adax-monitor/pkg/adax"
	"github.com/clambin/adax-monitor/pkg/adaxtools"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/slack-go/slack"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

var Cmd = cobra.Command{
	Use:   "monitor",
	Short: "Monitor Adax heaters",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := configuration.Load(viper.GetViper())
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		l := slog.Default()
		l.Info("adax-monitor starting", "version", cmd.Root().Version)
		defer l.Info("adax-monitor stopped")

		m, err := newMonitor(ctx, cfg, registry, l)
		if err != nil {
			return err
		}
		return m.Run(ctx)
	},
}

type task interface {
	Run(context.Context) error
}

type monitor struct {
	poller   *poller.AdaxPoller
	handler  http.Handler
	exporter http.Handler
	tasks    []task
	cfg      configuration.Configuration
}

// newMonitor discovers the rooms and creates the components that monitor them. It fails if no room is found.
func newMonitor(ctx context.Context, cfg configuration.Configuration, registry *prometheus.Registry, l *slog.Logger) (*monitor, error) {
	callMetrics := adaxtools.NewAdaxCallMetrics("adax", "monitor", prometheus.Labels{"application": "adax"})
	registry.MustRegister(callMetrics)
	client := adaxtools.NewInstrumentedClient(cfg.Credentials(), callMetrics,
		adax.WithURL(cfg.Adax.URL),
		adax.WithTimeout(cfg.Adax.Timeout),
		adax.WithLogger(l.With("component", "adax")),
	)

	// Poller
	pollerMetrics := poller.NewMetrics("adax", "poller", nil)
	registry.MustRegister(pollerMetrics)
	p := poller.New(client, cfg.Poller.Interval, pollerMetrics, l.With("component", "poller"))

	// Devices
	devices, err := discovery.Discover(ctx, client, cfg.Filter(), p, l.With("component", "discovery"))
	if err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}
	p.Add(devices...)

	m := monitor{poller: p, cfg: cfg, tasks: []task{p}}

	// Collector
	coll := &collector.Collector{Poller: p, Logger: l.With("component", "collector")}
	registry.MustRegister(coll)
	m.tasks = append(m.tasks, coll)
	m.exporter = promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})

	// Health & API
	h := health.New(p, 3*cfg.Poller.Interval, l.With("component", "health"))
	m.tasks = append(m.tasks, h)
	apiServer := api.New(p, p, l.With("component", "api"))
	r := http.NewServeMux()
	r.Handle("/health", h)
	r.Handle("/rooms", apiServer)
	r.Handle("/rooms/", apiServer)
	m.handler = r

	// Notifications
	n := notifier.Notifiers{notifier.SLogNotifier{Logger: l.With("component", "notifier")}}
	if cfg.Slack.Token != "" {
		n = append(n, &notifier.SlackNotifier{
			SlackSender: slack.New(cfg.Slack.Token),
			Channel:     cfg.Slack.Channel,
			Logger:      l.With("component", "slack"),
		})
	}
	m.tasks = append(m.tasks, &notifier.Watcher{Poller: p, Notifier: n, Logger: l.With("component", "watcher")})

	// MQTT
	if cfg.MQTT.Broker != "" {
		m.tasks = append(m.tasks, mqttbridge.New(cfg.MQTT, p, p, l.With("component", "mqtt")))
	} else {
		l.Info("no mqtt broker configured. mqtt bridge will not run")
	}

	return &m, nil
}

// Run runs all components until ctx is cancelled, or one of them fails.
func (m *monitor) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, t := range m.tasks {
		g.Go(func() error { return t.Run(ctx) })
	}
	g.Go(func() error { return runHTTPServer(ctx, &http.Server{Addr: m.cfg.Exporter.Addr, Handler: m.exporter}) })
	g.Go(func() error { return runHTTPServer(ctx, &http.Server{Addr: m.cfg.HTTP.Addr, Handler: m.handler}) })

	// don't wait for the first tick
	m.poller.Refresh()
	return g.Wait()
}

const shutdownTimeout = 5 * time.Second

func runHTTPServer(ctx context.Context, s *http.Server) error {
	s.ReadHeaderTimeout = 10 * time.Second
	// requests (incl. websocket streams) end when ctx is cancelled
	s.BaseContext = func(net.Listener) context.Context { return ctx }
	errCh := make(chan error, 1)
	go func() {
		if err := s.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server %s: %w", s.Addr, err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}
