package api_test

import (
	"context"
	"encoding/json"
	"github.com/clambin/adax-monitor/internal/api"
	"github.com/clambin/adax-monitor/internal/device"
	"github.com/clambin/adax-monitor/internal/poller"
	"github.com/clambin/adax-monitor/pkg/adax"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestServer_Rooms(t *testing.T) {
	s, _, _ := newServer(t)

	tests := []struct {
		name     string
		path     string
		wantCode int
		wantBody string
	}{
		{
			name:     "list",
			path:     "/rooms",
			wantCode: http.StatusOK,
			wantBody: `[{"id":5,"name":"Living room","current":21.37,"target":22,"mode":"heat"},{"id":6,"name":"Bedroom","mode":"heat"}]`,
		},
		{
			name:     "room",
			path:     "/rooms/5",
			wantCode: http.StatusOK,
			wantBody: `{"id":5,"name":"Living room","current":21.37,"target":22,"mode":"heat"}`,
		},
		{
			name:     "unknown room",
			path:     "/rooms/7",
			wantCode: http.StatusNotFound,
		},
		{
			name:     "invalid room",
			path:     "/rooms/foo",
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := httptest.NewRecorder()
			s.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.wantCode, resp.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, resp.Body.String())
			}
		})
	}
}

func TestServer_SetTarget(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		body      string
		failure   error
		wantCode  int
		wantCalls []float64
	}{
		{
			name:      "set",
			path:      "/rooms/5/target",
			body:      `{"temperature":21.5}`,
			wantCode:  http.StatusOK,
			wantCalls: []float64{21.5},
		},
		{
			name:     "null temperature",
			path:     "/rooms/5/target",
			body:     `{"temperature":null}`,
			wantCode: http.StatusOK,
		},
		{
			name:     "missing temperature",
			path:     "/rooms/5/target",
			body:     `{}`,
			wantCode: http.StatusOK,
		},
		{
			name:     "invalid body",
			path:     "/rooms/5/target",
			body:     `{"temperature":"hot"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "out of range",
			path:     "/rooms/5/target",
			body:     `{"temperature":1e300}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown room",
			path:     "/rooms/7/target",
			body:     `{"temperature":21.5}`,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "api failure",
			path:     "/rooms/5/target",
			body:     `{"temperature":21.5}`,
			failure:  adax.ErrAuthFailure,
			wantCode: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, svc, _ := newServer(t)
			svc.err = tt.failure

			resp := httptest.NewRecorder()
			s.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body)))
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.Equal(t, tt.wantCalls, svc.targets())

			if tt.wantCode == http.StatusOK {
				var state device.State
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
				want := 22.0
				if len(tt.wantCalls) > 0 {
					want = tt.wantCalls[0]
				}
				assert.Equal(t, want, *state.Target)
			}
		})
	}
}

func TestServer_Stream(t *testing.T) {
	s, _, p := newServer(t)
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/rooms/stream", nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return p.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	d, ok := p.Device(5)
	require.True(t, ok)
	target := 19.0
	require.NoError(t, d.SetTarget(context.Background(), &target))

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	var update poller.Update
	require.NoError(t, conn.ReadJSON(&update))
	room, ok := update.GetRoom(5)
	require.True(t, ok)
	assert.Equal(t, 19.0, *room.Target)

	// client disconnects: subscription is removed
	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return p.Subscribers() == 0 }, time.Second, 10*time.Millisecond)
}

func newServer(t *testing.T) (*api.Server, *fakeService, *poller.AdaxPoller) {
	t.Helper()
	temperature, target := 2137, 2200
	svc := fakeService{rooms: []adax.Room{{ID: 5, Temperature: &temperature, TargetTemperature: &target}}}
	p := poller.New(&svc, time.Hour, nil, slog.New(slog.DiscardHandler))
	living := device.New(&svc, 5, "Living room", p, slog.New(slog.DiscardHandler))
	living.Update(svc.rooms)
	p.Add(living, device.New(&svc, 6, "Bedroom", p, slog.New(slog.DiscardHandler)))
	return api.New(p, p, slog.New(slog.DiscardHandler)), &svc, p
}

var _ device.RoomService = &fakeService{}

type fakeService struct {
	lock  sync.Mutex
	rooms []adax.Room
	err   error
	calls []float64
}

func (f *fakeService) ListRooms(_ context.Context) ([]adax.Room, error) {
	return f.rooms, f.err
}

func (f *fakeService) SetTemperature(_ context.Context, _ int, temperature float64) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, temperature)
	return nil
}

func (f *fakeService) targets() []float64 {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.calls
}
