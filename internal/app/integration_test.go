package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/photomap/photomap/internal/dispatcher"
	"github.com/photomap/photomap/internal/model"
	"github.com/photomap/photomap/internal/notification"
	"github.com/photomap/photomap/internal/overlay"
	"github.com/photomap/photomap/internal/photos"
	"github.com/photomap/photomap/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoRecords = `{"data":[
	{"location":{"name":"Galle Face","latitude":6.927,"longitude":79.845},
	 "images":{"thumbnail":{"url":"https://cdn/t1.jpg"},"low_resolution":{"url":"https://cdn/l1.jpg"}}},
	{"location":{"name":"Pettah","latitude":6.936,"longitude":79.851},
	 "images":{"thumbnail":{"url":"https://cdn/t2.jpg"},"low_resolution":{"url":"https://cdn/l2.jpg"}}}
]}`

type countingOverlay struct {
	*overlay.Manager
	clears   int
	rebuilds []int
}

func (c *countingOverlay) ClearAll() {
	c.clears++
	c.Manager.ClearAll()
}

func (c *countingOverlay) Rebuild(entries []*model.ImageEntry) {
	c.rebuilds = append(c.rebuilds, len(entries))
	c.Manager.Rebuild(entries)
}

type capturedTimers struct {
	mu    sync.Mutex
	delay []time.Duration
	fns   []func()
}

func (c *capturedTimers) after(d time.Duration, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delay = append(c.delay, d)
	c.fns = append(c.fns, fn)
}

func (c *capturedTimers) fire(i int) {
	c.mu.Lock()
	fn := c.fns[i]
	c.mu.Unlock()
	fn()
}

func (c *capturedTimers) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.fns)
}

func TestSearchEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "6.93", r.URL.Query().Get("lat"))
		assert.Equal(t, "79.87", r.URL.Query().Get("lng"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, twoRecords)
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	events, err := dispatcher.New(nopLogger{})
	require.NoError(t, err)

	start := core.GeoPoint{Lat: 6.93, Lng: 79.87}
	m := model.New(start)
	var statuses []notification.Status
	m.Notification.Subscribe(func(s notification.State) { statuses = append(statuses, s.Status) })

	fm := &fakeMap{}
	ov := &countingOverlay{Manager: overlay.New(fm, logger)}
	tm := &capturedTimers{}
	client := photos.New(photos.Config{Endpoint: srv.URL, ClientID: "test"}, m.Notification, events, logger,
		photos.WithHTTPClient(srv.Client()),
		photos.WithAfterFunc(tm.after),
	)

	orch := New(Dependencies{
		Model:   m,
		Map:     fm,
		Overlay: ov,
		Photos:  client,
		Events:  events,
		Logger:  logger,
	}, Config{})
	orch.Start(context.Background())

	require.NoError(t, events.Dispatch(dispatcher.Event{Command: CommandMapReady}))
	events.RunPending()
	assert.Equal(t, []notification.Status{notification.Loading}, statuses)

	require.Eventually(t, func() bool { return events.Pending() > 0 }, 2*time.Second, 5*time.Millisecond)
	events.RunPending()

	require.Len(t, m.Images.Get(), 2)
	assert.Equal(t, 1, ov.clears)
	assert.Equal(t, []int{2}, ov.rebuilds)
	assert.Equal(t, 2, ov.Placed())
	assert.Len(t, fm.markers, 2)
	assert.Equal(t, "(0/2 filtered out) Galle Face | Pettah", m.Summary.Get())

	require.Equal(t, 1, tm.count())
	assert.Equal(t, photos.DefaultAutoClear, tm.delay[0])
	tm.fire(0)
	events.RunPending()

	assert.Equal(t, []notification.Status{notification.Loading, notification.Ok, notification.Hidden}, statuses)
	assert.Equal(t, notification.Cleared, m.Snapshot().Notification)
}

func TestSearchEndToEnd_FailureKeepsImages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	events, err := dispatcher.New(nopLogger{})
	require.NoError(t, err)

	m := model.New(colombo)
	m.Images.Set(model.NewImageEntries([]core.Photo{{Name: "kept"}}))

	fm := &fakeMap{}
	ov := &countingOverlay{Manager: overlay.New(fm, logger)}
	client := photos.New(photos.Config{Endpoint: srv.URL}, m.Notification, events, logger,
		photos.WithHTTPClient(srv.Client()),
	)
	New(Dependencies{Model: m, Map: fm, Overlay: ov, Photos: client, Events: events, Logger: logger}, Config{}).
		Start(context.Background())

	require.NoError(t, events.Dispatch(dispatcher.Event{Command: CommandMapReady}))
	events.RunPending()
	require.Eventually(t, func() bool { return events.Pending() > 0 }, 2*time.Second, 5*time.Millisecond)
	events.RunPending()

	assert.Equal(t, notification.Error, m.Notification.Get().Status)
	assert.Equal(t, photos.MessageFailed, m.Notification.Get().Message)
	require.Len(t, m.Images.Get(), 1)
	assert.Equal(t, "kept", m.Images.Get()[0].Name)
	assert.Zero(t, ov.clears)
}
