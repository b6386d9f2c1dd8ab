// Package websocket drives a browser-hosted map widget over a WebSocket. It
// implements surface.Map and surface.View by sending commands, and feeds the
// widget's events into the event loop.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/photomap/photomap/internal/dispatcher"
	"github.com/photomap/photomap/internal/geo"
	"github.com/photomap/photomap/internal/notification"
	"github.com/photomap/photomap/internal/surface"
	"github.com/photomap/photomap/pkg/core"
	"github.com/photomap/photomap/pkg/streaming"
)

// Config holds WebSocket surface configuration.
type Config struct {
	URL    string
	Secret string
}

// Events is the event loop as seen by the surface.
type Events interface {
	Register(command string, h dispatcher.HandlerFunc, opts ...dispatcher.Option)
	Dispatch(e dispatcher.Event) error
}

// Surface is a remote map widget. Map and View methods must be called on the
// event loop.
type Surface struct {
	conn    *connection
	cfg     Config
	events  Events
	session string
	logger  *slog.Logger

	markers map[string]*marker
	info    *infoWindow
}

var (
	_ surface.Map  = (*Surface)(nil)
	_ surface.View = (*Surface)(nil)
)

// New creates a surface and registers the marker.click and info.closeclick
// handlers on events.
func New(cfg Config, events Events, logger *slog.Logger) *Surface {
	s := &Surface{
		cfg:     cfg,
		events:  events,
		session: uuid.NewString(),
		logger:  logger,
		markers: make(map[string]*marker),
	}
	s.conn = newConnection(logger, s.forward)

	events.Register(streaming.TypeMarkerClick, s.handleMarkerClick)
	events.Register(streaming.TypeInfoCloseClick, s.handleInfoCloseClick)
	return s
}

// Session returns the id announced in the hello message.
func (s *Surface) Session() string {
	return s.session
}

// Init connects to the widget and waits for it to acknowledge the session.
// Commands issued before Init are queued and sent after the hello.
func (s *Surface) Init() error {
	data, err := marshalEnvelope(streaming.TypeHello, streaming.HelloPayload{Session: s.session})
	if err != nil {
		return err
	}
	if err := s.conn.dial(s.cfg.URL, s.cfg.Secret, data); err != nil {
		return err
	}
	return s.conn.waitAck(streaming.TypeHello, ackTimeout)
}

// OnReconnect sets fn to run after the connection is re-established. The
// widget comes back as a fresh page, so fn should redraw it. fn runs on the
// connection goroutine. Must be called before Init.
func (s *Surface) OnReconnect(fn func()) {
	s.conn.mu.Lock()
	s.conn.onReconnect = fn
	s.conn.mu.Unlock()
}

// Close disconnects from the widget.
func (s *Surface) Close() error {
	return s.conn.close()
}

// forward runs on the read goroutine.
func (s *Surface) forward(env streaming.Envelope) {
	err := s.events.Dispatch(dispatcher.Event{Command: env.Type, Payload: env.Payload})
	if err != nil {
		s.logger.Debug("Widget event ignored", "type", env.Type, "error", err)
	}
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope pushes a command to the write loop (fire-and-forget).
func (s *Surface) sendEnvelope(msgType string, payload any) {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		s.logger.Error("Failed to encode widget command", "type", msgType, "error", err)
		return
	}
	s.conn.send(data)
}

func (s *Surface) mercator(p core.GeoPoint) streaming.Mercator {
	point, err := geo.WebMercator(p)
	if err != nil {
		s.logger.Warn("Failed to project position", "lat", p.Lat, "lng", p.Lng, "error", err)
		return streaming.Mercator{}
	}
	c, ok := point.Coordinates()
	if !ok {
		return streaming.Mercator{}
	}
	return streaming.Mercator{X: c.XY.X, Y: c.XY.Y}
}

func (s *Surface) SetCenter(p core.GeoPoint) {
	s.sendEnvelope(streaming.TypeMapCenter, streaming.CenterPayload{Position: p, Mercator: s.mercator(p)})
}

func (s *Surface) SetZoom(level int) {
	s.sendEnvelope(streaming.TypeMapZoom, streaming.ZoomPayload{Zoom: level})
}

// NewMarker assigns a fresh id and creates the marker on the widget.
func (s *Surface) NewMarker(opts surface.MarkerOptions) surface.Marker {
	m := &marker{s: s, id: uuid.NewString()}
	s.markers[m.id] = m
	s.sendEnvelope(streaming.TypeMarkerAdd, streaming.MarkerAddPayload{
		ID:        m.id,
		Position:  opts.Position,
		Mercator:  s.mercator(opts.Position),
		Visible:   opts.Visible,
		Icon:      streaming.Icon{URL: opts.Icon.URL, Size: opts.Icon.Size},
		Animation: opts.Animation.String(),
	})
	return m
}

// NewInfoWindow returns the widget's info window. The widget has exactly one.
func (s *Surface) NewInfoWindow() surface.InfoWindow {
	if s.info == nil {
		s.info = &infoWindow{s: s}
	}
	return s.info
}

// Markers returns the number of live markers.
func (s *Surface) Markers() int {
	return len(s.markers)
}

func (s *Surface) handleMarkerClick(e dispatcher.Event) error {
	var ref streaming.MarkerRefPayload
	if err := e.Decode(&ref); err != nil {
		return err
	}
	m, ok := s.markers[ref.ID]
	if !ok {
		return fmt.Errorf("unknown marker %q", ref.ID)
	}
	if m.onClick != nil {
		m.onClick()
	}
	return nil
}

func (s *Surface) handleInfoCloseClick(dispatcher.Event) error {
	if s.info != nil && s.info.onCloseClick != nil {
		s.info.onCloseClick()
	}
	return nil
}

func (s *Surface) ShowStatus(st notification.State) {
	s.sendEnvelope(streaming.TypeViewStatus, streaming.StatusPayload{
		Message: st.Message,
		Status:  st.Status.String(),
		Class:   st.Status.Class(),
		Visible: st.Visible(),
	})
}

func (s *Surface) ShowSummary(text string) {
	s.sendEnvelope(streaming.TypeViewSummary, streaming.TextPayload{Text: text})
}

func (s *Surface) ShowCenter(text string) {
	s.sendEnvelope(streaming.TypeViewCenter, streaming.TextPayload{Text: text})
}

func (s *Surface) ShowFilter(text string) {
	s.sendEnvelope(streaming.TypeViewFilter, streaming.TextPayload{Text: text})
}

type marker struct {
	s       *Surface
	id      string
	onClick func()
}

func (m *marker) SetVisible(v bool) {
	m.s.sendEnvelope(streaming.TypeMarkerShow, streaming.MarkerVisiblePayload{ID: m.id, Visible: v})
}

func (m *marker) SetAnimation(a surface.Animation) {
	m.s.sendEnvelope(streaming.TypeMarkerAnim, streaming.MarkerAnimationPayload{ID: m.id, Animation: a.String()})
}

func (m *marker) OnClick(fn func()) {
	m.onClick = fn
}

func (m *marker) Release() {
	delete(m.s.markers, m.id)
	m.onClick = nil
	m.s.sendEnvelope(streaming.TypeMarkerRemove, streaming.MarkerRefPayload{ID: m.id})
}

type infoWindow struct {
	s            *Surface
	onCloseClick func()
}

func (w *infoWindow) SetContent(html string) {
	w.s.sendEnvelope(streaming.TypeInfoContent, streaming.InfoContentPayload{HTML: html})
}

func (w *infoWindow) Open(anchor surface.Marker) {
	m, ok := anchor.(*marker)
	if !ok {
		w.s.logger.Warn("Info window anchored to a foreign marker")
		return
	}
	w.s.sendEnvelope(streaming.TypeInfoOpen, streaming.MarkerRefPayload{ID: m.id})
}

func (w *infoWindow) Close() {
	w.s.sendEnvelope(streaming.TypeInfoClose, struct{}{})
}

func (w *infoWindow) OnCloseClick(fn func()) {
	w.onCloseClick = fn
}
