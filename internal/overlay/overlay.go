// Package overlay keeps the map markers in step with the image list.
package overlay

import (
	"html"
	"log/slog"

	"github.com/photomap/photomap/internal/geo"
	"github.com/photomap/photomap/internal/model"
	"github.com/photomap/photomap/internal/reactive"
	"github.com/photomap/photomap/internal/surface"
	"github.com/photomap/photomap/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// DefaultIconSize is the marker thumbnail edge length in pixels.
const DefaultIconSize = 75

// State is a marker's lifecycle state.
type State int

const (
	Unplaced State = iota
	Placed
	Removed
)

func (s State) String() string {
	switch s {
	case Unplaced:
		return "unplaced"
	case Placed:
		return "placed"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// marker pairs one image entry with the handle drawn for it.
type marker struct {
	entry   *model.ImageEntry
	handle  surface.Marker
	state   State
	unwatch reactive.Unsubscribe
}

// Manager owns every marker handle on the map. It must only be used from the
// event loop.
type Manager struct {
	surface  surface.Map
	info     surface.InfoWindow
	markers  []*marker
	iconSize int
	logger   *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithIconSize overrides DefaultIconSize.
func WithIconSize(px int) Option {
	return func(m *Manager) {
		if px > 0 {
			m.iconSize = px
		}
	}
}

// New creates a Manager drawing on s. It opens the single shared info window
// and clears marker emphasis when the user closes it.
func New(s surface.Map, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		surface:  s,
		iconSize: DefaultIconSize,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.info = s.NewInfoWindow()
	m.info.OnCloseClick(m.stopAnimations)

	return m
}

// Rebuild replaces the overlay with one marker per entry, in order. An empty
// list leaves the current overlay standing.
func (m *Manager) Rebuild(entries []*model.ImageEntry) {
	if len(entries) == 0 {
		return
	}
	m.ClearAll()

	m.markers = make([]*marker, 0, len(entries))
	for _, e := range entries {
		m.markers = append(m.markers, m.place(e))
	}
	m.logger.Debug("overlay rebuilt", "markers", len(m.markers))
}

func (m *Manager) place(e *model.ImageEntry) *marker {
	mk := &marker{entry: e, state: Unplaced}

	mk.handle = m.surface.NewMarker(surface.MarkerOptions{
		Position:  e.Position,
		Visible:   e.Visible.Get(),
		Icon:      surface.Icon{URL: e.ThumbURL, Size: m.iconSize},
		Animation: surface.AnimationDrop,
	})
	mk.state = Placed

	mk.unwatch = e.Visible.Subscribe(func(visible bool) {
		if mk.state == Placed {
			mk.handle.SetVisible(visible)
		}
	})
	mk.handle.OnClick(func() { m.selectMarker(mk) })

	return mk
}

// selectMarker emphasises mk alone and shows its entry in the info window.
func (m *Manager) selectMarker(mk *marker) {
	if mk.state != Placed {
		return
	}
	m.stopAnimations()
	mk.handle.SetAnimation(surface.AnimationBounce)
	m.info.SetContent(InfoContent(mk.entry.Name, mk.entry.FullURL))
	m.info.Open(mk.handle)
}

func (m *Manager) stopAnimations() {
	for _, mk := range m.markers {
		if mk.state == Placed {
			mk.handle.SetAnimation(surface.AnimationNone)
		}
	}
}

// ClearAll removes every placed marker from the map and releases it.
func (m *Manager) ClearAll() {
	for _, mk := range m.markers {
		m.remove(mk)
	}
	m.markers = nil
}

func (m *Manager) remove(mk *marker) {
	if mk.state != Placed {
		return
	}
	mk.unwatch()
	mk.handle.Release()
	mk.handle = nil
	mk.state = Removed
}

// CloseInfo closes the shared info window.
func (m *Manager) CloseInfo() {
	m.info.Close()
}

// Placed returns the number of placed markers.
func (m *Manager) Placed() int {
	n := 0
	for _, mk := range m.markers {
		if mk.state == Placed {
			n++
		}
	}
	return n
}

// Entries returns the entries of the placed markers, in marker order.
func (m *Manager) Entries() []*model.ImageEntry {
	out := make([]*model.ImageEntry, 0, len(m.markers))
	for _, mk := range m.markers {
		if mk.state == Placed {
			out = append(out, mk.entry)
		}
	}
	return out
}

// Bounds returns the lng/lat envelope of the placed markers.
func (m *Manager) Bounds() (geom.Envelope, error) {
	points := make([]core.GeoPoint, 0, len(m.markers))
	for _, e := range m.Entries() {
		points = append(points, e.Position)
	}
	return geo.Envelope(points)
}

// InfoContent renders the info window body for a photo.
func InfoContent(name, imageURL string) string {
	return `<p><span class="info-title">` + html.EscapeString(name) + `</span></p><p>` +
		`<img class="info-image" alt="Marker image" src="` + html.EscapeString(imageURL) + `"></p>`
}
