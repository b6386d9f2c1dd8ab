// Package app wires the data model, the photo search client, the overlay and
// the mapping widget together.
package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/photomap/photomap/internal/dispatcher"
	"github.com/photomap/photomap/internal/model"
	"github.com/photomap/photomap/internal/surface"
	"github.com/photomap/photomap/pkg/core"
)

// Widget event commands.
const (
	CommandMapReady      = "map.ready"
	CommandPlacesChanged = "places.changed"
	CommandFilterInput   = "filter.input"
)

// DefaultZoom is the zoom level applied on every re-center.
const DefaultZoom = 12

// ErrNoPlaces is returned when a search box selection carries no place.
var ErrNoPlaces = errors.New("invalid place")

// Searcher fetches photos near a point.
type Searcher interface {
	Search(ctx context.Context, point core.GeoPoint, onSuccess func([]core.Photo), onError func(error)) error
}

// Overlay is the marker set on the map.
type Overlay interface {
	Rebuild(entries []*model.ImageEntry)
	ClearAll()
	CloseInfo()
}

// Registrar accepts widget event handlers.
type Registrar interface {
	Register(command string, h dispatcher.HandlerFunc, opts ...dispatcher.Option)
}

// Config holds orchestration settings.
type Config struct {
	Zoom int
	// CancelSuperseded cancels the previous search when a new one starts, so a
	// slow earlier search can no longer overwrite a newer result.
	CancelSuperseded bool
}

// Dependencies holds all dependencies for the orchestrator. View is optional.
type Dependencies struct {
	Model   *model.Model
	Map     surface.Map
	View    surface.View
	Overlay Overlay
	Photos  Searcher
	Events  Registrar
	Logger  *slog.Logger
}

// Orchestrator installs the reactive wiring between the components.
type Orchestrator struct {
	deps       Dependencies
	cfg        Config
	ctx        context.Context
	cancelPrev context.CancelFunc
}

// New creates an orchestrator. Nothing is wired until Start.
func New(deps Dependencies, cfg Config) *Orchestrator {
	if cfg.Zoom <= 0 {
		cfg.Zoom = DefaultZoom
	}
	return &Orchestrator{
		deps: deps,
		cfg:  cfg,
		ctx:  context.Background(),
	}
}

// Start installs every subscription and widget handler. Searches started
// afterwards are bound to ctx. Must be called once, on the event loop.
func (o *Orchestrator) Start(ctx context.Context) {
	o.ctx = ctx
	m := o.deps.Model

	m.Center.Subscribe(func(p core.GeoPoint) {
		o.deps.Map.SetCenter(p)
		o.deps.Map.SetZoom(o.cfg.Zoom)
	})
	m.Center.Subscribe(o.search)

	m.Filter.Subscribe(func(filter string) {
		o.deps.Overlay.CloseInfo()
		m.ApplyFilter(filter)
	})

	m.Images.Subscribe(func(entries []*model.ImageEntry) {
		if len(entries) == 0 {
			return
		}
		o.deps.Overlay.ClearAll()
		o.deps.Overlay.Rebuild(entries)
	})

	if v := o.deps.View; v != nil {
		m.Notification.Subscribe(v.ShowStatus)
		m.Summary.Subscribe(v.ShowSummary)
		m.CenterText.Subscribe(v.ShowCenter)
		m.Filter.Subscribe(v.ShowFilter)
		v.ShowStatus(m.Notification.Get())
		v.ShowSummary(m.Summary.Get())
		v.ShowCenter(m.CenterText.Get())
	}

	o.deps.Events.Register(CommandMapReady, func(dispatcher.Event) error {
		o.MapReady()
		return nil
	}, dispatcher.Logged())
	o.deps.Events.Register(CommandPlacesChanged, func(e dispatcher.Event) error {
		var p struct {
			Places []core.GeoPoint `json:"places"`
		}
		if err := e.Decode(&p); err != nil {
			return err
		}
		return o.PlaceSelected(p.Places)
	}, dispatcher.Logged())
	o.deps.Events.Register(CommandFilterInput, func(e dispatcher.Event) error {
		var p struct {
			Text string `json:"text"`
		}
		if err := e.Decode(&p); err != nil {
			return err
		}
		o.SetFilter(p.Text)
		return nil
	})
}

// MapReady re-assigns the center to itself so its subscribers run once,
// which triggers the initial search.
func (o *Orchestrator) MapReady() {
	m := o.deps.Model
	m.Center.Set(m.Center.Get())
}

// PlaceSelected moves the center to the first selected place. An empty
// selection is logged and ignored.
func (o *Orchestrator) PlaceSelected(places []core.GeoPoint) error {
	if len(places) == 0 {
		o.deps.Logger.Warn("search box returned no places", "error", ErrNoPlaces)
		return nil
	}
	o.deps.Model.Center.Set(places[0])
	return nil
}

// SetFilter writes the filter text.
func (o *Orchestrator) SetFilter(text string) {
	o.deps.Model.Filter.Set(text)
}

func (o *Orchestrator) search(p core.GeoPoint) {
	ctx := o.ctx
	if o.cfg.CancelSuperseded {
		if o.cancelPrev != nil {
			o.cancelPrev()
		}
		ctx, o.cancelPrev = context.WithCancel(o.ctx)
	}

	err := o.deps.Photos.Search(ctx, p, o.applyPhotos, func(err error) {
		o.deps.Logger.Warn("photo search failed", "lat", p.Lat, "lng", p.Lng, "error", err)
	})
	if err != nil {
		o.deps.Logger.Error("photo search not started", "lat", p.Lat, "lng", p.Lng, "error", err)
	}
}

// applyPhotos empties the image list, resets the filter, then writes the new
// list. The reset runs with no entries current so outgoing markers keep their
// visibility until they are released.
func (o *Orchestrator) applyPhotos(photos []core.Photo) {
	m := o.deps.Model
	m.Images.Set(nil)
	m.Filter.Set("")
	m.Images.Set(model.NewImageEntries(photos))
}
