// Package surface describes the mapping widget as seen by photomap: a map
// that can be re-centered, markers placed on it, and a single info window.
// Implementations deliver widget callbacks (marker clicks, info window close)
// on the event loop.
package surface

import (
	"github.com/photomap/photomap/internal/notification"
	"github.com/photomap/photomap/pkg/core"
)

// Animation is the emphasis applied to a marker.
type Animation int

const (
	AnimationNone Animation = iota
	AnimationDrop
	AnimationBounce
)

// String returns the animation name used on the wire.
func (a Animation) String() string {
	switch a {
	case AnimationDrop:
		return "drop"
	case AnimationBounce:
		return "bounce"
	default:
		return "none"
	}
}

// Icon is a marker image scaled to Size x Size pixels.
type Icon struct {
	URL  string `json:"url"`
	Size int    `json:"size"`
}

// MarkerOptions describes a marker at creation.
type MarkerOptions struct {
	Position  core.GeoPoint
	Visible   bool
	Icon      Icon
	Animation Animation
}

// Map is the map surface.
type Map interface {
	SetCenter(p core.GeoPoint)
	SetZoom(level int)
	NewMarker(opts MarkerOptions) Marker
	NewInfoWindow() InfoWindow
}

// Marker is a marker handle. After Release the handle must not be used.
type Marker interface {
	// SetVisible attaches the marker to the map surface or detaches it
	// without destroying it.
	SetVisible(visible bool)
	SetAnimation(a Animation)
	OnClick(fn func())
	// Release detaches the marker and frees the handle.
	Release()
}

// InfoWindow is the popup anchored at a marker.
type InfoWindow interface {
	SetContent(html string)
	Open(anchor Marker)
	Close()
	OnCloseClick(fn func())
}

// View is the text around the map: status line, summary line, center
// description and the filter field.
type View interface {
	ShowStatus(s notification.State)
	ShowSummary(text string)
	ShowCenter(text string)
	ShowFilter(text string)
}
