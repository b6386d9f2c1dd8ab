// Package streaming defines the messages exchanged with the map widget over
// the WebSocket.
package streaming

import (
	"encoding/json"

	"github.com/photomap/photomap/pkg/core"
)

// Commands sent to the widget.
const (
	TypeHello        = "hello"
	TypeMapCenter    = "map.center"
	TypeMapZoom      = "map.zoom"
	TypeMarkerAdd    = "marker.add"
	TypeMarkerShow   = "marker.visible"
	TypeMarkerAnim   = "marker.animation"
	TypeMarkerRemove = "marker.remove"
	TypeInfoContent  = "info.content"
	TypeInfoOpen     = "info.open"
	TypeInfoClose    = "info.close"
	TypeViewStatus   = "view.status"
	TypeViewSummary  = "view.summary"
	TypeViewCenter   = "view.center"
	TypeViewFilter   = "view.filter"
)

// Events received from the widget. Anything else is forwarded to the event
// loop under its own type.
const (
	TypeAck            = "ack"
	TypeMarkerClick    = "marker.click"
	TypeInfoCloseClick = "info.closeclick"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the widget's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// HelloPayload opens a session. It is replayed after a reconnect.
type HelloPayload struct {
	Session string `json:"session"`
}

// Mercator is a Web Mercator (EPSG:3857) position.
type Mercator struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CenterPayload moves the map.
type CenterPayload struct {
	Position core.GeoPoint `json:"position"`
	Mercator Mercator      `json:"mercator"`
}

// ZoomPayload sets the zoom level.
type ZoomPayload struct {
	Zoom int `json:"zoom"`
}

// Icon is a square marker image.
type Icon struct {
	URL  string `json:"url"`
	Size int    `json:"size"`
}

// MarkerAddPayload creates a marker.
type MarkerAddPayload struct {
	ID        string        `json:"id"`
	Position  core.GeoPoint `json:"position"`
	Mercator  Mercator      `json:"mercator"`
	Visible   bool          `json:"visible"`
	Icon      Icon          `json:"icon"`
	Animation string        `json:"animation"`
}

// MarkerVisiblePayload attaches or detaches a marker.
type MarkerVisiblePayload struct {
	ID      string `json:"id"`
	Visible bool   `json:"visible"`
}

// MarkerAnimationPayload sets a marker animation.
type MarkerAnimationPayload struct {
	ID        string `json:"id"`
	Animation string `json:"animation"`
}

// MarkerRefPayload names a marker. Used by marker.remove, info.open and the
// incoming marker.click.
type MarkerRefPayload struct {
	ID string `json:"id"`
}

// InfoContentPayload sets the info window HTML.
type InfoContentPayload struct {
	HTML string `json:"html"`
}

// StatusPayload is the notification line.
type StatusPayload struct {
	Message string `json:"message"`
	Status  string `json:"status"`
	Class   string `json:"class"`
	Visible bool   `json:"visible"`
}

// TextPayload carries a single line of text.
type TextPayload struct {
	Text string `json:"text"`
}
