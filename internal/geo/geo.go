package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/photomap/photomap/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// Points arrive as WGS84 (EPSG:4326) lat/lng. The mapping widget renders in
// Web Mercator (EPSG:3857), so marker commands carry both.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Validate checks that p is a finite lat/lng pair inside WGS84 bounds.
func Validate(p core.GeoPoint) error {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || math.IsNaN(p.Lng) || math.IsInf(p.Lng, 0) {
		return ErrInvalidCoordinates
	}
	if p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}

// ParsePoint parses a string in the format "lat,lng" into a GeoPoint.
func ParsePoint(coords string) (core.GeoPoint, error) {
	coordsSplit := strings.Split(coords, ",")
	if len(coordsSplit) != 2 {
		return core.GeoPoint{}, ErrInvalidCoordinates
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[0]), 64)
	if err != nil {
		return core.GeoPoint{}, ErrInvalidCoordinates
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[1]), 64)
	if err != nil {
		return core.GeoPoint{}, ErrInvalidCoordinates
	}
	p := core.GeoPoint{Lat: lat, Lng: lng}
	if err := Validate(p); err != nil {
		return core.GeoPoint{}, err
	}
	return p, nil
}

// WebMercator projects p into an EPSG:3857 point.
func WebMercator(p core.GeoPoint) (point geom.Point, err error) {
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ := f(p.Lng, p.Lat, 0)
	point, err = geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: x, Y: y},
			Type: geom.DimXY,
		},
	)
	if err != nil {
		return geom.Point{}, fmt.Errorf("project %v,%v: %w", p.Lat, p.Lng, err)
	}
	return point, nil
}

// Envelope returns the lng/lat bounding box of points. The envelope is empty
// when points is empty.
func Envelope(points []core.GeoPoint) (geom.Envelope, error) {
	var env geom.Envelope
	for _, p := range points {
		next, err := env.ExtendToIncludeXY(geom.XY{X: p.Lng, Y: p.Lat})
		if err != nil {
			return geom.Envelope{}, fmt.Errorf("extend envelope to %v,%v: %w", p.Lat, p.Lng, err)
		}
		env = next
	}
	return env, nil
}
