// pkg/core/photo.go
package core

// Photo is one normalized result from the photo search API.
// Name is the location label and is not unique across results.
type Photo struct {
	Name     string   `json:"name"`
	Position GeoPoint `json:"position"`
	ThumbURL string   `json:"thumbUrl"`
	FullURL  string   `json:"fullUrl"`
}
