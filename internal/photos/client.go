// Package photos queries the photo search API for media near a point.
package photos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/photomap/photomap/internal/geo"
	"github.com/photomap/photomap/internal/notification"
	"github.com/photomap/photomap/internal/reactive"
	"github.com/photomap/photomap/pkg/core"
)

// Status line messages.
const (
	MessageLoading = "Loading photos near location."
	MessageLoaded  = "Photos loaded."
	MessageFailed  = "Photo search failed."
)

const (
	// DefaultRadius is the search radius in meters.
	DefaultRadius = 5000
	// DefaultAutoClear is how long the completion message stays up.
	DefaultAutoClear = 3 * time.Second
	// DefaultTimeout bounds one search request.
	DefaultTimeout = 30 * time.Second

	maxResponseBytes = 10 << 20
)

var (
	// ErrInvalidPoint is returned for a point that is not a finite lat/lng pair.
	ErrInvalidPoint = errors.New("invalid search point")
	// ErrNetworkFailure covers transport errors and non-2xx responses.
	ErrNetworkFailure = errors.New("photo search request failed")
	// ErrMalformedResponse is returned when the payload lacks expected fields.
	ErrMalformedResponse = errors.New("malformed photo search response")
)

// Executor runs continuations on the event loop.
type Executor interface {
	Post(fn func())
}

// Recorder receives one call per finished search. It is called off the
// event loop and must be safe for concurrent use.
type Recorder interface {
	RecordSearch(point core.GeoPoint, results int, took time.Duration, err error)
}

// Config holds photo search API settings.
type Config struct {
	Endpoint  string
	ClientID  string
	Radius    int
	Timeout   time.Duration
	AutoClear time.Duration
}

// Client performs photo searches and reports progress through the
// notification cell.
type Client struct {
	cfg        Config
	httpClient *http.Client
	status     *reactive.Cell[notification.State]
	exec       Executor
	logger     *slog.Logger
	recorder   Recorder
	afterFunc  func(d time.Duration, fn func())
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRecorder attaches search telemetry.
func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		c.recorder = r
	}
}

// WithAfterFunc replaces the timer used for the auto-clear.
func WithAfterFunc(f func(d time.Duration, fn func())) Option {
	return func(c *Client) {
		c.afterFunc = f
	}
}

// New creates a new photo search client. status is written only from exec.
func New(cfg Config, status *reactive.Cell[notification.State], exec Executor, logger *slog.Logger, opts ...Option) *Client {
	if cfg.Radius <= 0 {
		cfg.Radius = DefaultRadius
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.AutoClear <= 0 {
		cfg.AutoClear = DefaultAutoClear
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		status:     status,
		exec:       exec,
		logger:     logger,
		afterFunc: func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search starts a fetch for photos near point and returns immediately.
//
// It must be called on the event loop. The notification moves to Loading at
// once; on completion onSuccess or onError runs on the event loop. A
// successful search schedules an auto-clear that is never cancelled, and
// nothing orders overlapping searches: whichever completes last is applied
// last. A search whose ctx is cancelled before completion is discarded.
func (c *Client) Search(ctx context.Context, point core.GeoPoint, onSuccess func([]core.Photo), onError func(error)) error {
	if err := geo.Validate(point); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPoint, err)
	}

	c.status.Set(notification.State{Message: MessageLoading, Status: notification.Loading})
	c.logger.Debug("photo search started", "lat", point.Lat, "lng", point.Lng)

	go func() {
		start := time.Now()
		photos, err := c.Fetch(ctx, point)
		if c.recorder != nil {
			c.recorder.RecordSearch(point, len(photos), time.Since(start), err)
		}

		c.exec.Post(func() {
			if ctx.Err() != nil {
				c.logger.Debug("photo search discarded", "lat", point.Lat, "lng", point.Lng, "error", ctx.Err())
				return
			}
			if err != nil {
				c.logger.Warn("photo search failed", "lat", point.Lat, "lng", point.Lng, "error", err)
				c.status.Set(notification.State{Message: MessageFailed, Status: notification.Error})
				if onError != nil {
					onError(err)
				}
				return
			}

			c.logger.Info("photo search complete", "lat", point.Lat, "lng", point.Lng, "results", len(photos))
			c.status.Set(notification.State{Message: MessageLoaded, Status: notification.Ok})
			c.afterFunc(c.cfg.AutoClear, func() {
				c.exec.Post(func() { c.status.Set(notification.Cleared) })
			})
			if onSuccess != nil {
				onSuccess(photos)
			}
		})
	}()

	return nil
}

// Fetch performs one blocking search request.
func (c *Client) Fetch(ctx context.Context, point core.GeoPoint) ([]core.Photo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.searchURL(point), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", ErrNetworkFailure, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrNetworkFailure, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %w", ErrNetworkFailure, err)
	}

	return decode(body)
}

func (c *Client) searchURL(point core.GeoPoint) string {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(point.Lat, 'f', -1, 64))
	q.Set("lng", strconv.FormatFloat(point.Lng, 'f', -1, 64))
	q.Set("distance", strconv.Itoa(c.cfg.Radius))
	q.Set("client_id", c.cfg.ClientID)

	sep := "?"
	if strings.Contains(c.cfg.Endpoint, "?") {
		sep = "&"
	}
	return c.cfg.Endpoint + sep + q.Encode()
}

type searchResponse struct {
	Data *[]media `json:"data"`
}

type media struct {
	Location *struct {
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location"`
	Images *struct {
		Thumbnail     *image `json:"thumbnail"`
		LowResolution *image `json:"low_resolution"`
	} `json:"images"`
}

type image struct {
	URL string `json:"url"`
}

func decode(body []byte) ([]core.Photo, error) {
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("%w: missing data", ErrMalformedResponse)
	}

	photos := make([]core.Photo, 0, len(*resp.Data))
	for i, m := range *resp.Data {
		if m.Location == nil || m.Images == nil || m.Images.Thumbnail == nil || m.Images.LowResolution == nil {
			return nil, fmt.Errorf("%w: record %d incomplete", ErrMalformedResponse, i)
		}
		photos = append(photos, core.Photo{
			Name:     m.Location.Name,
			Position: core.GeoPoint{Lat: m.Location.Latitude, Lng: m.Location.Longitude},
			ThumbURL: m.Images.Thumbnail.URL,
			FullURL:  m.Images.LowResolution.URL,
		})
	}
	return photos, nil
}
