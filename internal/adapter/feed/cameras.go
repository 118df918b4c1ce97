package feed

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrNoAccountKey means the camera client has no government account key and
// never contacted upstream.
var ErrNoAccountKey = errors.New("government account key not configured")

// Camera is one traffic camera snapshot. Field names follow the upstream
// document so API clients see the same shape.
type Camera struct {
	CameraID  string  `json:"CameraID"`
	Latitude  float64 `json:"Latitude"`
	Longitude float64 `json:"Longitude"`
	ImageLink string  `json:"ImageLink"`
}

type cameraDocument struct {
	Value []Camera `json:"value"`
}

// CameraFetcher lists traffic cameras.
type CameraFetcher interface {
	FetchCameras(ctx context.Context) ([]Camera, error)
}

// CameraClient reads the government traffic image list. Cameras are
// display-only.
type CameraClient struct {
	hc         *http.Client
	url        string
	accountKey string
}

func NewCameraClient(hc *http.Client, url, accountKey string) *CameraClient {
	return &CameraClient{hc: hc, url: url, accountKey: accountKey}
}

// FetchCameras returns the current camera list, or an empty slice when the
// document has no value array. Upstream failures are *FetchError.
func (c *CameraClient) FetchCameras(ctx context.Context) ([]Camera, error) {
	if c.accountKey == "" {
		return nil, ErrNoAccountKey
	}
	header := http.Header{}
	header.Set("AccountKey", c.accountKey)

	var doc cameraDocument
	if err := getJSON(ctx, c.hc, "cameras", c.url, header, &doc); err != nil {
		return nil, err
	}
	if doc.Value == nil {
		return []Camera{}, nil
	}
	return doc.Value, nil
}

// CachedCameraClient holds the last successful camera list for ttl.
type CachedCameraClient struct {
	inner CameraFetcher
	ttl   time.Duration
	clock clockwork.Clock

	mu        sync.Mutex
	cameras   []Camera
	fetchedAt time.Time
	cached    bool
}

// NewCachedCameraClient creates a cache decorator. A zero ttl disables
// caching. clock may be nil.
func NewCachedCameraClient(inner CameraFetcher, ttl time.Duration, clock clockwork.Clock) *CachedCameraClient {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CachedCameraClient{inner: inner, ttl: ttl, clock: clock}
}

func (c *CachedCameraClient) FetchCameras(ctx context.Context) ([]Camera, error) {
	if c.ttl > 0 {
		c.mu.Lock()
		if c.cached && c.clock.Since(c.fetchedAt) < c.ttl {
			cams := c.cameras
			c.mu.Unlock()
			return cams, nil
		}
		c.mu.Unlock()
	}

	cams, err := c.inner.FetchCameras(ctx)
	if err != nil {
		return nil, err
	}
	if c.ttl > 0 {
		c.mu.Lock()
		c.cameras, c.fetchedAt, c.cached = cams, c.clock.Now(), true
		c.mu.Unlock()
	}
	return cams, nil
}
