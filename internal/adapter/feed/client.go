package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/traffic-incident-monitor/internal/domain"
)

// maxBodyBytes caps how much of a feed response is read.
const maxBodyBytes = 16 << 20

// NewHTTPClient returns a client with an overall request timeout and a
// transport tuned for a handful of long-lived upstream hosts.
func NewHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

// getJSON fetches rawURL and decodes the body into out. Every failure is a
// *FetchError tagged with sourceID.
func getJSON(ctx context.Context, hc *http.Client, sourceID, rawURL string, header http.Header, out any) error {
	u, err := cacheBust(rawURL)
	if err != nil {
		return &FetchError{Source: sourceID, Kind: KindNetwork, Err: fmt.Errorf("parse url: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &FetchError{Source: sourceID, Kind: KindNetwork, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := hc.Do(req)
	if err != nil {
		return &FetchError{Source: sourceID, Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &FetchError{Source: sourceID, Kind: KindHTTPStatus, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &FetchError{Source: sourceID, Kind: KindNetwork, Err: fmt.Errorf("read body: %w", err)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &FetchError{Source: sourceID, Kind: KindParse, Err: fmt.Errorf("decode body: %w", err)}
	}
	return nil
}

// cacheBust appends t=<unix millis> so intermediate caches never serve a stale
// feed.
func cacheBust(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("t", strconv.FormatInt(domain.Now().UnixMilli(), 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// recoverParse turns a panic inside a decoder into a parse FetchError.
func recoverParse(sourceID string, err *error) {
	if r := recover(); r != nil {
		*err = &FetchError{Source: sourceID, Kind: KindParse, Err: fmt.Errorf("panic: %v", r)}
	}
}
