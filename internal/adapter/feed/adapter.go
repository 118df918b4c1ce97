// Package feed fetches upstream incident feeds and normalizes them into
// domain.RawIncident values.
package feed

import (
	"context"
	"fmt"
	"net/http"

	"github.com/couchcryptid/traffic-incident-monitor/internal/domain"
)

// Adapter fetches one source. Errors are always *FetchError.
type Adapter interface {
	Source() domain.FeedSource
	// FetchDocument retrieves and decodes the feed without normalizing it.
	FetchDocument(ctx context.Context) (Document, error)
	// Fetch is FetchDocument followed by Normalize.
	Fetch(ctx context.Context) ([]domain.RawIncident, error)
}

// PartnerAdapter reads a partner alerts feed.
type PartnerAdapter struct {
	src domain.FeedSource
	hc  *http.Client
}

// NewPartnerAdapter creates an adapter for a partner-format source.
func NewPartnerAdapter(src domain.FeedSource, hc *http.Client) *PartnerAdapter {
	return &PartnerAdapter{src: src, hc: hc}
}

func (a *PartnerAdapter) Source() domain.FeedSource { return a.src }

// FetchDocument decodes the partner body. A missing alerts array is zero
// incidents.
func (a *PartnerAdapter) FetchDocument(ctx context.Context) (Document, error) {
	var doc PartnerDocument
	if err := getJSON(ctx, a.hc, a.src.ID, a.src.FetchURL, nil, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (a *PartnerAdapter) Fetch(ctx context.Context) ([]domain.RawIncident, error) {
	return fetchAndNormalize(ctx, a)
}

// GovAdapter reads the government open-data incidents feed.
type GovAdapter struct {
	src        domain.FeedSource
	hc         *http.Client
	accountKey string
}

// NewGovAdapter creates an adapter for a government-format source. An empty
// accountKey makes Fetch return zero incidents without calling upstream.
func NewGovAdapter(src domain.FeedSource, hc *http.Client, accountKey string) *GovAdapter {
	return &GovAdapter{src: src, hc: hc, accountKey: accountKey}
}

func (a *GovAdapter) Source() domain.FeedSource { return a.src }

func (a *GovAdapter) FetchDocument(ctx context.Context) (Document, error) {
	if a.accountKey == "" {
		return GovDocument{}, nil
	}

	header := http.Header{}
	header.Set("AccountKey", a.accountKey)

	var doc GovDocument
	if err := getJSON(ctx, a.hc, a.src.ID, a.src.FetchURL, header, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (a *GovAdapter) Fetch(ctx context.Context) ([]domain.RawIncident, error) {
	return fetchAndNormalize(ctx, a)
}

func fetchAndNormalize(ctx context.Context, a Adapter) ([]domain.RawIncident, error) {
	doc, err := a.FetchDocument(ctx)
	if err != nil {
		return nil, err
	}
	return Normalize(doc, a.Source())
}

// Normalize runs doc.Normalize and reports a panic as a parse FetchError.
func Normalize(doc Document, src domain.FeedSource) (incidents []domain.RawIncident, err error) {
	defer recoverParse(src.ID, &err)
	return doc.Normalize(src), nil
}

// Options carries settings shared by every adapter built from config.
type Options struct {
	HTTPClient    *http.Client
	GovAccountKey string
}

// NewFromSource picks the adapter matching src.Kind.
func NewFromSource(src domain.FeedSource, opts Options) (Adapter, error) {
	if src.ID == "" {
		return nil, fmt.Errorf("feed source has no id")
	}
	if src.FetchURL == "" {
		return nil, fmt.Errorf("feed source %q has no url", src.ID)
	}
	switch src.Kind {
	case domain.SourceKindPartner, "":
		return NewPartnerAdapter(src, opts.HTTPClient), nil
	case domain.SourceKindGov:
		return NewGovAdapter(src, opts.HTTPClient, opts.GovAccountKey), nil
	default:
		return nil, fmt.Errorf("feed source %q: unknown kind %q", src.ID, src.Kind)
	}
}

// NewAll builds one adapter per source, in order.
func NewAll(sources []domain.FeedSource, opts Options) ([]Adapter, error) {
	out := make([]Adapter, 0, len(sources))
	for _, src := range sources {
		a, err := NewFromSource(src, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
