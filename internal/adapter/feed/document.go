package feed

import (
	"time"

	"github.com/couchcryptid/traffic-incident-monitor/internal/domain"
)

// Document is a decoded feed body. Each concrete shape knows how to normalize
// itself; the set of shapes is closed to this package.
type Document interface {
	Normalize(src domain.FeedSource) []domain.RawIncident
	document()
}

// PartnerDocument is the partner feed body: a list of discrete alerts.
type PartnerDocument struct {
	Alerts []PartnerAlert `json:"alerts"`
}

// PartnerAlert is one entry of the partner feed.
type PartnerAlert struct {
	UUID              string          `json:"uuid"`
	Type              string          `json:"type"`
	Subtype           string          `json:"subtype"`
	Street            string          `json:"street"`
	City              string          `json:"city"`
	Country           string          `json:"country"`
	Location          PartnerLocation `json:"location"`
	Reliability       int             `json:"reliability"`
	Confidence        int             `json:"confidence"`
	NThumbsUp         int             `json:"nThumbsUp"`
	ReportRating      float64         `json:"reportRating"`
	ReportDescription string          `json:"reportDescription"`
	PubMillis         int64           `json:"pubMillis"`
}

// PartnerLocation is the partner feed's point encoding: X is lon, Y is lat.
type PartnerLocation struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// defaultReliability is applied when the partner omits reliability.
const defaultReliability = 5

func (PartnerDocument) document() {}

// Normalize maps alerts to incidents in feed order. Alerts without a uuid are
// dropped since they cannot be deduplicated.
func (d PartnerDocument) Normalize(src domain.FeedSource) []domain.RawIncident {
	out := make([]domain.RawIncident, 0, len(d.Alerts))
	for _, a := range d.Alerts {
		if a.UUID == "" {
			continue
		}
		c := domain.ClassifyPartner(a.Type, a.Subtype)

		published := domain.Now()
		if a.PubMillis > 0 {
			published = time.UnixMilli(a.PubMillis).UTC()
		}
		reliability := a.Reliability
		if reliability == 0 {
			reliability = defaultReliability
		}

		out = append(out, domain.RawIncident{
			ID:           a.UUID,
			Category:     c.Category,
			Subcategory:  c.Subcategory,
			Location:     domain.Location{Lon: a.Location.X, Lat: a.Location.Y},
			Street:       a.Street,
			City:         a.City,
			Country:      a.Country,
			PublishedAt:  published,
			Description:  a.ReportDescription,
			SourceID:     src.ID,
			Reliability:  reliability,
			Confidence:   a.Confidence,
			ThumbsUp:     a.NThumbsUp,
			ReportRating: a.ReportRating,
			Fallback:     c.Fallback,
		})
	}
	return out
}

// GovDocument is the government open-data body.
type GovDocument struct {
	Value []GovRecord `json:"value"`
}

// GovRecord has no id and no timestamp; Type is free text.
type GovRecord struct {
	Type      string  `json:"Type"`
	Latitude  float64 `json:"Latitude"`
	Longitude float64 `json:"Longitude"`
	Message   string  `json:"Message"`
}

func (GovDocument) document() {}

// Normalize classifies each record, derives its id from the message text, and
// stamps it with the ingestion time. Street, city and country come from the
// source since the feed carries none.
func (d GovDocument) Normalize(src domain.FeedSource) []domain.RawIncident {
	now := domain.Now()
	out := make([]domain.RawIncident, 0, len(d.Value))
	for _, r := range d.Value {
		c := domain.ClassifyGovType(r.Type)
		out = append(out, domain.RawIncident{
			ID:          domain.DeriveID(src.ID, r.Message),
			Category:    c.Category,
			Subcategory: c.Subcategory,
			Location:    domain.Location{Lon: r.Longitude, Lat: r.Latitude},
			Street:      src.Street,
			City:        src.City,
			Country:     src.Country,
			PublishedAt: now,
			Description: r.Message,
			SourceID:    src.ID,
			Fallback:    c.Fallback,
		})
	}
	return out
}
