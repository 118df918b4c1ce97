package domain

import "time"

// Category is the unified incident taxonomy shared by every feed.
type Category string

const (
	CategoryAccident      Category = "ACCIDENT"
	CategoryJam           Category = "JAM"
	CategoryHazard        Category = "HAZARD"
	CategoryWeatherHazard Category = "WEATHER_HAZARD"
	CategoryConstruction  Category = "CONSTRUCTION"
	CategoryRoadClosed    Category = "ROAD_CLOSED"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryAccident,
	CategoryJam,
	CategoryHazard,
	CategoryWeatherHazard,
	CategoryConstruction,
	CategoryRoadClosed,
}

// Location is a WGS-84 point. Feeds publish it as {x: lon, y: lat}.
type Location struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// RawIncident is a normalized incident before deduplication.
// Empty optional strings mean the feed did not provide the field.
type RawIncident struct {
	ID          string    `json:"id"`
	Category    Category  `json:"category"`
	Subcategory string    `json:"subcategory,omitempty"`
	Location    Location  `json:"location"`
	Street      string    `json:"street,omitempty"`
	City        string    `json:"city,omitempty"`
	Country     string    `json:"country,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Description string    `json:"description,omitempty"`
	SourceID    string    `json:"source_id"`

	// Partner feed quality signals.
	Reliability  int     `json:"reliability,omitempty"`
	Confidence   int     `json:"confidence,omitempty"`
	ThumbsUp     int     `json:"thumbs_up,omitempty"`
	ReportRating float64 `json:"report_rating,omitempty"`

	// Fallback is set when classification took the default path.
	Fallback bool `json:"classification_fallback,omitempty"`
}

// SourceKind selects the adapter that understands a feed's document shape.
type SourceKind string

const (
	SourceKindPartner SourceKind = "partner"
	SourceKindGov     SourceKind = "gov"
)

// FeedSource is static per-deployment configuration for one upstream feed.
type FeedSource struct {
	ID          string     `json:"id" yaml:"id"`
	DisplayName string     `json:"name" yaml:"name"`
	FetchURL    string     `json:"url" yaml:"url"`
	Kind        SourceKind `json:"kind" yaml:"kind"`
	Slug        string     `json:"slug,omitempty" yaml:"slug"`
	Street      string     `json:"street,omitempty" yaml:"street"`
	City        string     `json:"city,omitempty" yaml:"city"`
	Country     string     `json:"country,omitempty" yaml:"country"`
	TrafficURL  string     `json:"traffic_url,omitempty" yaml:"traffic_url"`
}

// SeenRecord is a deduplication store entry.
type SeenRecord struct {
	ID          string    `json:"id"`
	FirstSeenAt time.Time `json:"first_seen_at"`
	SourceID    string    `json:"source_id"`
}

// Action is the outcome of deduplicating one incident.
type Action string

const (
	ActionNotify   Action = "notify"
	ActionSuppress Action = "suppress"
)

// Reason explains why an Action was chosen.
type Reason string

const (
	ReasonNew       Reason = "new"
	ReasonSeen      Reason = "seen"
	ReasonColdStart Reason = "cold_start"
	ReasonRaced     Reason = "raced"
)

// Decision pairs a normalized incident with its notify/suppress outcome.
type Decision struct {
	Incident  RawIncident `json:"incident"`
	SourceID  string      `json:"source_id"`
	Action    Action      `json:"action"`
	Reason    Reason      `json:"reason"`
	DecidedAt time.Time   `json:"decided_at"`
}
