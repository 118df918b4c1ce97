package feed

import (
	"context"
	"net/http"
	"time"

	"github.com/couchcryptid/traffic-incident-monitor/internal/domain"
)

// Jam is one congested segment from a traffic view.
type Jam struct {
	ID          string            `json:"id"`
	Level       int               `json:"level"`
	Line        []domain.Location `json:"line"`
	SpeedKMH    float64           `json:"speed_kmh"`
	Length      int               `json:"length"`
	Delay       int               `json:"delay"`
	Street      string            `json:"street"`
	City        string            `json:"city,omitempty"`
	Country     string            `json:"country,omitempty"`
	RoadType    int               `json:"road_type,omitempty"`
	PublishedAt time.Time         `json:"published_at"`
}

// trafficDocument accepts both the traffic view tool shape (routes) and the
// partner feed shape (jams).
type trafficDocument struct {
	Routes []trafficItem `json:"routes"`
	Jams   []trafficItem `json:"jams"`
}

type trafficItem struct {
	ID       string            `json:"id"`
	UUID     string            `json:"uuid"`
	JamLevel *int              `json:"jamLevel"`
	Level    int               `json:"level"`
	Line     []PartnerLocation `json:"line"`
	SpeedKMH float64           `json:"speedKMH"`
	Length   int               `json:"length"`
	Delay    int               `json:"delay"`
	Street   string            `json:"street"`
	Name     string            `json:"name"`
	City     string            `json:"city"`
	Country  string            `json:"country"`
	RoadType int               `json:"roadType"`
	PubMilli int64             `json:"pubMillis"`
}

// TrafficClient reads traffic view documents. Jams are display-only and never
// deduplicated or notified.
type TrafficClient struct {
	hc *http.Client
}

func NewTrafficClient(hc *http.Client) *TrafficClient {
	return &TrafficClient{hc: hc}
}

// FetchJams retrieves the traffic view for src. A source without a traffic
// URL has no jams.
func (c *TrafficClient) FetchJams(ctx context.Context, src domain.FeedSource) (jams []Jam, err error) {
	if src.TrafficURL == "" {
		return nil, nil
	}
	defer recoverParse(src.ID, &err)

	var doc trafficDocument
	if err := getJSON(ctx, c.hc, src.ID, src.TrafficURL, nil, &doc); err != nil {
		return nil, err
	}

	items := doc.Routes
	if items == nil {
		items = doc.Jams
	}
	now := domain.Now()
	out := make([]Jam, 0, len(items))
	for _, it := range items {
		out = append(out, it.toJam(now))
	}
	return out, nil
}

func (it trafficItem) toJam(now time.Time) Jam {
	j := Jam{
		ID:          it.ID,
		Level:       it.Level,
		SpeedKMH:    it.SpeedKMH,
		Length:      it.Length,
		Delay:       it.Delay,
		Street:      it.Street,
		City:        it.City,
		Country:     it.Country,
		RoadType:    it.RoadType,
		PublishedAt: now,
		Line:        make([]domain.Location, 0, len(it.Line)),
	}
	if j.ID == "" {
		j.ID = it.UUID
	}
	if it.JamLevel != nil {
		j.Level = *it.JamLevel
	}
	if j.Street == "" {
		j.Street = it.Name
	}
	if j.Street == "" {
		j.Street = "Unknown Route"
	}
	if it.PubMilli > 0 {
		j.PublishedAt = time.UnixMilli(it.PubMilli).UTC()
	}
	for _, p := range it.Line {
		j.Line = append(j.Line, domain.Location{Lon: p.X, Lat: p.Y})
	}
	return j
}
