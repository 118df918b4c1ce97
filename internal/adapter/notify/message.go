package notify

import (
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/couchcryptid/traffic-incident-monitor/internal/domain"
)

// DefaultSlug is the topic used when a source has no explicit mapping.
const DefaultSlug = "road_incident"

var sourceSlugs = map[string]string{
	"west":    "West_Region",
	"thomson": "Thompson_Road",
}

// Payload is the body accepted by the downstream messaging endpoint.
type Payload struct {
	AlertSlug string `json:"alertSlug"`
	Message   string `json:"message"`
	ParseMode string `json:"parseMode,omitempty"`
}

// SlugFor returns the topic for a source: its configured slug, else the
// built-in mapping, else DefaultSlug.
func SlugFor(src domain.FeedSource) string {
	if src.Slug != "" {
		return src.Slug
	}
	if s, ok := sourceSlugs[src.ID]; ok {
		return s
	}
	return DefaultSlug
}

// DetailsURL links an incident to its page in the dashboard.
func DetailsURL(frontendURL, incidentID, sourceID string) string {
	return fmt.Sprintf("%s/#/detail/%s?source=%s",
		strings.TrimRight(frontendURL, "/"), url.PathEscape(incidentID), url.QueryEscape(sourceID))
}

// FormatMessage renders the HTML notification text.
func FormatMessage(inc domain.RawIncident, src domain.FeedSource, frontendURL string) string {
	title := inc.Subcategory
	if title == "" {
		title = string(inc.Category)
	}
	street := inc.Street
	if street == "" {
		street = "Unknown Street"
	}
	city := inc.City
	if city == "" {
		city = "Unknown City"
	}
	name := src.DisplayName
	if name == "" {
		name = src.ID
	}

	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ <b>%s</b>\n\n", html.EscapeString(title))
	fmt.Fprintf(&b, "Detected on %s, %s.\n", html.EscapeString(street), html.EscapeString(city))
	fmt.Fprintf(&b, "Source: %s\n", html.EscapeString(name))
	fmt.Fprintf(&b, `<a href="%s">View Details</a>`, html.EscapeString(DetailsURL(frontendURL, inc.ID, src.ID)))
	return b.String()
}

// BuildPayload assembles the downstream request body for one incident.
func BuildPayload(inc domain.RawIncident, src domain.FeedSource, frontendURL string) Payload {
	return Payload{
		AlertSlug: SlugFor(src),
		Message:   FormatMessage(inc, src, frontendURL),
		ParseMode: "HTML",
	}
}
