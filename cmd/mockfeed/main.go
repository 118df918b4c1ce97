// Command mockfeed serves synthetic partner, government and traffic view feeds
// plus a notification sink, for running the monitor locally without upstream
// credentials. Every -churn requests a partner feed retires its oldest alert
// and publishes a new one, so the monitor sees resolutions and fresh incidents.
//
// Usage:
//
//	go run ./cmd/mockfeed -addr :3002 -sources-out data/mock/sources.yaml
//	FEED_SOURCES_FILE=data/mock/sources.yaml NOTIFY_API_KEY=dev go run ./cmd/monitor
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/traffic-incident-monitor/internal/adapter/feed"
	"github.com/couchcryptid/traffic-incident-monitor/internal/adapter/notify"
	"github.com/couchcryptid/traffic-incident-monitor/internal/domain"
	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"
)

var partnerTypes = []struct{ typ, subtype, street string }{
	{"ACCIDENT", "ACCIDENT_MAJOR", "Orchard Road"},
	{"JAM", "JAM_HEAVY_TRAFFIC", "Thomson Road"},
	{"HAZARD", "HAZARD_ON_ROAD_POT_HOLE", "Bukit Timah Road"},
	{"WEATHER_HAZARD", "HAZARD_WEATHER_FLOOD", "Jurong West Street 52"},
	{"CONSTRUCTION", "", "Clementi Avenue 3"},
	{"ROAD_CLOSED", "ROAD_CLOSED_EVENT", "Marina Boulevard"},
}

var govRecords = []feed.GovRecord{
	{Type: "Accident", Latitude: 1.3521, Longitude: 103.8198, Message: "(12/3)14:05 Accident on PIE (towards Changi Airport) after Adam Rd Exit."},
	{Type: "Roadwork", Latitude: 1.3048, Longitude: 103.8318, Message: "(12/3)09:00 Roadworks on Orchard Rd. Avoid left lane."},
	{Type: "Vehicle breakdown", Latitude: 1.3329, Longitude: 103.7436, Message: "(12/3)14:20 Vehicle breakdown on AYE (towards City)."},
	{Type: "Obstacle", Latitude: 1.2966, Longitude: 103.7764, Message: "(12/3)13:50 Obstacle on ECP (towards Sheares Ave)."},
}

// window is a sliding run of alert sequence numbers for one partner source.
type window struct {
	mu       sync.Mutex
	start    int
	requests int
}

func (w *window) next(churn int) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.requests++
	if churn > 0 && w.requests%churn == 0 {
		w.start++
	}
	return w.start
}

type mockServer struct {
	logger  *slog.Logger
	size    int
	churn   int
	govKey  string
	apiKey  string
	mu      sync.Mutex
	windows map[string]*window
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	addr := flag.String("addr", ":3002", "listen address")
	size := flag.Int("alerts", 5, "alerts per partner feed")
	churn := flag.Int("churn", 3, "requests between alert rotations (0 disables)")
	govKey := flag.String("gov-key", "", "required AccountKey for the government feed")
	apiKey := flag.String("api-key", "dev", "required x-api-key for the notification sink")
	sourcesOut := flag.String("sources-out", "", "write a feed source YAML pointing at this server")
	flag.Parse()

	logger := sharedobs.NewLogger("info", "text")

	if *sourcesOut != "" {
		if err := writeSources(*sourcesOut, *addr); err != nil {
			return fmt.Errorf("writing sources: %w", err)
		}
		log.Printf("wrote sources: %s", *sourcesOut)
	}

	m := &mockServer{
		logger:  logger,
		size:    *size,
		churn:   *churn,
		govKey:  *govKey,
		apiKey:  *apiKey,
		windows: make(map[string]*window),
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           m.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info("mock feeds listening", "addr", *addr)
	return srv.ListenAndServe()
}

func (m *mockServer) routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/partner/{id}", m.handlePartner)
	r.Get("/gov", m.handleGov)
	r.Get("/traffic/{id}", m.handleTraffic)
	r.Get("/cameras", m.handleCameras)
	r.Post("/api/notify", m.handleNotify)
	return r
}

func (m *mockServer) window(id string) *window {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[id]
	if !ok {
		w = &window{}
		m.windows[id] = w
	}
	return w
}

func (m *mockServer) handlePartner(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	start := m.window(id).next(m.churn)
	now := time.Now().UTC()

	doc := feed.PartnerDocument{Alerts: make([]feed.PartnerAlert, 0, m.size)}
	for seq := start; seq < start+m.size; seq++ {
		t := partnerTypes[seq%len(partnerTypes)]
		doc.Alerts = append(doc.Alerts, feed.PartnerAlert{
			UUID:        fmt.Sprintf("mock-%s-%04d", id, seq),
			Type:        t.typ,
			Subtype:     t.subtype,
			Street:      t.street,
			City:        "Singapore",
			Country:     "SG",
			Location:    feed.PartnerLocation{X: 103.80 + float64(seq%10)*0.01, Y: 1.30 + float64(seq%7)*0.01},
			Reliability: 5 + seq%5,
			Confidence:  seq % 4,
			NThumbsUp:   seq % 3,
			PubMillis:   now.Add(-time.Duration(start+m.size-seq) * time.Minute).UnixMilli(),
		})
	}
	sharedobs.WriteJSON(w, http.StatusOK, doc)
}

func (m *mockServer) handleGov(w http.ResponseWriter, r *http.Request) {
	if m.govKey != "" && r.Header.Get("AccountKey") != m.govKey {
		sharedobs.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid AccountKey"})
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, feed.GovDocument{Value: govRecords})
}

func (m *mockServer) handleTraffic(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	now := time.Now().UTC().UnixMilli()
	routes := make([]map[string]any, 0, 3)
	for i, street := range []string{"PIE", "CTE", "AYE"} {
		routes = append(routes, map[string]any{
			"id":       fmt.Sprintf("jam-%s-%d", id, i),
			"jamLevel": i + 2,
			"speedKMH": 12.5 + float64(i)*5,
			"length":   800 + i*250,
			"delay":    120 + i*60,
			"street":   street,
			"city":     "Singapore",
			"line": []feed.PartnerLocation{
				{X: 103.80 + float64(i)*0.02, Y: 1.33},
				{X: 103.81 + float64(i)*0.02, Y: 1.34},
			},
			"pubMillis": now,
		})
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"routes": routes})
}

func (m *mockServer) handleCameras(w http.ResponseWriter, r *http.Request) {
	if m.govKey != "" && r.Header.Get("AccountKey") != m.govKey {
		sharedobs.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid AccountKey"})
		return
	}
	cams := []feed.Camera{
		{CameraID: "1701", Latitude: 1.3239, Longitude: 103.8728, ImageLink: "https://picsum.photos/seed/1701/320/240"},
		{CameraID: "4702", Latitude: 1.3396, Longitude: 103.7053, ImageLink: "https://picsum.photos/seed/4702/320/240"},
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"value": cams})
}

func (m *mockServer) handleNotify(w http.ResponseWriter, r *http.Request) {
	if m.apiKey != "" && r.Header.Get("x-api-key") != m.apiKey {
		sharedobs.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid API Key"})
		return
	}
	var p notify.Payload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.AlertSlug == "" || p.Message == "" {
		sharedobs.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing alertSlug or message"})
		return
	}
	m.logger.Info("notification", "slug", p.AlertSlug, "message", p.Message)
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

func writeSources(path, addr string) error {
	base := "http://localhost" + addr
	if !strings.HasPrefix(addr, ":") {
		base = "http://" + addr
	}
	sources := []domain.FeedSource{
		{ID: "west", DisplayName: "West Area", FetchURL: base + "/partner/west", Kind: domain.SourceKindPartner, TrafficURL: base + "/traffic/west"},
		{ID: "thomson", DisplayName: "Thomson Road", FetchURL: base + "/partner/thomson", Kind: domain.SourceKindPartner, TrafficURL: base + "/traffic/thomson"},
		{ID: "lta", DisplayName: "Government Traffic Incidents", FetchURL: base + "/gov", Kind: domain.SourceKindGov, Street: "Singapore Road", City: "Singapore", Country: "SG"},
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(sources)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
