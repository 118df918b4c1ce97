package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/traffic-incident-monitor/internal/adapter/feed"
	"github.com/couchcryptid/traffic-incident-monitor/internal/adapter/notify"
	"github.com/couchcryptid/traffic-incident-monitor/internal/dashboard"
	"github.com/couchcryptid/traffic-incident-monitor/internal/domain"
	"github.com/go-chi/chi/v5"
)

// Board is the dashboard surface the API reads and mutates.
type Board interface {
	Incidents(f dashboard.Filter) []domain.ManagedIncident
	Refresh(ctx context.Context) error
	Select(ctx context.Context, sourceID string) error
	SetStatus(id string, status domain.Status, assignee *string) (domain.ManagedIncident, error)
	Stats() dashboard.Stats
}

// Forwarder sends a request body downstream unchanged.
type Forwarder interface {
	ForwardRaw(ctx context.Context, body []byte) error
}

const maxNotifyBody = 64 << 10

// API serves the incident read endpoints and the notify relay.
type API struct {
	adapters map[string]feed.Adapter
	sources  []domain.FeedSource
	traffic  feed.JamFetcher
	cameras  feed.CameraFetcher
	board    Board
	relay    Forwarder
	apiKey   string
	logger   *slog.Logger
}

// NewAPI wires the read API. board and relay may be nil to disable their
// routes.
func NewAPI(adapters []feed.Adapter, traffic feed.JamFetcher, board Board, relay Forwarder, apiKey string, logger *slog.Logger) *API {
	byID := make(map[string]feed.Adapter, len(adapters))
	sources := make([]domain.FeedSource, 0, len(adapters))
	for _, a := range adapters {
		byID[a.Source().ID] = a
		sources = append(sources, a.Source())
	}
	return &API{
		adapters: byID,
		sources:  sources,
		traffic:  traffic,
		board:    board,
		relay:    relay,
		apiKey:   apiKey,
		logger:   logger,
	}
}

// WithCameras enables GET /cameras.
func (a *API) WithCameras(c feed.CameraFetcher) *API {
	a.cameras = c
	return a
}

func (a *API) routes(r chi.Router) {
	r.Get("/sources", a.handleSources)
	r.Get("/sources/{id}/incidents", a.handleSourceIncidents)
	if a.traffic != nil {
		r.Get("/sources/{id}/traffic", a.handleSourceTraffic)
	}
	if a.cameras != nil {
		r.Get("/cameras", a.handleCameras)
	}
	if a.board != nil {
		r.Get("/board", a.handleBoard)
		r.Post("/board/refresh", a.handleBoardRefresh)
		r.Patch("/board/incidents/{id}", a.handleSetStatus)
		r.Get("/board/stats", a.handleBoardStats)
	}
	if a.relay != nil {
		r.Post("/notify", a.handleNotify)
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	sharedobs.WriteJSON(w, status, errorBody{Error: http.StatusText(status), Message: msg})
}

func (a *API) handleSources(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, a.sources)
}

func (a *API) sourceAdapter(w http.ResponseWriter, r *http.Request) (feed.Adapter, bool) {
	ad, ok := a.adapters[chi.URLParam(r, "id")]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown source")
	}
	return ad, ok
}

func (a *API) handleSourceIncidents(w http.ResponseWriter, r *http.Request) {
	ad, ok := a.sourceAdapter(w, r)
	if !ok {
		return
	}
	incidents, err := ad.Fetch(r.Context())
	if err != nil {
		a.logger.Warn("source fetch failed", "source", ad.Source().ID, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if incidents == nil {
		incidents = []domain.RawIncident{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, incidents)
}

func (a *API) handleSourceTraffic(w http.ResponseWriter, r *http.Request) {
	ad, ok := a.sourceAdapter(w, r)
	if !ok {
		return
	}
	jams, err := a.traffic.FetchJams(r.Context(), ad.Source())
	if err != nil {
		a.logger.Warn("traffic fetch failed", "source", ad.Source().ID, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if jams == nil {
		jams = []feed.Jam{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, jams)
}

func (a *API) handleCameras(w http.ResponseWriter, r *http.Request) {
	cams, err := a.cameras.FetchCameras(r.Context())
	switch {
	case errors.Is(err, feed.ErrNoAccountKey):
		writeError(w, http.StatusInternalServerError, "Server configuration error: missing API key")
	case err != nil:
		a.logger.Warn("camera fetch failed", "error", err)
		writeError(w, http.StatusBadGateway, "Failed to fetch traffic images")
	default:
		sharedobs.WriteJSON(w, http.StatusOK, cams)
	}
}

func (a *API) handleBoard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := dashboard.Filter{Category: q.Get("category"), Search: q.Get("search")}
	if s := q.Get("status"); s != "" {
		status, err := domain.ParseStatus(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.Status = status
	}
	sharedobs.WriteJSON(w, http.StatusOK, a.board.Incidents(f))
}

func (a *API) handleBoardRefresh(w http.ResponseWriter, r *http.Request) {
	var err error
	if src := r.URL.Query().Get("source"); src != "" {
		err = a.board.Select(r.Context(), src)
	} else {
		err = a.board.Refresh(r.Context())
	}

	switch {
	case errors.Is(err, dashboard.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		sharedobs.WriteJSON(w, http.StatusOK, a.board.Stats())
	}
}

type statusRequest struct {
	Status   string  `json:"status"`
	Assignee *string `json:"assignee"`
}

func (a *API) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	status, err := domain.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	inc, err := a.board.SetStatus(chi.URLParam(r, "id"), status, req.Assignee)
	if errors.Is(err, dashboard.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, inc)
}

func (a *API) handleBoardStats(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, a.board.Stats())
}

// handleNotify authenticates the caller with the shared key and forwards the
// body downstream byte for byte. Fields beyond alertSlug and message pass
// through untouched.
func (a *API) handleNotify(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("x-api-key")
	if a.apiKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(a.apiKey)) != 1 {
		writeError(w, http.StatusUnauthorized, "Invalid API Key")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxNotifyBody+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	if len(body) > maxNotifyBody {
		writeError(w, http.StatusRequestEntityTooLarge, "body too large")
		return
	}
	var p notify.Payload
	if err := json.Unmarshal(body, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if p.AlertSlug == "" || p.Message == "" {
		writeError(w, http.StatusBadRequest, "Missing alertSlug or message")
		return
	}

	a.logger.Info("notification received", "slug", p.AlertSlug)
	if err := a.relay.ForwardRaw(r.Context(), body); err != nil {
		a.logger.Error("forwarding failed", "slug", p.AlertSlug, "error", err)
		writeError(w, http.StatusBadGateway, "Failed to forward notification to downstream service")
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Notification forwarded successfully"})
}
