package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yegors/overhead/internal/adsb"
	"github.com/yegors/overhead/internal/classify"
	"github.com/yegors/overhead/internal/engine"
	"github.com/yegors/overhead/internal/flight"
	"github.com/yegors/overhead/internal/geo"
	"github.com/yegors/overhead/internal/render"
	"github.com/yegors/overhead/internal/sink"
	"github.com/yegors/overhead/internal/storage/sqlite"
	"github.com/yegors/overhead/internal/websocket"
	"github.com/yegors/overhead/pkg/logger"
)

// Tracker is the read side of the engine
type Tracker interface {
	Store() *flight.Store
	Observer() classify.Observer
	Stats() engine.Stats
}

// AlertHistory is the read side of the alert journal
type AlertHistory interface {
	Recent(ctx context.Context, limit int) ([]*sqlite.AlertRecord, error)
	ByFlight(ctx context.Context, flightID string, limit int) ([]*sqlite.AlertRecord, error)
}

// SinkStats reports delivery counters per sink
type SinkStats interface {
	Stats() []sink.Stats
}

// SourceStatus reports the health of the position source
type SourceStatus interface {
	Status() adsb.PollerStatus
}

// Deps are the components the API reads from. Only Tracker is required.
type Deps struct {
	Tracker  Tracker
	Recent   *sink.Recent
	Journal  AlertHistory
	Sinks    SinkStats
	Source   SourceStatus
	WSServer *websocket.Server
}

// Handler contains the API handlers
type Handler struct {
	deps       Deps
	classifier *classify.Classifier
	started    time.Time
	logger     *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(deps Deps, log *logger.Logger) *Handler {
	return &Handler{
		deps:       deps,
		classifier: classify.New(deps.Tracker.Observer()),
		started:    time.Now(),
		logger:     log.Named("api-handler"),
	}
}

const (
	defaultAlertLimit = 20
	maxAlertLimit     = 500
)

// FlightView is a tracked flight as seen from the observer
type FlightView struct {
	*flight.Position
	DistanceNM  float64 `json:"distance_nm"`
	BearingDeg  float64 `json:"bearing_deg"`
	Direction   string  `json:"direction"`
	Interesting bool    `json:"interesting"`
}

// FlightsResponse represents the API response for the flight table
type FlightsResponse struct {
	Timestamp time.Time     `json:"timestamp"`
	Count     int           `json:"count"`
	Flights   []*FlightView `json:"flights"`
}

func (h *Handler) view(pos *flight.Position) *FlightView {
	observer := h.classifier.Observer().Location
	bearing := geo.InitialBearing(observer, pos.Point)
	return &FlightView{
		Position:    pos,
		DistanceNM:  geo.DistanceNM(observer, pos.Point),
		BearingDeg:  bearing,
		Direction:   geo.CardinalOf(bearing).String(),
		Interesting: h.classifier.IsInteresting(pos),
	}
}

// GetHealth returns the health status of the API
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":       "ok",
		"uptime":       time.Since(h.started).Round(time.Second).String(),
		"flight_count": h.deps.Tracker.Store().Len(),
		"clock":        h.deps.Tracker.Stats().Clock,
	}
	if h.deps.Source != nil {
		st := h.deps.Source.Status()
		response["source"] = st
		if !st.Healthy {
			response["status"] = "degraded"
		}
	}
	WriteJSON(w, http.StatusOK, response)
}

// GetFlights returns every tracked flight. ?interesting=true narrows the list
// to flights inside the watch volume.
func (h *Handler) GetFlights(w http.ResponseWriter, r *http.Request) {
	onlyInteresting := r.URL.Query().Get("interesting") == "true"

	snapshot := h.deps.Tracker.Store().Snapshot()
	views := make([]*FlightView, 0, len(snapshot))
	for _, pos := range snapshot {
		v := h.view(pos)
		if onlyInteresting && !v.Interesting {
			continue
		}
		views = append(views, v)
	}

	WriteJSON(w, http.StatusOK, FlightsResponse{
		Timestamp: time.Now().UTC(),
		Count:     len(views),
		Flights:   views,
	})
}

// GetFlight returns a single flight by id
func (h *Handler) GetFlight(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "Missing flight ID", http.StatusBadRequest)
		return
	}

	pos, found := h.deps.Tracker.Store().Get(id)
	if !found {
		http.Error(w, "Flight not found", http.StatusNotFound)
		return
	}
	WriteJSON(w, http.StatusOK, h.view(pos))
}

// GetObserver returns the observer thresholds and the bounding box of the
// watch radius
func (h *Handler) GetObserver(w http.ResponseWriter, r *http.Request) {
	o := h.classifier.Observer()
	WriteJSON(w, http.StatusOK, map[string]any{
		"latitude":               o.Location.Lat,
		"longitude":              o.Location.Lon,
		"interesting_radius_nm":  o.InterestingRadiusNM,
		"interesting_ceiling_ft": o.InterestingCeilingFt,
		"alert_radius_nm":        o.AlertRadiusNM,
		"announce":               o.Announce,
		"observation_box":        geo.ObservationBox(o.Location, o.InterestingRadiusNM),
	})
}

// GetRecentAlerts returns the latest alert of the most recently alerting
// flights. ?source=journal reads the alert journal instead, newest first.
func (h *Handler) GetRecentAlerts(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r)

	if r.URL.Query().Get("source") == "journal" {
		if h.deps.Journal == nil {
			http.Error(w, "Alert journal not configured", http.StatusNotFound)
			return
		}
		records, err := h.deps.Journal.Recent(r.Context(), limit)
		if err != nil {
			h.logger.Error("Failed to read alert journal", logger.Error(err))
			http.Error(w, "Failed to read alert journal", http.StatusInternalServerError)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"count": len(records), "alerts": records})
		return
	}

	var alerts []*render.Alert
	if h.deps.Recent != nil {
		alerts = h.deps.Recent.List(limit)
	}
	if alerts == nil {
		alerts = []*render.Alert{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"count": len(alerts), "alerts": alerts})
}

// GetFlightAlerts returns the journaled alerts of one flight
func (h *Handler) GetFlightAlerts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.deps.Journal == nil {
		http.Error(w, "Alert journal not configured", http.StatusNotFound)
		return
	}
	records, err := h.deps.Journal.ByFlight(r.Context(), id, parseLimit(r))
	if err != nil {
		h.logger.Error("Failed to read alert journal", logger.Error(err), logger.String("flight_id", id))
		http.Error(w, "Failed to read alert journal", http.StatusInternalServerError)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"flight_id": id, "count": len(records), "alerts": records})
}

// GetStats returns engine and sink counters
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"engine": h.deps.Tracker.Stats(),
	}
	if h.deps.Sinks != nil {
		response["sinks"] = h.deps.Sinks.Stats()
	}
	if h.deps.WSServer != nil {
		response["websocket_clients"] = h.deps.WSServer.ClientCount()
	}
	WriteJSON(w, http.StatusOK, response)
}

// HandleMessage answers websocket requests for the recent alert backlog
func (h *Handler) HandleMessage(client *websocket.Client, messageType string, data map[string]any) error {
	if messageType != websocket.MessageTypeRecentRequest {
		h.logger.Debug("Ignoring websocket message", logger.String("type", messageType))
		return nil
	}

	var items []map[string]any
	if h.deps.Recent != nil {
		for _, a := range h.deps.Recent.List(websocket.RecentLimit(data)) {
			items = append(items, sink.AlertMessage(a).Data)
		}
	}
	client.SendMessage(&websocket.Message{
		Type: websocket.MessageTypeRecentResponse,
		Data: map[string]any{"alerts": items, "count": len(items)},
	})
	return nil
}

func parseLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return defaultAlertLimit
	}
	if limit > maxAlertLimit {
		return maxAlertLimit
	}
	return limit
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
