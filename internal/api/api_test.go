package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	gorilla "github.com/gorilla/websocket"

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

var home = geo.Point{Lat: 37.6188, Lon: -122.375}

func testEngine(t *testing.T) *engine.Engine {
	t.Helper()
	eng := engine.New(engine.Config{
		Observer: classify.Observer{
			Location:             home,
			InterestingRadiusNM:  10,
			InterestingCeilingFt: 15000,
			AlertRadiusNM:        5,
		},
	}, nil, logger.NewNop())

	for _, f := range []struct {
		id string
		nm float64
	}{{"near", 3}, {"far", 30}} {
		p := geo.Destination(home, 90, f.nm)
		msg := flight.RawPositionMessage{
			ID:    f.id,
			Lat:   strconv.FormatFloat(p.Lat, 'f', -1, 64),
			Lon:   strconv.FormatFloat(p.Lon, 'f', -1, 64),
			Alt:   "4500",
			Ident: "UAL" + f.id,
			Clock: "1700000000",
		}
		if _, err := eng.Handle(msg); err != nil {
			t.Fatalf("Handle(%s): %v", f.id, err)
		}
	}
	return eng
}

func testAlert(id, ident string) *render.Alert {
	return render.NewRenderer(home, nil).Render(&flight.Position{
		FlightID:  id,
		Point:     geo.Destination(home, 0, 2),
		Ident:     ident,
		Timestamp: time.Unix(1700000000, 0).UTC(),
	})
}

type fakeJournal struct {
	records []*sqlite.AlertRecord
	err     error
	flight  string
}

func (f *fakeJournal) Recent(_ context.Context, limit int) ([]*sqlite.AlertRecord, error) {
	return f.records, f.err
}

func (f *fakeJournal) ByFlight(_ context.Context, id string, limit int) ([]*sqlite.AlertRecord, error) {
	f.flight = id
	return f.records, f.err
}

type fakeSinks struct{}

func (fakeSinks) Stats() []sink.Stats {
	return []sink.Stats{{Name: "console", Sent: 2}}
}

func get(t *testing.T, h http.Handler, path string) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if rec.Code != http.StatusOK {
		return rec.Code, nil
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("%s: Content-Type = %q", path, ct)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("%s: decode: %v", path, err)
	}
	return rec.Code, body
}

func TestHealth(t *testing.T) {
	routes := NewRouter(Deps{Tracker: testEngine(t)}, nil, logger.NewNop()).Routes()

	code, body := get(t, routes, "/api/v1/health")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v", body["status"])
	}
	if body["flight_count"] != 2.0 {
		t.Errorf("flight_count = %v, want 2", body["flight_count"])
	}
}

func TestFlights(t *testing.T) {
	routes := NewRouter(Deps{Tracker: testEngine(t)}, nil, logger.NewNop()).Routes()

	tests := []struct {
		path string
		want []string
	}{
		{"/api/v1/flights", []string{"far", "near"}},
		{"/api/v1/flights?interesting=true", []string{"near"}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, body := get(t, routes, tt.path)
			var ids []string
			for _, f := range body["flights"].([]any) {
				ids = append(ids, f.(map[string]any)["flight_id"].(string))
			}
			slices.Sort(ids)
			if diff := cmp.Diff(tt.want, ids); diff != "" {
				t.Errorf("flights mismatch (-want +got):\n%s", diff)
			}
			if body["count"] != float64(len(tt.want)) {
				t.Errorf("count = %v", body["count"])
			}
		})
	}
}

func TestFlightByID(t *testing.T) {
	routes := NewRouter(Deps{Tracker: testEngine(t)}, nil, logger.NewNop()).Routes()

	code, body := get(t, routes, "/api/v1/flights/near")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body["direction"] != "east" {
		t.Errorf("direction = %v, want east", body["direction"])
	}
	if body["interesting"] != true {
		t.Errorf("interesting = %v", body["interesting"])
	}
	if d := body["distance_nm"].(float64); d < 2.99 || d > 3.01 {
		t.Errorf("distance_nm = %v, want 3", d)
	}

	if code, _ := get(t, routes, "/api/v1/flights/missing"); code != http.StatusNotFound {
		t.Errorf("missing flight status = %d, want 404", code)
	}
}

func TestObserver(t *testing.T) {
	routes := NewRouter(Deps{Tracker: testEngine(t)}, nil, logger.NewNop()).Routes()

	_, body := get(t, routes, "/api/v1/observer")
	if body["alert_radius_nm"] != 5.0 {
		t.Errorf("alert_radius_nm = %v", body["alert_radius_nm"])
	}
	box := body["observation_box"].(map[string]any)
	if !(box["low_lat"].(float64) < home.Lat && home.Lat < box["hi_lat"].(float64)) {
		t.Errorf("box %v does not contain the observer latitude", box)
	}
}

func TestRecentAlerts(t *testing.T) {
	recent, err := sink.NewRecent(8)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	recent.Send(ctx, testAlert("a", "UAL1"))
	recent.Send(ctx, testAlert("b", "DAL2"))

	journal := &fakeJournal{records: []*sqlite.AlertRecord{{ID: 1, FlightID: "a", Ident: "UAL1"}}}
	routes := NewRouter(Deps{Tracker: testEngine(t), Recent: recent, Journal: journal}, nil, logger.NewNop()).Routes()

	_, body := get(t, routes, "/api/v1/alerts/recent?limit=1")
	alerts := body["alerts"].([]any)
	if len(alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(alerts))
	}
	if got := alerts[0].(map[string]any)["display"].(string); !strings.Contains(got, "DAL2") {
		t.Errorf("newest alert display = %q, want DAL2", got)
	}

	_, body = get(t, routes, "/api/v1/alerts/recent?source=journal")
	if body["count"] != 1.0 {
		t.Errorf("journal count = %v", body["count"])
	}

	_, body = get(t, routes, "/api/v1/flights/a/alerts")
	if journal.flight != "a" || body["flight_id"] != "a" {
		t.Errorf("ByFlight called with %q, body %v", journal.flight, body["flight_id"])
	}

	journal.err = errors.New("disk gone")
	if code, _ := get(t, routes, "/api/v1/alerts/recent?source=journal"); code != http.StatusInternalServerError {
		t.Errorf("journal failure status = %d, want 500", code)
	}
}

func TestRecentAlertsWithoutJournal(t *testing.T) {
	routes := NewRouter(Deps{Tracker: testEngine(t)}, nil, logger.NewNop()).Routes()

	_, body := get(t, routes, "/api/v1/alerts/recent")
	if body["count"] != 0.0 {
		t.Errorf("count = %v, want 0", body["count"])
	}
	if code, _ := get(t, routes, "/api/v1/alerts/recent?source=journal"); code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", code)
	}
	if code, _ := get(t, routes, "/api/v1/flights/a/alerts"); code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", code)
	}
}

func TestStats(t *testing.T) {
	routes := NewRouter(Deps{Tracker: testEngine(t), Sinks: fakeSinks{}}, nil, logger.NewNop()).Routes()

	_, body := get(t, routes, "/api/v1/stats")
	eng := body["engine"].(map[string]any)
	if eng["received"] != 2.0 {
		t.Errorf("received = %v, want 2", eng["received"])
	}
	if sinks := body["sinks"].([]any); len(sinks) != 1 {
		t.Errorf("sinks = %v", sinks)
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", defaultAlertLimit},
		{"limit=5", 5},
		{"limit=0", defaultAlertLimit},
		{"limit=-3", defaultAlertLimit},
		{"limit=abc", defaultAlertLimit},
		{"limit=100000", maxAlertLimit},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
			if got := parseLimit(r); got != tt.want {
				t.Errorf("parseLimit(%q) = %d, want %d", tt.query, got, tt.want)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	routes := NewRouter(Deps{Tracker: testEngine(t)}, []string{"http://panel.local"}, logger.NewNop()).Routes()

	tests := []struct {
		name   string
		origin string
		want   string
	}{
		{"allowed", "http://panel.local", "http://panel.local"},
		{"other", "http://evil.example", ""},
		{"none", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/api/v1/flights", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			routes.ServeHTTP(rec, req)
			if rec.Code != http.StatusNoContent {
				t.Errorf("preflight status = %d, want 204", rec.Code)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWebSocketRecentRequest(t *testing.T) {
	recent, err := sink.NewRecent(8)
	if err != nil {
		t.Fatal(err)
	}
	recent.Send(context.Background(), testAlert("a", "UAL1"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ws := websocket.NewServer(logger.NewNop())
	go ws.Run(ctx)

	routes := NewRouter(Deps{Tracker: testEngine(t), Recent: recent, WSServer: ws}, nil, logger.NewNop()).Routes()
	srv := httptest.NewServer(routes)
	defer srv.Close()

	conn, _, err := gorilla.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	req := websocket.Message{Type: websocket.MessageTypeRecentRequest, Data: map[string]any{"limit": 5}}
	if err := conn.WriteJSON(req); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp websocket.Message
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	if resp.Type != websocket.MessageTypeRecentResponse {
		t.Fatalf("type = %q", resp.Type)
	}
	if resp.Data["count"] != 1.0 {
		t.Errorf("count = %v, want 1", resp.Data["count"])
	}
}
