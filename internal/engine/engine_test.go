package engine

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/yegors/overhead/internal/classify"
	"github.com/yegors/overhead/internal/flight"
	"github.com/yegors/overhead/internal/geo"
	"github.com/yegors/overhead/internal/render"
	"github.com/yegors/overhead/pkg/logger"
)

var home = geo.Point{Lat: 37.6188, Lon: -122.375}

func testObserver(announce bool) classify.Observer {
	return classify.Observer{
		Location:             home,
		InterestingRadiusNM:  10,
		InterestingCeilingFt: 15000,
		AlertRadiusNM:        5,
		Announce:             announce,
	}
}

type dispatched struct {
	ident    string
	announce bool
}

type fakeDispatcher struct {
	mu   sync.Mutex
	got  []dispatched
	last *render.Alert
}

func (f *fakeDispatcher) Dispatch(a *render.Alert, announce bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, dispatched{a.Position.Ident, announce})
	f.last = a
}

func (f *fakeDispatcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.got)
}

const t0 = 1700000000

// raw builds a message for flight id distanceNM due north of home
func raw(id string, distanceNM float64, alt string, clock int64) flight.RawPositionMessage {
	p := geo.Destination(home, 0, distanceNM)
	return flight.RawPositionMessage{
		ID:           id,
		Lat:          strconv.FormatFloat(p.Lat, 'f', -1, 64),
		Lon:          strconv.FormatFloat(p.Lon, 'f', -1, 64),
		Alt:          alt,
		GS:           "180",
		HeadingTrue:  "180",
		Ident:        "UAL" + id,
		Orig:         "KSEA",
		Dest:         "KSFO",
		AircraftType: "A320",
		Clock:        strconv.FormatInt(clock, 10),
	}
}

func newTestEngine(announce bool) (*Engine, *fakeDispatcher) {
	d := &fakeDispatcher{}
	return New(Config{Observer: testObserver(announce)}, d, logger.NewNop()), d
}

func TestClosingSequence(t *testing.T) {
	e, d := newTestEngine(false)

	steps := []struct {
		dist  float64
		state classify.State
	}{
		{8, classify.Unknown},
		{4, classify.Alerting},
		{4.5, classify.Tracked},
		{3, classify.Alerting},
		{2, classify.Alerting}, // every closing update re-fires
	}
	for i, step := range steps {
		dec, err := e.Handle(raw("1234", step.dist, "3000", t0+int64(i)*10))
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if dec.State != step.state {
			t.Errorf("step %d at %.1fnm: state %v, want %v", i, step.dist, dec.State, step.state)
		}
	}

	if got := d.count(); got != 3 {
		t.Errorf("dispatched %d alerts, want 3", got)
	}
	if d.last.Position.Ident != "UAL1234" || d.last.Direction != geo.North {
		t.Errorf("unexpected last alert %+v", d.last)
	}

	s := e.Stats()
	if s.Received != 5 || s.Alerts != 3 || s.Flights != 1 {
		t.Errorf("unexpected stats %+v", s)
	}
}

func TestAnnounceFlagReachesDispatcher(t *testing.T) {
	for _, announce := range []bool{false, true} {
		e, d := newTestEngine(announce)
		e.Handle(raw("1", 6, "", t0))
		e.Handle(raw("1", 4, "", t0+5))
		want := []dispatched{{"UAL1", announce}}
		if diff := cmp.Diff(want, d.got, cmp.AllowUnexported(dispatched{})); diff != "" {
			t.Errorf("announce=%v (-want +got):\n%s", announce, diff)
		}
	}
}

func TestAboveCeilingNeverAlerts(t *testing.T) {
	e, d := newTestEngine(false)
	e.Handle(raw("1", 8, "16000", t0))
	dec, _ := e.Handle(raw("1", 4, "16000", t0+5))

	if dec.State != classify.Ignored || d.count() != 0 {
		t.Errorf("state %v, %d alerts; want ignored with no alerts", dec.State, d.count())
	}
	// the entry was still replaced
	if pos, ok := e.Store().Get("1"); !ok || pos.Timestamp.Unix() != t0+5 {
		t.Error("non-interesting position should still replace the stored entry")
	}
}

func TestMalformedLeavesStateUntouched(t *testing.T) {
	e, d := newTestEngine(false)
	e.Handle(raw("1", 8, "", t0))

	bad := raw("1", 4, "", t0+5)
	bad.Lat = "north-ish"
	if _, err := e.Handle(bad); !errors.Is(err, flight.ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}

	pos, _ := e.Store().Get("1")
	if pos.Timestamp.Unix() != t0 {
		t.Error("malformed message replaced the stored entry")
	}
	if !e.Clock().Equal(time.Unix(t0, 0)) {
		t.Errorf("clock moved to %v", e.Clock())
	}
	if e.Stats().Malformed != 1 || d.count() != 0 {
		t.Errorf("unexpected stats %+v", e.Stats())
	}
}

func TestTickEvictsStaleFlights(t *testing.T) {
	var evicted []string
	e := New(Config{
		Observer: testObserver(false),
		OnEvict:  func(ids []string) { evicted = append(evicted, ids...) },
	}, nil, logger.NewNop())

	e.Handle(raw("old", 9, "", t0))
	e.Handle(raw("new", 9, "", t0+600))

	if got := e.Tick(time.Unix(t0+9*60, 0)); len(got) != 0 {
		t.Errorf("T+9m evicted %v", got)
	}
	if got := e.Tick(time.Unix(t0+11*60, 0)); !cmp.Equal(got, []string{"old"}) {
		t.Errorf("T+11m evicted %v, want [old]", got)
	}
	if !cmp.Equal(evicted, []string{"old"}) {
		t.Errorf("OnEvict saw %v", evicted)
	}
	if e.Stats().Evicted != 1 {
		t.Errorf("evicted counter = %d", e.Stats().Evicted)
	}
}

func TestSweepTimeFollowsStreamClock(t *testing.T) {
	e, _ := newTestEngine(false)
	wall := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	e.wallClock = func() time.Time { return wall }

	if got := e.sweepTime(); !got.Equal(wall) {
		t.Errorf("before any message sweepTime = %v, want wall time", got)
	}

	e.Handle(raw("1", 9, "", t0))
	wall = wall.Add(90 * time.Second)
	if got, want := e.sweepTime(), time.Unix(t0+90, 0); !got.Equal(want) {
		t.Errorf("sweepTime = %v, want %v", got, want)
	}
}

func TestRunStopsOnClosedChannel(t *testing.T) {
	e, d := newTestEngine(false)
	msgs := make(chan flight.RawPositionMessage, 3)
	msgs <- raw("1", 8, "", t0)
	msgs <- raw("1", 4, "", t0+5)
	msgs <- raw("2", 20, "", t0+700) // pushes flight 1 past the stale window
	close(msgs)

	if err := e.Run(context.Background(), msgs); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if d.count() != 1 {
		t.Errorf("dispatched %d, want 1", d.count())
	}
	if _, ok := e.Store().Get("1"); ok {
		t.Error("flight 1 should have been swept")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	e, _ := newTestEngine(false)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx, make(chan flight.RawPositionMessage)) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
