package sink

import (
	"context"

	"github.com/yegors/overhead/internal/render"
	"github.com/yegors/overhead/internal/storage/sqlite"
)

// AlertWriter is satisfied by the SQLite alert journal
type AlertWriter interface {
	Insert(ctx context.Context, rec *sqlite.AlertRecord) (int64, error)
}

// Journal appends every alert to the alert journal
type Journal struct {
	store AlertWriter
}

// NewJournal creates a journal sink backed by store
func NewJournal(store AlertWriter) *Journal {
	return &Journal{store: store}
}

func (j *Journal) Name() string { return "journal" }

func (j *Journal) Send(ctx context.Context, alert *render.Alert) error {
	_, err := j.store.Insert(ctx, AlertRecord(alert))
	return err
}

// AlertRecord converts an alert into its journal row
func AlertRecord(alert *render.Alert) *sqlite.AlertRecord {
	pos := alert.Position
	return &sqlite.AlertRecord{
		FlightID:     pos.FlightID,
		Ident:        pos.Ident,
		Registration: pos.Registration,
		AircraftType: pos.AircraftType,
		Origin:       pos.Origin,
		Destination:  pos.Destination,
		Lat:          pos.Point.Lat,
		Lon:          pos.Point.Lon,
		Altitude:     pos.Altitude,
		Speed:        pos.Speed,
		Heading:      pos.Heading,
		DistanceNM:   alert.DistanceNM,
		BearingDeg:   alert.BearingDeg,
		Direction:    alert.Direction.String(),
		Display:      alert.Display,
		Speech:       alert.Speech(),
		ObservedAt:   pos.Timestamp,
		CreatedAt:    alert.RenderedAt,
	}
}
