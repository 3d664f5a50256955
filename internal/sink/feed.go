package sink

import (
	"context"
	"errors"

	"github.com/yegors/overhead/internal/render"
	"github.com/yegors/overhead/internal/websocket"
)

// Broadcaster is satisfied by the websocket hub
type Broadcaster interface {
	Broadcast(message *websocket.Message) bool
}

// Feed pushes alerts to live websocket clients
type Feed struct {
	hub Broadcaster
}

// NewFeed creates a feed sink on hub
func NewFeed(hub Broadcaster) *Feed {
	return &Feed{hub: hub}
}

func (f *Feed) Name() string { return "feed" }

func (f *Feed) Send(_ context.Context, alert *render.Alert) error {
	if !f.hub.Broadcast(AlertMessage(alert)) {
		return errors.New("websocket hub backed up")
	}
	return nil
}

// AlertMessage converts an alert into a feed message
func AlertMessage(alert *render.Alert) *websocket.Message {
	pos := alert.Position
	data := map[string]any{
		"flight_id":     pos.FlightID,
		"ident":         pos.Ident,
		"registration":  pos.Registration,
		"aircraft_type": pos.AircraftType,
		"origin":        pos.Origin,
		"destination":   pos.Destination,
		"lat":           pos.Point.Lat,
		"lon":           pos.Point.Lon,
		"distance_nm":   alert.DistanceNM,
		"bearing_deg":   alert.BearingDeg,
		"direction":     alert.Direction.String(),
		"display":       alert.Display,
		"track_url":     alert.TrackURL,
		"timestamp":     pos.Timestamp.Unix(),
	}
	if pos.Altitude != nil {
		data["altitude"] = *pos.Altitude
	}
	if pos.Speed != nil {
		data["speed"] = *pos.Speed
	}
	if pos.Heading != nil {
		data["heading"] = *pos.Heading
	}
	return &websocket.Message{Type: websocket.MessageTypeAlert, Data: data}
}
