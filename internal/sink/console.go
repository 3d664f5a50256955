package sink

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/yegors/overhead/internal/render"
	"github.com/yegors/overhead/pkg/logger"
)

// Console prints the display line of every alert and logs it with its
// structured details
type Console struct {
	mu     sync.Mutex
	out    io.Writer
	logger *logger.Logger
}

// NewConsole writes display lines to out. A nil out only logs.
func NewConsole(out io.Writer, log *logger.Logger) *Console {
	return &Console{out: out, logger: log.Named("console")}
}

func (c *Console) Name() string { return "console" }

func (c *Console) Send(_ context.Context, alert *render.Alert) error {
	pos := alert.Position
	c.logger.Info(alert.Display,
		logger.String("flight_id", pos.FlightID),
		logger.String("ident", pos.Ident),
		logger.Float64("distance_nm", alert.DistanceNM),
		logger.String("direction", alert.Direction.String()),
		logger.String("track_url", alert.TrackURL))

	if c.out == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := fmt.Fprintln(c.out, alert.Display); err != nil {
		return fmt.Errorf("write display line: %w", err)
	}
	return nil
}
