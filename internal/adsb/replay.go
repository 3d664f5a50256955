package adsb

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/yegors/overhead/internal/flight"
	"github.com/yegors/overhead/pkg/logger"
)

// replayLine is one line of a recorded firehose stream
type replayLine struct {
	Type         string `json:"type"`
	ErrorMessage string `json:"error_msg"`
	flight.RawPositionMessage
}

// Replay feeds recorded position messages, one JSON object per line, into the
// engine. Unknown message types are ignored; an "error" line ends the replay.
type Replay struct {
	r      io.Reader
	speed  float64
	logger *logger.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewReplay creates a replay of r. speed scales the recorded pacing (2 plays
// twice as fast); 0 replays as fast as the engine accepts.
func NewReplay(r io.Reader, speed float64, log *logger.Logger) *Replay {
	return &Replay{r: r, speed: speed, logger: log.Named("replay"), sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run sends every position in the recording to out and returns when the input
// is exhausted or ctx is cancelled. It does not close out.
func (p *Replay) Run(ctx context.Context, out chan<- flight.RawPositionMessage) error {
	scanner := bufio.NewScanner(p.r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		lineNo    int
		sent      int
		lastClock int64
	)
	for scanner.Scan() {
		lineNo++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var line replayLine
		if err := json.Unmarshal(raw, &line); err != nil {
			p.logger.Warn("Skipping unparseable replay line",
				logger.Int("line", lineNo),
				logger.Error(err))
			continue
		}

		switch line.Type {
		case "", "position":
		case "error":
			return fmt.Errorf("stream error at line %d: %s", lineNo, line.ErrorMessage)
		default:
			continue
		}

		if p.speed > 0 {
			if clock, err := strconv.ParseInt(line.Clock, 10, 64); err == nil {
				if lastClock > 0 && clock > lastClock {
					wait := time.Duration(float64(time.Duration(clock-lastClock)*time.Second) / p.speed)
					if err := p.sleep(ctx, wait); err != nil {
						return nil
					}
				}
				lastClock = clock
			}
		}

		select {
		case out <- line.RawPositionMessage:
			sent++
		case <-ctx.Done():
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read replay: %w", err)
	}

	p.logger.Info("Replay finished", logger.Int("lines", lineNo), logger.Int("positions", sent))
	return nil
}
