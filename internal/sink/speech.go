package sink

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/yegors/overhead/internal/render"
)

// DefaultSpeechCommand is the macOS synthesizer at 200 words per minute
var DefaultSpeechCommand = []string{"say", "-r", "200"}

type commandRunner func(ctx context.Context, name string, args ...string) error

func runCommand(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		if len(out) > 0 {
			return fmt.Errorf("%s: %w: %s", name, err, out)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// Speech hands the phonetic script to an external speech command as its
// final argument
type Speech struct {
	command []string
	run     commandRunner
}

// NewSpeech creates a speech sink. An empty command selects DefaultSpeechCommand.
func NewSpeech(command []string) *Speech {
	if len(command) == 0 {
		command = DefaultSpeechCommand
	}
	return &Speech{command: command, run: runCommand}
}

func (s *Speech) Name() string  { return "speech" }
func (s *Speech) Audible() bool { return true }

func (s *Speech) Send(ctx context.Context, alert *render.Alert) error {
	text := alert.Speech()
	if text == "" {
		return errors.New("empty phonetic script")
	}
	args := append(append([]string{}, s.command[1:]...), text)
	return s.run(ctx, s.command[0], args...)
}
