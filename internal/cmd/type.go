package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/Alia5/btkeyboard/device/keyboard"
	"github.com/Alia5/btkeyboard/internal/event"
	"github.com/Alia5/btkeyboard/internal/log"
)

// Type types text through the engine. Without arguments it reads piped stdin.
type Type struct {
	Sink SinkConfig `embed:"" prefix:"sink."`
	Text []string   `arg:"" optional:"" help:"Text to type (joined with spaces); read from stdin when omitted and stdin is not a terminal"`
}

// Run is called by Kong when the type command is executed.
func (t *Type) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	piped := !term.IsTerminal(int(os.Stdin.Fd()))
	return t.run(context.Background(), logger, rawLogger, os.Stdin, piped, os.Stdout)
}

func (t *Type) run(ctx context.Context, logger *slog.Logger, rawLogger log.RawLogger, stdin io.Reader, piped bool, stdout io.Writer) error {
	var text string
	switch {
	case len(t.Text) > 0:
		text = strings.Join(t.Text, " ")
	case piped:
		b, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = strings.ReplaceAll(string(b), "\r\n", "\n")
	default:
		return errors.New("nothing to type: pass text or pipe it on stdin")
	}

	out, err := t.Sink.Open(logger, rawLogger, nil, stdout)
	if err != nil {
		return err
	}
	defer out.Close()
	opts, err := t.Sink.EngineOptions(logger)
	if err != nil {
		return err
	}
	e := keyboard.New(out, opts...)

	var res event.Result
	for _, r := range text {
		if err := ctx.Err(); err != nil {
			return err
		}
		step := event.Apply(e, event.Event{Kind: event.KindText, Value: string(r)})
		res.Sent += step.Sent
		res.Dropped += step.Dropped
		if step.Dropped > 0 {
			logger.Warn("character has no scan code", "char", fmt.Sprintf("%q", r))
		}
	}
	logger.Info("typed", "sent", res.Sent, "dropped", res.Dropped)
	return nil
}
