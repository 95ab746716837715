package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Alia5/btkeyboard/device/keyboard"
	"github.com/Alia5/btkeyboard/internal/event"
	"github.com/Alia5/btkeyboard/internal/log"
)

// Send applies event lines such as "mod Ctrl" or "chord Ctrl+Alt+Del".
type Send struct {
	Sink   SinkConfig `embed:"" prefix:"sink."`
	Events []string   `arg:"" optional:"" help:"Event lines, e.g. \"key Enter\" \"chord Win+r\""`
	Script string     `help:"Read event lines from this file ('-' for stdin)" short:"f"`
}

// Run is called by Kong when the send command is executed.
func (s *Send) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	return s.run(context.Background(), logger, rawLogger, os.Stdin, os.Stdout)
}

func (s *Send) events(stdin io.Reader) ([]event.Event, error) {
	var events []event.Event
	for _, line := range s.Events {
		ev, err := event.Parse(line)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if s.Script != "" {
		r := stdin
		if s.Script != "-" {
			f, err := os.Open(s.Script)
			if err != nil {
				return nil, err
			}
			defer f.Close()
			r = f
		}
		evs, err := event.ParseScript(r)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.Script, err)
		}
		events = append(events, evs...)
	}
	if len(events) == 0 {
		return nil, errors.New("no events: pass event lines or --script")
	}
	return events, nil
}

func (s *Send) run(ctx context.Context, logger *slog.Logger, rawLogger log.RawLogger, stdin io.Reader, stdout io.Writer) error {
	events, err := s.events(stdin)
	if err != nil {
		return err
	}
	out, err := s.Sink.Open(logger, rawLogger, nil, stdout)
	if err != nil {
		return err
	}
	defer out.Close()
	opts, err := s.Sink.EngineOptions(logger)
	if err != nil {
		return err
	}
	e := keyboard.New(out, opts...)

	var total event.Result
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		res := event.Apply(e, ev)
		total.Sent += res.Sent
		total.Dropped += res.Dropped
		if res.Dropped > 0 {
			logger.Warn("event dropped input", "event", ev.String(), "dropped", res.Dropped)
		}
	}
	if l := e.Latched(); len(l) > 0 {
		logger.Warn("modifiers still latched at end of input", "latched", l)
	}
	logger.Info("sent", "events", len(events), "sent", total.Sent, "dropped", total.Dropped)
	return nil
}
