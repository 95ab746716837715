package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gdamore/tcell/v2"

	"github.com/Alia5/btkeyboard/internal/log"
	"github.com/Alia5/btkeyboard/internal/termkbd"
)

// Term turns the terminal into a keyboard.
type Term struct {
	Sink SinkConfig `embed:"" prefix:"sink."`
}

// Run is called by Kong when the term command is executed.
func (t *Term) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	if (t.Sink.Kind == "" || t.Sink.Kind == "hex") && t.Sink.Output == "" {
		return errors.New("the hex sink would draw over the terminal; set --sink.output or pick another --sink.kind")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("terminal: %w", err)
	}
	defer screen.Fini()
	return t.run(ctx, screen, logger, rawLogger, io.Discard)
}

func (t *Term) run(ctx context.Context, screen tcell.Screen, logger *slog.Logger, rawLogger log.RawLogger, stdout io.Writer) error {
	out, err := t.Sink.Open(logger, rawLogger, nil, stdout)
	if err != nil {
		return err
	}
	defer out.Close()
	opts, err := t.Sink.EngineOptions(logger)
	if err != nil {
		return err
	}
	return termkbd.Run(ctx, screen, termkbd.New(out, logger, opts...))
}
