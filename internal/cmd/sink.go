package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Alia5/btkeyboard/device/keyboard"
	"github.com/Alia5/btkeyboard/internal/log"
	"github.com/Alia5/btkeyboard/internal/metrics"
	"github.com/Alia5/btkeyboard/sink"
)

// SinkConfig selects where reports go. It is embedded by every command that
// sends reports.
type SinkConfig struct {
	Kind    string `help:"Report transport: hex dump, Linux HID gadget, EZ-Key Bluetooth UART module or nothing" enum:"hex,hidg,ezkey,null" default:"hex" env:"BTKEYBOARD_SINK_KIND"`
	Device  string `help:"HID gadget node (hidg) or serial port (ezkey)" env:"BTKEYBOARD_SINK_DEVICE"`
	Baud    int    `help:"Serial baud rate for ezkey" default:"9600" env:"BTKEYBOARD_SINK_BAUD"`
	Output  string `help:"File for the hex dump; stdout when empty" env:"BTKEYBOARD_SINK_OUTPUT"`
	Packing string `help:"How several latched modifiers are packed into a report" enum:"combined,legacy" default:"combined" env:"BTKEYBOARD_SINK_PACKING"`
}

// OpenedSink is the transport plus whatever must be closed with it.
type OpenedSink struct {
	keyboard.Sink
	closers []io.Closer
}

func (o *OpenedSink) Close() error {
	var errs []error
	for _, c := range o.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Open builds the configured transport, decorated with the raw report dump
// and, when m is non-nil, report counters. stdout receives the hex dump when
// Output is empty.
func (c SinkConfig) Open(logger *slog.Logger, raw log.RawLogger, m *metrics.Metrics, stdout io.Writer) (*OpenedSink, error) {
	out := &OpenedSink{}
	var base keyboard.Sink
	switch c.Kind {
	case "", "hex":
		p, err := keyboard.ParsePacking(c.Packing)
		if err != nil {
			return nil, err
		}
		w := stdout
		if c.Output != "" {
			f, err := os.OpenFile(c.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				return nil, fmt.Errorf("open hex output: %w", err)
			}
			out.closers = append(out.closers, f)
			w = f
		}
		base = sink.NewHex(w).WithPacking(p)
	case "hidg":
		path := c.Device
		if path == "" {
			path = sink.DefaultHIDGadgetPath
		}
		hw, err := sink.OpenHIDGadget(path, logger)
		if err != nil {
			return nil, err
		}
		out.closers = append(out.closers, hw)
		base = hw
	case "ezkey":
		if c.Device == "" {
			return nil, errors.New("ezkey sink needs --sink.device (serial port)")
		}
		baud := c.Baud
		if baud == 0 {
			baud = sink.DefaultEZKeyBaud
		}
		ez, err := sink.OpenEZKey(c.Device, baud, logger)
		if err != nil {
			return nil, err
		}
		out.closers = append(out.closers, ez)
		base = ez
	case "null":
		base = sink.Discard
	default:
		return nil, fmt.Errorf("unknown sink kind %q", c.Kind)
	}

	if raw != nil {
		base = sink.NewRaw(base, raw)
	}
	if m != nil {
		base = sink.NewCounting(base, m.Reports)
	}
	out.Sink = base
	logger.Debug("sink opened", "kind", c.Kind, "device", c.Device, "packing", c.Packing)
	return out, nil
}

// EngineOptions returns the engine options implied by the config.
func (c SinkConfig) EngineOptions(logger *slog.Logger) ([]keyboard.Option, error) {
	p, err := keyboard.ParsePacking(c.Packing)
	if err != nil {
		return nil, err
	}
	return []keyboard.Option{keyboard.WithPacking(p), keyboard.WithLogger(logger)}, nil
}
