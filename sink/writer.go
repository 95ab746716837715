package sink

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Alia5/btkeyboard/device"
	"github.com/Alia5/btkeyboard/device/keyboard"
)

// DefaultHIDGadgetPath is the first HID function of a Linux USB gadget.
const DefaultHIDGadgetPath = "/dev/hidg0"

// Writer writes raw 8-byte reports to an io.Writer, one Write per report.
type Writer struct {
	w      io.Writer
	logger *slog.Logger
}

func NewWriter(w io.Writer, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{w: w, logger: logger}
}

// OpenHIDGadget opens a HID gadget character device (e.g. /dev/hidg0).
func OpenHIDGadget(path string, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open hid gadget %s: %w", path, err)
	}
	return NewWriter(f, logger.With("device", path)), nil
}

func (w *Writer) SendKeyboard(r keyboard.Report) {
	w.write(r)
}

func (w *Writer) write(rb device.ReportBuilder) {
	b := rb.BuildReport()
	if _, err := w.w.Write(b); err != nil {
		w.logger.Error("write report", "error", err)
	}
}

// Close closes the underlying writer if it is an io.Closer.
func (w *Writer) Close() error {
	if c, ok := w.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
