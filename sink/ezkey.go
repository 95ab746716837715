package sink

import (
	"fmt"
	"io"
	"log/slog"

	"go.bug.st/serial"

	"github.com/Alia5/btkeyboard/device/keyboard"
)

// EZKeyFrameStart prefixes every raw report sent to an EZ-Key module.
const EZKeyFrameStart = 0xFD

// DefaultEZKeyBaud is the factory UART speed of the module.
const DefaultEZKeyBaud = 9600

// EZKey drives a Bluefruit EZ-Key style Bluetooth HID module over a UART.
// The module is paired with the host as a Bluetooth keyboard and forwards
// each raw report it receives: 0xFD followed by the 8-byte boot report.
type EZKey struct {
	port   io.WriteCloser
	logger *slog.Logger
	buf    [1 + keyboard.ReportSize]byte
}

// NewEZKey wraps an already opened port.
func NewEZKey(port io.WriteCloser, logger *slog.Logger) *EZKey {
	if logger == nil {
		logger = slog.Default()
	}
	return &EZKey{port: port, logger: logger}
}

// OpenEZKey opens the serial port (8N1) the module is attached to.
func OpenEZKey(portName string, baud int, logger *slog.Logger) (*EZKey, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if baud <= 0 {
		baud = DefaultEZKeyBaud
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", portName, err)
	}
	return NewEZKey(port, logger.With("port", portName, "baud", baud)), nil
}

// SendKeyboard writes one framed report.
func (k *EZKey) SendKeyboard(r keyboard.Report) {
	k.buf[0] = EZKeyFrameStart
	copy(k.buf[1:], r.BuildReport())
	if _, err := k.port.Write(k.buf[:]); err != nil {
		k.logger.Error("write report to ezkey", "error", err)
	}
}

func (k *EZKey) Close() error {
	return k.port.Close()
}
