// Package sink provides keyboard.Sink implementations: transports that deliver
// boot reports to a HID host, plus decorators for logging, metrics and
// serialization.
//
// Transport errors are logged and counted by the sink that hits them. They
// never reach the keyboard.Engine, which has no way to act on them.
package sink

import (
	"github.com/Alia5/btkeyboard/device/keyboard"
)

// Discard drops every report.
var Discard keyboard.Sink = keyboard.SinkFunc(func(keyboard.Report) {})

// Multi fans a report out to several sinks in order.
type Multi []keyboard.Sink

func (m Multi) SendKeyboard(r keyboard.Report) {
	for _, s := range m {
		s.SendKeyboard(r)
	}
}
