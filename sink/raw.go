package sink

import (
	"github.com/Alia5/btkeyboard/device/keyboard"
	"github.com/Alia5/btkeyboard/internal/log"
)

// Raw passes reports to next and hex-dumps them to a RawLogger.
type Raw struct {
	next keyboard.Sink
	raw  log.RawLogger
}

func NewRaw(next keyboard.Sink, raw log.RawLogger) *Raw {
	return &Raw{next: next, raw: raw}
}

func (s *Raw) SendKeyboard(r keyboard.Report) {
	tag := "down"
	if r.IsRelease() {
		tag = "up"
	}
	s.raw.Log(tag, r.BuildReport())
	s.next.SendKeyboard(r)
}
