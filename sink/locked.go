package sink

import (
	"sync"

	"github.com/Alia5/btkeyboard/device/keyboard"
)

// Shared is a sink used by several engines at once. SendKeyboard does not lock;
// callers hold the Shared lock around each engine operation so a down report
// and its release stay adjacent on the wire.
type Shared struct {
	sync.Mutex
	next keyboard.Sink
}

func NewShared(next keyboard.Sink) *Shared {
	return &Shared{next: next}
}

func (s *Shared) SendKeyboard(r keyboard.Report) {
	s.next.SendKeyboard(r)
}

// Run calls fn with the lock held.
func (s *Shared) Run(fn func()) {
	s.Lock()
	defer s.Unlock()
	fn()
}
