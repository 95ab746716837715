package sink

import (
	"fmt"
	"io"
	"sync"

	"github.com/Alia5/btkeyboard/device/keyboard"
)

// Hex prints one readable line per report. Used for dry runs.
type Hex struct {
	mu      sync.Mutex
	w       io.Writer
	packing keyboard.Packing
}

func NewHex(w io.Writer) *Hex {
	return &Hex{w: w}
}

// WithPacking names key slots according to how the engine packed them.
func (h *Hex) WithPacking(p keyboard.Packing) *Hex {
	h.packing = p
	return h
}

func (h *Hex) SendKeyboard(r keyboard.Report) {
	b := r.BuildReport()
	h.mu.Lock()
	defer h.mu.Unlock()
	_, _ = fmt.Fprintf(h.w, "% x  %s\n", b, r.DescribePacked(h.packing))
}
