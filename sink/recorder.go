package sink

import (
	"sync"

	"github.com/Alia5/btkeyboard/device/keyboard"
)

// Recorder keeps every report it receives. Safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	reports []keyboard.Report
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) SendKeyboard(rep keyboard.Report) {
	r.mu.Lock()
	r.reports = append(r.reports, rep)
	r.mu.Unlock()
}

// Reports returns a copy of the recorded reports.
func (r *Recorder) Reports() []keyboard.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]keyboard.Report, len(r.reports))
	copy(out, r.reports)
	return out
}

// Bytes returns the recorded reports in wire layout.
func (r *Recorder) Bytes() [][]byte {
	reps := r.Reports()
	out := make([][]byte, 0, len(reps))
	for _, rep := range reps {
		out = append(out, rep.BuildReport())
	}
	return out
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reports)
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.reports = nil
	r.mu.Unlock()
}
