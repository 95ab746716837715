package sink

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Alia5/btkeyboard/device/keyboard"
)

// Counting increments a counter per report, labelled "down" or "up", then
// forwards to next.
type Counting struct {
	next keyboard.Sink
	down prometheus.Counter
	up   prometheus.Counter
}

// NewCounting expects a CounterVec with a single "kind" label.
func NewCounting(next keyboard.Sink, reports *prometheus.CounterVec) *Counting {
	return &Counting{
		next: next,
		down: reports.WithLabelValues("down"),
		up:   reports.WithLabelValues("up"),
	}
}

func (c *Counting) SendKeyboard(r keyboard.Report) {
	if r.IsRelease() {
		c.up.Inc()
	} else {
		c.down.Inc()
	}
	c.next.SendKeyboard(r)
}
