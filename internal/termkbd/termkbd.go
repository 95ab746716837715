// Package termkbd turns a terminal into a keyboard: keys pressed in a tcell
// screen are translated and sent through a keyboard.Engine.
//
// Terminals cannot report a bare modifier press, so Ctrl+G followed by c, s,
// a or w latches Ctrl, Shift, Alt or Win for the next key. Ctrl+Q quits.
package termkbd

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/Alia5/btkeyboard/device/keyboard"
)

// Keyboard applies translated key events to an engine.
type Keyboard struct {
	engine *keyboard.Engine
	logger *slog.Logger
	prefix bool
	status string

	mu   sync.Mutex
	last keyboard.Report
}

// New builds a Keyboard whose engine writes to next. opts are passed to
// keyboard.New.
func New(next keyboard.Sink, logger *slog.Logger, opts ...keyboard.Option) *Keyboard {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	k := &Keyboard{logger: logger}
	capture := keyboard.SinkFunc(func(r keyboard.Report) {
		if !r.IsRelease() {
			k.mu.Lock()
			k.last = r
			k.mu.Unlock()
		}
		next.SendKeyboard(r)
	})
	k.engine = keyboard.New(capture, opts...)
	return k
}

// Engine returns the underlying engine.
func (k *Keyboard) Engine() *keyboard.Engine { return k.engine }

// LastReport returns the last down report sent.
func (k *Keyboard) LastReport() keyboard.Report {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.last
}

// Status is a one-line summary for the status bar.
func (k *Keyboard) Status() string {
	var b strings.Builder
	if k.prefix {
		b.WriteString("latch: c=Ctrl s=Shift a=Alt w=Win")
	} else {
		b.WriteString("latched: ")
		if l := k.engine.Latched(); len(l) > 0 {
			b.WriteString(strings.Join(l, "+"))
		} else {
			b.WriteString("-")
		}
	}
	fmt.Fprintf(&b, " | last: %s", k.LastReport().Describe())
	if k.status != "" {
		b.WriteString(" | ")
		b.WriteString(k.status)
	}
	return b.String()
}

// Handle processes one key event. It returns false when the user asked to quit.
func (k *Keyboard) Handle(ev KeyEvent) bool {
	a := Translate(ev, k.prefix)
	k.prefix = false
	k.status = ""

	switch a.Kind {
	case ActionQuit:
		return false
	case ActionPrefix:
		k.prefix = true
	case ActionLatch:
		if !k.engine.ToggleModifier(a.Name) {
			k.status = fmt.Sprintf("cannot latch %s", a.Name)
		}
	case ActionChar:
		k.send(a, func() bool { return k.engine.SendCharWithModifiers(a.Rune) })
	case ActionKey:
		k.send(a, func() bool { return k.engine.SendKeyWithModifiers(a.Name) })
	}
	return true
}

// send latches the modifiers reported by the terminal, then calls fn. When fn
// sends nothing, the accumulator is put back the way it was.
func (k *Keyboard) send(a Action, fn func() bool) {
	before := k.engine.Latched()
	for _, m := range a.Mods {
		if !slices.Contains(k.engine.Latched(), m) {
			k.engine.ToggleModifier(m)
		}
	}
	if fn() {
		return
	}
	k.engine.Reset()
	for _, m := range before {
		k.engine.ToggleModifier(m)
	}
	what := a.Name
	if a.Kind == ActionChar {
		what = fmt.Sprintf("%q", a.Rune)
	}
	k.status = "unmapped " + what
	k.logger.Debug("terminal key dropped", "key", what)
}

const help = "btkeyboard: type to send keys | Ctrl+G then c/s/a/w latches a modifier | Ctrl+Q quits"

// Run drives k from screen until Ctrl+Q or ctx is done. screen must be
// initialised; Run does not call Fini.
func Run(ctx context.Context, screen tcell.Screen, k *Keyboard) error {
	events := make(chan tcell.Event, 16)
	quit := make(chan struct{})
	defer close(quit)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-quit:
				return
			}
		}
	}()

	draw(screen, k)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if !k.Handle(ev) {
					return nil
				}
			case *tcell.EventResize:
				screen.Sync()
			}
			draw(screen, k)
		}
	}
}

func draw(screen tcell.Screen, k *Keyboard) {
	screen.Clear()
	drawLine(screen, 0, help, tcell.StyleDefault.Bold(true))
	drawLine(screen, 2, k.Status(), tcell.StyleDefault)
	screen.Show()
}

func drawLine(screen tcell.Screen, y int, s string, style tcell.Style) {
	w, _ := screen.Size()
	x := 0
	for _, r := range s {
		if x >= w {
			return
		}
		screen.SetContent(x, y, r, nil, style)
		x++
	}
}
