package keyboard

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"unicode/utf8"
)

// Sink receives the reports produced by an Engine. The engine calls it twice
// per translated event: once with the down report and once with Release.
// Delivery failures are the sink's business; they never reach the engine.
type Sink interface {
	SendKeyboard(r Report)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(r Report)

func (f SinkFunc) SendKeyboard(r Report) { f(r) }

// Packing selects how two or more latched modifiers are placed in the down report.
type Packing int

const (
	// PackingCombined ORs every latched modifier into the modifier byte and
	// leaves the key slots for key codes.
	PackingCombined Packing = iota
	// PackingLegacy puts the first latched modifier in the modifier byte and
	// the remaining modifier bits, followed by the key code, into the key slots.
	// Hosts paired with the old Android sender expect this layout.
	PackingLegacy
)

func (p Packing) String() string {
	switch p {
	case PackingCombined:
		return "combined"
	case PackingLegacy:
		return "legacy"
	default:
		return fmt.Sprintf("packing(%d)", int(p))
	}
}

// ParsePacking parses "combined" or "legacy".
func ParsePacking(s string) (Packing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "combined", "":
		return PackingCombined, nil
	case "legacy":
		return PackingLegacy, nil
	default:
		return 0, fmt.Errorf("unknown packing %q (expected combined or legacy)", s)
	}
}

// State is the accumulator state of an Engine.
type State int

const (
	Idle State = iota
	Accumulating
)

func (s State) String() string {
	if s == Accumulating {
		return "accumulating"
	}
	return "idle"
}

// MaxLatchedModifiers is the number of modifier names the accumulator holds.
const MaxLatchedModifiers = 3

// Engine turns characters, key names and latched modifiers into report pairs.
//
// An Engine is not safe for concurrent use. Drive it from one goroutine or
// guard it; use one Engine per input source to keep accumulators apart.
type Engine struct {
	sink    Sink
	packing Packing
	logger  *slog.Logger
	latched []string
}

// Option configures an Engine.
type Option func(*Engine)

// WithPacking selects the multi-modifier packing. Default is PackingCombined.
func WithPacking(p Packing) Option {
	return func(e *Engine) { e.packing = p }
}

// WithLogger sets the logger used for per-event debug output.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New returns an Engine writing to sink. It panics if sink is nil.
func New(sink Sink, opts ...Option) *Engine {
	if sink == nil {
		panic("keyboard: nil sink")
	}
	e := &Engine{
		sink:    sink,
		logger:  slog.New(slog.DiscardHandler),
		latched: make([]string, 0, MaxLatchedModifiers),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Packing returns the configured packing.
func (e *Engine) Packing() Packing { return e.packing }

// State reports whether modifiers are latched.
func (e *Engine) State() State {
	if len(e.latched) > 0 {
		return Accumulating
	}
	return Idle
}

// Latched returns a copy of the latched modifier names in insertion order.
func (e *Engine) Latched() []string {
	return slices.Clone(e.latched)
}

// Reset drops latched modifiers without sending anything.
func (e *Engine) Reset() {
	e.latched = e.latched[:0]
}

// SendCharacter taps a single character, adding Shift for glyphs that need it.
// Unmapped characters are ignored and false is returned.
func (e *Engine) SendCharacter(r rune) bool {
	code, shift, ok := LookupChar(r)
	if !ok {
		e.logger.Debug("unmapped character", "char", string(r))
		return false
	}
	var mod uint8
	if shift {
		mod = ModLeftShift
	}
	e.emit(Report{Modifiers: mod, Keys: [KeySlots]uint8{code}})
	return true
}

// SendSpecialKey taps a named key such as "Enter" or "F5". A modifier name
// taps the modifier alone. Unknown names are ignored and false is returned.
func (e *Engine) SendSpecialKey(name string) bool {
	k, ok := LookupName(name)
	if !ok {
		e.logger.Debug("unmapped key name", "name", name)
		return false
	}
	if k.IsModifier() {
		e.emit(Report{Modifiers: k.Modifier})
		return true
	}
	e.emit(Report{Keys: [KeySlots]uint8{k.Code}})
	return true
}

// ToggleModifier latches a modifier name (Ctrl, Shift, Alt or Win) for the
// next key event. Names are not de-duplicated. Nothing is sent. It returns
// false when name is not a modifier or the accumulator is full.
func (e *Engine) ToggleModifier(name string) bool {
	if !IsModifierName(name) {
		e.logger.Debug("not a modifier", "name", name)
		return false
	}
	if len(e.latched) >= MaxLatchedModifiers {
		e.logger.Debug("modifier accumulator full", "name", name, "latched", e.latched)
		return false
	}
	e.latched = append(e.latched, name)
	return true
}

// SendKeyWithModifiers sends key combined with the latched modifiers. key is
// either a name from NamedKeys or a single character. With nothing latched it
// behaves like SendSpecialKey / SendCharacter.
func (e *Engine) SendKeyWithModifiers(key string) bool {
	if k, ok := LookupName(key); ok {
		if len(e.latched) == 0 {
			return e.SendSpecialKey(key)
		}
		e.emit(e.chord(k.Code, k.Modifier, false, key == NameDel))
		return true
	}
	r, size := utf8.DecodeRuneInString(key)
	if size == 0 || size != len(key) || r == utf8.RuneError {
		e.logger.Debug("unmapped key name", "name", key)
		return false
	}
	return e.SendCharWithModifiers(r)
}

// SendCharWithModifiers sends a character combined with the latched modifiers.
// Letters are uppercased when Shift is latched.
func (e *Engine) SendCharWithModifiers(r rune) bool {
	if len(e.latched) == 0 {
		return e.SendCharacter(r)
	}
	code, shift, ok := LookupChar(r)
	if !ok {
		e.logger.Debug("unmapped character", "char", string(r))
		return false
	}
	if isLetter(r) && slices.Contains(e.latched, NameShift) {
		code = ShiftCharToKey[toUpper(r)]
	}
	e.emit(e.chord(code, 0, shift, false))
	return true
}

// chord builds the down report for a key pressed with latched modifiers.
// keyMod is set when the triggering key is itself a modifier.
func (e *Engine) chord(code, keyMod uint8, shift, del bool) Report {
	bits := make([]uint8, 0, len(e.latched))
	for _, name := range e.latched {
		b, _ := ModifierBit(name)
		bits = append(bits, b)
	}

	// Shift+Del and Win+Del send the modifier alone.
	if len(bits) == 1 && del && (e.latched[0] == NameShift || e.latched[0] == NameWin) {
		return Report{Modifiers: bits[0]}
	}

	var r Report
	if e.packing == PackingLegacy {
		if keyMod != 0 {
			code = keyMod
		}
		r.Modifiers = bits[0]
		slots := append(bits[1:len(bits):len(bits)], code)
		copy(r.Keys[:], slots)
		return r
	}

	for _, b := range bits {
		r.Modifiers |= b
	}
	r.Modifiers |= keyMod
	if shift {
		r.Modifiers |= ModLeftShift
	}
	r.Keys[0] = code
	return r
}

func (e *Engine) emit(down Report) {
	e.sink.SendKeyboard(down)
	e.sink.SendKeyboard(Release)
	if len(e.latched) > 0 {
		e.logger.Debug("sent chord", "report", down.DescribePacked(e.packing), "latched", e.latched, "packing", e.packing)
	} else {
		e.logger.Debug("sent key", "report", down.Describe())
	}
	e.latched = e.latched[:0]
}
