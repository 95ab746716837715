package event

import (
	"github.com/Alia5/btkeyboard/device/keyboard"
)

// Result counts what an event did.
type Result struct {
	// Sent is the number of down/up report pairs emitted.
	Sent int `json:"sent"`
	// Dropped is the number of unmapped characters, names or rejected modifiers.
	Dropped int `json:"dropped"`
}

func (r *Result) add(ok bool) {
	if ok {
		r.Sent++
	} else {
		r.Dropped++
	}
}

// Apply runs ev against e. Characters and keys go through the chord path
// when modifiers are latched and through the plain path otherwise.
func Apply(e *keyboard.Engine, ev Event) Result {
	var res Result
	switch ev.Kind {
	case KindChar:
		for _, r := range ev.Value {
			res.add(e.SendCharWithModifiers(r))
		}
	case KindKey:
		if _, ok := keyboard.LookupName(ev.Value); !ok {
			res.Dropped++
			break
		}
		res.add(e.SendKeyWithModifiers(ev.Value))
	case KindMod:
		if !e.ToggleModifier(ev.Value) {
			res.Dropped++
		}
	case KindChord:
		parts := SplitChord(ev.Value)
		if len(parts) == 0 {
			res.Dropped++
			break
		}
		// A chord is one request: if the key is unmapped the latch goes back
		// to what it was before the chord.
		prev := e.Latched()
		for _, m := range parts[:len(parts)-1] {
			if !e.ToggleModifier(m) {
				res.Dropped++
			}
		}
		if e.SendKeyWithModifiers(parts[len(parts)-1]) {
			res.Sent++
			break
		}
		res.Dropped++
		e.Reset()
		for _, m := range prev {
			e.ToggleModifier(m)
		}
	case KindText:
		for _, r := range ev.Value {
			switch r {
			case '\n':
				res.add(e.SendKeyWithModifiers("Enter"))
			case '\t':
				res.add(e.SendKeyWithModifiers("Tab"))
			default:
				res.add(e.SendCharWithModifiers(r))
			}
		}
	default:
		res.Dropped++
	}
	return res
}
