package termkbd

import (
	"github.com/gdamore/tcell/v2"

	"github.com/Alia5/btkeyboard/device/keyboard"
)

// KeyEvent is the part of *tcell.EventKey the translator reads.
type KeyEvent interface {
	Key() tcell.Key
	Rune() rune
	Modifiers() tcell.ModMask
}

// namedKeys maps terminal keys to keyboard.NamedKeys names. Ctrl+H, Ctrl+I
// and Ctrl+M arrive as Backspace, Tab and Enter and are listed only once.
var namedKeys = map[tcell.Key]string{
	tcell.KeyEnter:      "Enter",
	tcell.KeyTab:        "Tab",
	tcell.KeyEscape:     "Esc",
	tcell.KeyBackspace:  "Back",
	tcell.KeyBackspace2: "Back",
	tcell.KeyUp:         "Up",
	tcell.KeyDown:       "Down",
	tcell.KeyLeft:       "Left",
	tcell.KeyRight:      "Right",
	tcell.KeyInsert:     "Ins",
	tcell.KeyDelete:     keyboard.NameDel,
	tcell.KeyHome:       "HOME",
	tcell.KeyEnd:        "END",
	tcell.KeyPgUp:       "PgUp",
	tcell.KeyPgDn:       "PgDn",
	tcell.KeyPrint:      "PRINTSCREEN",
	tcell.KeyPause:      "PAUSE",
	tcell.KeyF1:         "F1",
	tcell.KeyF2:         "F2",
	tcell.KeyF3:         "F3",
	tcell.KeyF4:         "F4",
	tcell.KeyF5:         "F5",
	tcell.KeyF6:         "F6",
	tcell.KeyF7:         "F7",
	tcell.KeyF8:         "F8",
	tcell.KeyF9:         "F9",
	tcell.KeyF10:        "F10",
	tcell.KeyF11:        "F11",
	tcell.KeyF12:        "F12",
}

// prefixModifiers are the keys accepted after the latch prefix.
var prefixModifiers = map[rune]string{
	'c': keyboard.NameCtrl,
	's': keyboard.NameShift,
	'a': keyboard.NameAlt,
	'w': keyboard.NameWin,
}

// ActionKind says what a key event turns into.
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionQuit
	ActionPrefix
	ActionLatch
	ActionChar
	ActionKey
)

// Action is the translation of one key event.
type Action struct {
	Kind ActionKind
	// Mods are modifiers the terminal reported with the key.
	Mods []string
	// Rune is set for ActionChar.
	Rune rune
	// Name is the key name for ActionKey or the modifier for ActionLatch.
	Name string
}

// Translate maps a terminal key event to an Action. prefix is true when the
// previous event was the latch prefix (Ctrl+G).
func Translate(ev KeyEvent, prefix bool) Action {
	key, r, mods := ev.Key(), ev.Rune(), ev.Modifiers()

	if key == tcell.KeyCtrlQ || (key == tcell.KeyRune && mods&tcell.ModCtrl != 0 && (r == 'q' || r == 'Q')) {
		return Action{Kind: ActionQuit}
	}
	if prefix {
		if key == tcell.KeyRune {
			if name, ok := prefixModifiers[r]; ok {
				return Action{Kind: ActionLatch, Name: name}
			}
		}
		return Action{Kind: ActionNone}
	}
	if key == tcell.KeyCtrlG || (key == tcell.KeyRune && mods&tcell.ModCtrl != 0 && (r == 'g' || r == 'G')) {
		return Action{Kind: ActionPrefix}
	}

	if key == tcell.KeyBacktab {
		return Action{Kind: ActionKey, Name: "Tab", Mods: []string{keyboard.NameShift}}
	}
	if name, ok := namedKeys[key]; ok {
		return Action{Kind: ActionKey, Name: name, Mods: modNames(mods, true)}
	}
	if key >= tcell.KeyCtrlA && key <= tcell.KeyCtrlZ {
		letter := 'a' + rune(key-tcell.KeyCtrlA)
		return Action{Kind: ActionChar, Rune: letter, Mods: withCtrl(modNames(mods, false))}
	}
	if key == tcell.KeyRune {
		return Action{Kind: ActionChar, Rune: r, Mods: modNames(mods, false)}
	}
	return Action{Kind: ActionNone}
}

// modNames lists the modifiers in mods. Shift is only meaningful for named
// keys; the terminal has already applied it to printable runes.
func modNames(mods tcell.ModMask, shift bool) []string {
	var out []string
	if mods&tcell.ModCtrl != 0 {
		out = append(out, keyboard.NameCtrl)
	}
	if shift && mods&tcell.ModShift != 0 {
		out = append(out, keyboard.NameShift)
	}
	if mods&tcell.ModAlt != 0 {
		out = append(out, keyboard.NameAlt)
	}
	if mods&tcell.ModMeta != 0 {
		out = append(out, keyboard.NameWin)
	}
	return out
}

func withCtrl(mods []string) []string {
	for _, m := range mods {
		if m == keyboard.NameCtrl {
			return mods
		}
	}
	return append([]string{keyboard.NameCtrl}, mods...)
}
