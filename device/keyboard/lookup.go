package keyboard

// LookupChar resolves a printable character. shift is true when the glyph
// comes from ShiftCharToKey. ok is false for anything not in either table.
func LookupChar(r rune) (code uint8, shift bool, ok bool) {
	if code, ok := CharToKey[r]; ok {
		return code, false, true
	}
	if code, ok := ShiftCharToKey[r]; ok {
		return code, true, true
	}
	return 0, false, false
}

// LookupName resolves a key name from NamedKeys.
func LookupName(name string) (NamedKey, bool) {
	k, ok := NamedKeys[name]
	return k, ok
}

// ModifierBit returns the modifier bit for one of the modifier names
// (Ctrl, Shift, Alt, Win).
func ModifierBit(name string) (uint8, bool) {
	k, ok := NamedKeys[name]
	if !ok || !k.IsModifier() {
		return 0, false
	}
	return k.Modifier, true
}

// IsModifierName reports whether name latches a modifier.
func IsModifierName(name string) bool {
	_, ok := ModifierBit(name)
	return ok
}

// isLetter reports whether r is an ASCII letter; only those are uppercased
// when Shift is latched.
func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func toUpper(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - ('a' - 'A')
	}
	return r
}
