package keyboard

import (
	"fmt"
	"io"
	"math/bits"
)

// ReportSize is the length of a boot-protocol keyboard report.
const ReportSize = 8

// KeySlots is the number of simultaneously reported key codes.
const KeySlots = 6

// Report is a boot-protocol keyboard report.
type Report struct {
	Modifiers uint8           // bit 0-7: LCtrl, LShift, LAlt, LGui, RCtrl, RShift, RAlt, RGui
	Keys      [KeySlots]uint8 // 0 = empty slot
}

// Release is the canonical "all keys up" report.
var Release = Report{}

// IsRelease reports whether every field is zero.
func (r Report) IsRelease() bool {
	return r == Release
}

// BuildReport encodes the report into the 8-byte HID layout.
//
// Report layout (8 bytes):
//
//	Byte 0: Modifiers (8 bits)
//	Byte 1: Reserved (0x00)
//	Bytes 2-7: Key usage codes
func (r Report) BuildReport() []byte {
	b := make([]byte, ReportSize)
	b[0] = r.Modifiers
	b[1] = 0x00 // Reserved
	copy(b[2:], r.Keys[:])
	return b
}

// MarshalBinary encodes the report using the same layout as BuildReport.
func (r *Report) MarshalBinary() ([]byte, error) {
	return r.BuildReport(), nil
}

// UnmarshalBinary decodes an 8-byte report. The reserved byte is ignored.
func (r *Report) UnmarshalBinary(data []byte) error {
	if len(data) < ReportSize {
		return io.ErrUnexpectedEOF
	}
	r.Modifiers = data[0]
	copy(r.Keys[:], data[2:ReportSize])
	return nil
}

func (r Report) String() string {
	return fmt.Sprintf("mod=0x%02x keys=[% x]", r.Modifiers, r.Keys[:])
}

// Describe renders the report with key and modifier names, e.g. "Ctrl+Alt+Delete".
func (r Report) Describe() string {
	return r.DescribePacked(PackingCombined)
}

// DescribePacked is Describe for a report built with packing p. In legacy
// packing every key slot before the last one holds a raw modifier bit, which
// the host reads as a key usage; those slots are shown as hex so that
// Ctrl+Alt+Del reads "Ctrl+0x04+Delete" and not "Ctrl+A+Delete".
func (r Report) DescribePacked(p Packing) string {
	if r.IsRelease() {
		return "release"
	}
	var out string
	add := func(s string) {
		if out != "" {
			out += "+"
		}
		out += s
	}
	for _, m := range modifierNames {
		if r.Modifiers&m.bit != 0 {
			add(m.name)
		}
	}
	last := -1
	for i, k := range r.Keys {
		if k != KeyNone {
			last = i
		}
	}
	for i, k := range r.Keys {
		if k == KeyNone {
			continue
		}
		if p == PackingLegacy && i < last && bits.OnesCount8(k) == 1 {
			add(fmt.Sprintf("0x%02x", k))
			continue
		}
		if name, ok := KeyName[k]; ok {
			add(name)
		} else {
			add(fmt.Sprintf("0x%02x", k))
		}
	}
	return out
}

var modifierNames = []struct {
	bit  uint8
	name string
}{
	{ModLeftCtrl, "Ctrl"},
	{ModLeftShift, "Shift"},
	{ModLeftAlt, "Alt"},
	{ModLeftGUI, "Win"},
	{ModRightCtrl, "RCtrl"},
	{ModRightShift, "RShift"},
	{ModRightAlt, "RAlt"},
	{ModRightGUI, "RWin"},
}
