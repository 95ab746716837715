// Package keyboard translates characters, key names and latched modifier keys
// into USB HID boot-protocol keyboard reports.
//
// The scan-code tables (CharToKey, ShiftCharToKey, NamedKeys) are read-only
// after package initialization. An Engine holds the only mutable state: the
// list of modifier names latched by ToggleModifier, which is cleared by the
// next key event that sends a report. Every translated event produces a down
// report followed by the all-zero Release report.
package keyboard
