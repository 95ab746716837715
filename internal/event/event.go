// Package event parses the line-oriented input events accepted by the CLI and
// the event server, and applies them to a keyboard.Engine.
//
// A line is "<kind> <value>":
//
//	char a          one character (Shift added for shifted glyphs)
//	key Enter       a named key from keyboard.NamedKeys
//	mod Ctrl        latch a modifier for the next char/key event
//	chord Ctrl+Alt+Del
//	                latch every part but the last, then send the last
//	text Hello!     type every character; \n and \t become Enter and Tab
package event

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

type Kind string

const (
	KindChar  Kind = "char"
	KindKey   Kind = "key"
	KindMod   Kind = "mod"
	KindChord Kind = "chord"
	KindText  Kind = "text"
)

// Event is a single parsed input line.
type Event struct {
	Kind  Kind
	Value string
}

func (e Event) String() string {
	return string(e.Kind) + " " + e.Value
}

// ErrSyntax is wrapped by every parse error.
var ErrSyntax = errors.New("syntax error")

// Parse parses one event line. Trailing CR/LF are ignored; the value is taken
// verbatim after the first space so "char  " is a space and "text a b" keeps
// its inner spaces.
func Parse(line string) (Event, error) {
	line = strings.TrimRight(line, "\r\n")
	line = strings.TrimLeft(line, " \t")
	kind, value, found := strings.Cut(line, " ")
	if !found || value == "" {
		return Event{}, fmt.Errorf("%w: %q: expected \"<kind> <value>\"", ErrSyntax, line)
	}
	ev := Event{Kind: Kind(strings.ToLower(kind)), Value: value}
	switch ev.Kind {
	case KindChar:
		if utf8.RuneCountInString(value) != 1 {
			return Event{}, fmt.Errorf("%w: char takes exactly one character, got %q", ErrSyntax, value)
		}
	case KindKey, KindMod, KindChord:
		ev.Value = strings.TrimSpace(value)
		if ev.Value == "" {
			return Event{}, fmt.Errorf("%w: %s needs a name", ErrSyntax, ev.Kind)
		}
		if ev.Kind == KindChord && danglingPlus(ev.Value) {
			return Event{}, fmt.Errorf("%w: chord %q has no key after the last '+'", ErrSyntax, ev.Value)
		}
	case KindText:
		ev.Value = unescape(value)
	default:
		return Event{}, fmt.Errorf("%w: unknown event kind %q", ErrSyntax, kind)
	}
	return ev, nil
}

// ParseScript parses one event per line. Blank lines and lines starting with
// '#' are skipped. The returned error names the failing line.
func ParseScript(r io.Reader) ([]Event, error) {
	var events []Event
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := sc.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		ev, err := Parse(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		events = append(events, ev)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	return strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\\`, `\`).Replace(s)
}

// danglingPlus reports whether a chord ends in a separator with no key
// after it. "Ctrl+" is dangling; "Ctrl++" and "+" name the '+' key.
func danglingPlus(s string) bool {
	if !strings.HasSuffix(s, "+") || s == "+" {
		return false
	}
	return !strings.HasSuffix(s, "++")
}

// SplitChord splits "Ctrl+Alt+Del" into its parts. A trailing "+" as the key
// ("Ctrl++") is kept.
func SplitChord(s string) []string {
	var parts []string
	for s != "" {
		i := strings.IndexByte(s, '+')
		if i < 0 {
			parts = append(parts, s)
			break
		}
		if i == 0 {
			// a literal '+' key
			parts = append(parts, "+")
			s = strings.TrimPrefix(s[1:], "+")
			continue
		}
		parts = append(parts, s[:i])
		s = s[i+1:]
	}
	return parts
}
