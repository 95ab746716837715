package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	toml "github.com/pelletier/go-toml"
	yaml "gopkg.in/yaml.v3"

	"github.com/Alia5/btkeyboard/device/keyboard"
)

// Keys prints the translation tables.
type Keys struct {
	Format string `help:"Output format" enum:"text,json,yaml,toml" default:"text"`
}

// KeyEntry is one row of the dumped tables.
type KeyEntry struct {
	Input    string `json:"input" yaml:"input" toml:"input"`
	Code     string `json:"code" yaml:"code" toml:"code"`
	Modifier string `json:"modifier,omitempty" yaml:"modifier,omitempty" toml:"modifier,omitempty"`
}

// KeyTables groups the three lookup tables.
type KeyTables struct {
	Chars        []KeyEntry `json:"chars" yaml:"chars" toml:"chars"`
	ShiftedChars []KeyEntry `json:"shiftedChars" yaml:"shiftedChars" toml:"shiftedChars"`
	NamedKeys    []KeyEntry `json:"namedKeys" yaml:"namedKeys" toml:"namedKeys"`
}

// Run is called by Kong when the keys command is executed.
func (k *Keys) Run() error {
	return k.run(os.Stdout)
}

func (k *Keys) run(w io.Writer) error {
	tables := BuildKeyTables()
	var (
		data []byte
		err  error
	)
	switch normalizeFormat(k.Format) {
	case "json":
		data, err = json.MarshalIndent(tables, "", "  ")
		data = append(data, '\n')
	case "yaml":
		data, err = yaml.Marshal(tables)
	case "toml":
		data, err = toml.Marshal(tables)
	default:
		return writeKeyText(w, tables)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// BuildKeyTables returns the tables sorted by input.
func BuildKeyTables() KeyTables {
	var t KeyTables
	for r, code := range keyboard.CharToKey {
		t.Chars = append(t.Chars, KeyEntry{Input: string(r), Code: hexCode(code)})
	}
	for r, code := range keyboard.ShiftCharToKey {
		t.ShiftedChars = append(t.ShiftedChars, KeyEntry{Input: string(r), Code: hexCode(code), Modifier: keyboard.NameShift})
	}
	for name, k := range keyboard.NamedKeys {
		e := KeyEntry{Input: name, Code: hexCode(k.Code)}
		if k.IsModifier() {
			e.Modifier = hexCode(k.Modifier)
		}
		t.NamedKeys = append(t.NamedKeys, e)
	}
	for _, s := range [][]KeyEntry{t.Chars, t.ShiftedChars, t.NamedKeys} {
		sort.Slice(s, func(i, j int) bool { return s[i].Input < s[j].Input })
	}
	return t
}

func hexCode(c uint8) string { return fmt.Sprintf("0x%02X", c) }

func writeKeyText(w io.Writer, t KeyTables) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	section := func(title string, entries []KeyEntry) {
		fmt.Fprintf(tw, "%s\n", title)
		for _, e := range entries {
			input := e.Input
			if input == " " {
				input = "space"
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", input, e.Code, e.Modifier)
		}
	}
	section("characters", t.Chars)
	section("shifted characters", t.ShiftedChars)
	section("named keys", t.NamedKeys)
	return tw.Flush()
}
