package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	toml "github.com/pelletier/go-toml"
	yaml "gopkg.in/yaml.v3"

	"github.com/Alia5/btkeyboard/internal/configpaths"
)

// ConfigCommand groups config-related subcommands.
type ConfigCommand struct {
	Init ConfigInit `cmd:"" help:"Generate a configuration template"`
}

// ConfigInit writes every setting of one command, plus the global log
// settings, at their defaults. Keys are laid out the way the matching config
// loader looks them up.
type ConfigInit struct {
	Command string `arg:"" name:"command" help:"Command to generate config for" enum:"serve,type,send,term"`
	Format  string `help:"Output format" enum:"json,yaml,toml" default:"json"`
	Output  string `help:"Destination file path (defaults to current directory)"`
	Force   bool   `help:"Overwrite if the file already exists"`
}

// Run renders the template from the kong model of the running CLI.
func (c *ConfigInit) Run(k *kong.Kong) error {
	format := normalizeFormat(c.Format)
	if format == "" {
		return fmt.Errorf("unsupported format: %s", c.Format)
	}
	node := findCommand(k.Model.Node, c.Command)
	if node == nil {
		return fmt.Errorf("unknown command %q", c.Command)
	}
	settings := collectSettings(k.Model.Node, node)

	dest := c.Output
	if dest == "" {
		dest = c.Command + "." + configpaths.Ext(format)
	}
	if !c.Force {
		if _, err := os.Stat(dest); err == nil {
			return errors.New("destination exists; use --force to overwrite")
		}
	}
	if err := configpaths.EnsureDir(dest); err != nil {
		return err
	}

	var data []byte
	var err error
	switch format {
	case "json":
		data, err = renderJSON(settings)
	case "yaml":
		data, err = renderYAML(settings, c.Command)
	case "toml":
		data, err = renderTOML(settings)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}

func normalizeFormat(f string) string {
	switch strings.ToLower(f) {
	case "json":
		return "json"
	case "yaml", "yml":
		return "yaml"
	case "toml":
		return "toml"
	default:
		return ""
	}
}

// setting is one scaffolded flag.
type setting struct {
	name   string // flag name, e.g. "server.connection-timeout"
	global bool   // declared on the application, not on the command
	value  any
	help   string
	enum   string
}

func (s setting) comment() string {
	if s.enum == "" {
		return s.help
	}
	return fmt.Sprintf("%s (one of: %s)", s.help, strings.ReplaceAll(s.enum, ",", ", "))
}

func findCommand(app *kong.Node, name string) *kong.Node {
	for _, child := range app.Children {
		if child.Type == kong.CommandNode && child.Name == name {
			return child
		}
	}
	return nil
}

// collectSettings lists the application's own flags followed by the
// command's. help and config never belong in a config file. Path flags
// without a default are left out too: kong expands "" to the working
// directory.
func collectSettings(app, command *kong.Node) []setting {
	var out []setting
	add := func(flags []*kong.Flag, global bool) {
		for _, f := range flags {
			if f.Hidden || f.Name == "help" || f.Name == "config" {
				continue
			}
			if f.Tag != nil && f.Tag.Type == "path" && f.Default == "" {
				continue
			}
			out = append(out, setting{
				name:   f.Name,
				global: global,
				value:  defaultValue(f),
				help:   f.Help,
				enum:   f.Enum,
			})
		}
	}
	add(app.Flags, true)
	add(command.Flags, false)
	return out
}

var durationType = reflect.TypeOf(time.Duration(0))

// defaultValue converts the flag's default tag to a value of the flag's type.
// Durations stay strings ("5m") since every loader hands them to kong's
// duration mapper as text.
func defaultValue(f *kong.Flag) any {
	def := f.Default
	t := f.Target.Type()
	if t == durationType {
		if def == "" {
			return "0s"
		}
		return def
	}
	switch t.Kind() {
	case reflect.Bool:
		b, _ := strconv.ParseBool(def)
		return b
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, _ := strconv.ParseInt(def, 10, 64)
		return n
	case reflect.Float32, reflect.Float64:
		n, _ := strconv.ParseFloat(def, 64)
		return n
	}
	return def
}

// renderJSON nests on '.' with '-' as '_': kong's JSON resolver splits the
// flag name that way and ignores the command.
func renderJSON(settings []setting) ([]byte, error) {
	root := map[string]any{}
	for _, s := range settings {
		parts := strings.Split(strings.ReplaceAll(s.name, "-", "_"), ".")
		m := root
		for _, p := range parts[:len(parts)-1] {
			child, ok := m[p].(map[string]any)
			if !ok {
				child = map[string]any{}
				m[p] = child
			}
			m = child
		}
		m[parts[len(parts)-1]] = s.value
	}
	return json.MarshalIndent(root, "", "  ")
}

// renderYAML keeps global flags at the top level and puts the command's
// flags in a section named after it, with the help text as comments.
func renderYAML(settings []setting, command string) ([]byte, error) {
	doc := &yaml.Node{Kind: yaml.MappingNode}
	section := &yaml.Node{Kind: yaml.MappingNode}
	for _, s := range settings {
		key := &yaml.Node{Kind: yaml.ScalarNode, Value: s.name, HeadComment: s.comment()}
		val := &yaml.Node{}
		if err := val.Encode(s.value); err != nil {
			return nil, err
		}
		if s.global {
			doc.Content = append(doc.Content, key, val)
		} else {
			section.Content = append(section.Content, key, val)
		}
	}
	if len(section.Content) > 0 {
		doc.Content = append(doc.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: command}, section)
	}
	return yaml.Marshal(doc)
}

// renderTOML writes one quoted top-level key per flag. kong-toml falls back
// to the bare flag name and rejects keys that name no flag, so command tables
// are not used.
func renderTOML(settings []setting) ([]byte, error) {
	tree, err := toml.TreeFromMap(map[string]any{})
	if err != nil {
		return nil, err
	}
	for _, s := range settings {
		tree.SetPathWithComment([]string{s.name}, s.comment(), false, s.value)
	}
	out, err := tree.ToTomlString()
	return []byte(out), err
}
