// Package config declares the root command line of btkeyboard.
package config

import (
	"github.com/Alia5/btkeyboard/internal/cmd"
	"github.com/Alia5/btkeyboard/internal/log"
)

// CLI is the kong root. Every field can also be set from a JSON, YAML or TOML
// config file or from BTKEYBOARD_* environment variables.
type CLI struct {
	Config string     `help:"Path to a config file (.json, .yaml or .toml)" env:"BTKEYBOARD_CONFIG" type:"path"`
	Log    log.Config `embed:"" prefix:"log."`

	Type      cmd.Type          `cmd:"" help:"Type text (or piped stdin)"`
	Send      cmd.Send          `cmd:"" help:"Send event lines (char, key, mod, chord, text)"`
	Serve     cmd.Serve         `cmd:"" help:"Run the TCP event server"`
	Term      cmd.Term          `cmd:"" help:"Use this terminal as a keyboard"`
	Keys      cmd.Keys          `cmd:"" help:"Print the scan code tables"`
	Install   cmd.Install       `cmd:"" help:"Install the event server as a systemd service"`
	Uninstall cmd.Uninstall     `cmd:"" help:"Remove the systemd service"`
	ConfigCmd cmd.ConfigCommand `cmd:"" name:"config" help:"Configuration helpers"`
}
