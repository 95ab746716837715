package server

import "time"

// ServerConfig represents the serve subcommand configuration.
type ServerConfig struct {
	Addr              string        `help:"Event server listen address" default:"127.0.0.1:3250" env:"BTKEYBOARD_SERVE_ADDR"`
	ConnectionTimeout time.Duration `help:"Close connections idle for this long; 0 disables" default:"5m" env:"BTKEYBOARD_SERVE_CONNECTION_TIMEOUT"`
	Password          string        `help:"Handshake password; read from (or generated into) the key file when empty" env:"BTKEYBOARD_SERVE_PASSWORD"`
	KeyFile           string        `help:"Key file holding the handshake password (default: btkeyboard.key.txt in the config dir)" type:"path" env:"BTKEYBOARD_SERVE_KEY_FILE"`
	RequireAuth       bool          `help:"Require the handshake from loopback peers too; remote peers always need it" env:"BTKEYBOARD_SERVE_REQUIRE_AUTH"`
}
