package cmd

import "log/slog"

// Install registers "btkeyboard serve" as a system service.
type Install struct {
	Args []string `arg:"" optional:"" passthrough:"" help:"Extra flags for the serve command, e.g. --sink.kind=hidg"`
}

func (i *Install) Run(logger *slog.Logger) error {
	return install(logger, i.Args)
}

// Uninstall removes the service installed by Install.
type Uninstall struct{}

func (u *Uninstall) Run(logger *slog.Logger) error {
	return uninstall(logger)
}
