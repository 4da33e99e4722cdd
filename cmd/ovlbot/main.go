package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/nekodylan/OVL-MD/internal/version"
)

func NewOvlbotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ovlbot",
		Short:         "OVL-MD WhatsApp group bot " + version.Version,
		Example:       "ovlbot serve",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.AddCommand(
		NewServeCommand(),
		NewMigrateCommand(),
		NewCommandsCommand(),
		NewVersionCommand(),
	)

	return cmd
}

func main() {
	cmd := NewOvlbotCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
