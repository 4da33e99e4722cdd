package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nekodylan/OVL-MD/internal/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Aliases: []string{"v"},
		Short:   "Print build version",
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ovlbot version: %s\n", version.String())
		},
	}
}
