package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nekodylan/OVL-MD/internal/commands"
	"github.com/nekodylan/OVL-MD/internal/registry"
)

func NewCommandsCommand() *cobra.Command {
	var dir string
	var category string

	cmd := &cobra.Command{
		Use:   "commands",
		Short: "List the commands the bot would register",
		Args:  cobra.NoArgs,
		Example: `  ovlbot commands
  ovlbot commands --dir ./manifests --category Groupe`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg := registry.New(zap.NewNop())
			set := commands.New(commands.Deps{Registry: reg})
			loader := &registry.Loader{Registry: reg, Catalog: set.Catalog()}
			if _, err := commands.Load(loader, dir); err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tCATEGORY\tALIASES\tPREMIUM\tSOURCE")
			for _, d := range reg.List() {
				cat := registry.CategoryOf(d)
				if category != "" && !strings.EqualFold(cat, category) {
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", d.Name, cat, strings.Join(d.Aliases, ","), d.PremiumOnly, d.Source)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Extra manifest directory to load")
	cmd.Flags().StringVar(&category, "category", "", "Only list this category")

	return cmd
}
