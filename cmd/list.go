package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ashstep2/agent-eval-harness/internal/catalog"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tasks, models and weight presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.Default()
			if err != nil {
				return err
			}
			writeList(cmd.OutOrStdout(), cat)
			return nil
		},
	}
}

func writeList(w io.Writer, cat *catalog.Catalog) {
	fmt.Fprintln(w, "Tasks:")
	for _, t := range cat.Tasks() {
		fmt.Fprintf(w, "  - %s: %s [%s, %s]\n", t.ID, t.Title, t.Category, t.Difficulty)
	}
	fmt.Fprintln(w, "\nModels:")
	for _, m := range catalog.Models {
		fmt.Fprintf(w, "  - %s (%s, %s/%s)\n", m.ID, m.DisplayName, m.Provider, m.Type)
	}
	fmt.Fprintln(w, "\nPresets:")
	for _, name := range catalog.PresetNames() {
		weights, err := catalog.Preset(name)
		if err != nil {
			fmt.Fprintf(w, "  - %s (supply --weight dim=value)\n", name)
			continue
		}
		parts := make([]string, 0, len(catalog.Dimensions))
		for _, d := range catalog.Dimensions {
			parts = append(parts, fmt.Sprintf("%s=%.2f", d.Name, weights[d.Name]))
		}
		fmt.Fprintf(w, "  - %s: %s\n", name, strings.Join(parts, " "))
	}
}
