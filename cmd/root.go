package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "agenteval",
		Short:         "Compare coding-agent outputs with cross-family LLM judges",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "agenteval.yaml", "config file path")
	root.AddCommand(newRunCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newRescoreCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newWatchCmd())
	return root
}
