package main

import (
	"github.com/spf13/cobra"
)

const reddwarfTextBanner = "           _     _                      __\n _ __ ___ | | __| |_      ____ _ _ __  / _|\n| '__/ _ \\| |/ _` \\ \\ /\\ / / _` | '__|| |_\n| | |  __/| | (_| |\\ V  V / (_| | |   |  _|\n|_|  \\___||_|\\__,_| \\_/\\_/ \\__,_|_|   |_|\n"

// NewRootCommand builds the reddwarf command tree: an API server
// subcommand and a node-agent subcommand, per spec.md §6's CLI surface.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "reddwarf",
		Short:        "reddwarf is a Kubernetes-compatible control plane for illumos zones.",
		Long:         reddwarfTextBanner + "\nreddwarf is a Kubernetes-compatible control plane for illumos zones.",
		SilenceUsage: true,
	}

	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewAgentCommand())

	return cmd
}
