package main

import (
	"io"
	"os"

	"marknote/internal/config"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "marknote",
		Short: "Backend for the marknote markdown editor",
		Long: `marknote serves the editor's file operations over HTTP and pushes
directory change notifications to the UI over a websocket.

Running marknote without a subcommand starts the server.`,
		SilenceUsage: true,
		RunE:         runServe,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(newServeCommand())
	root.AddCommand(newWatchCommand())
	root.AddCommand(newSessionCommand())
	root.AddCommand(newVersionCommand())
	return root
}
