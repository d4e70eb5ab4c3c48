package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"marknote/internal/client"
	"marknote/internal/config"

	"github.com/spf13/cobra"
)

const sessionRequestTimeout = 10 * time.Second

// newSessionCommand drives the watch of a running server.
func newSessionCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "session",
		Short: "Control the directory watch of a running server",
	}
	command.AddCommand(&cobra.Command{
		Use:   "start <directory>",
		Short: "Watch a directory, replacing the current watch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			return client.StartWatch(sessionClient(), serverURL(cfg), cfg.AuthToken, args[0])
		},
	})
	command.AddCommand(&cobra.Command{
		Use:   "stop",
		Short: "Stop watching",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			return client.StopWatch(sessionClient(), serverURL(cfg), cfg.AuthToken)
		},
	})
	command.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the current watch as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			status, err := client.FetchWatchStatus(sessionClient(), serverURL(cfg), cfg.AuthToken)
			if err != nil {
				return err
			}
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(status)
		},
	})
	return command
}

func sessionClient() *http.Client {
	return &http.Client{Timeout: sessionRequestTimeout}
}

// serverURL turns the listen address into a base URL, mapping wildcard
// hosts to loopback.
func serverURL(cfg config.Config) string {
	listen := strings.TrimSpace(cfg.Listen)
	if strings.HasPrefix(listen, "http://") || strings.HasPrefix(listen, "https://") {
		return listen
	}
	if strings.HasPrefix(listen, ":") {
		listen = "127.0.0.1" + listen
	} else if strings.HasPrefix(listen, "0.0.0.0:") {
		listen = "127.0.0.1" + strings.TrimPrefix(listen, "0.0.0.0")
	}
	return fmt.Sprintf("http://%s", listen)
}
