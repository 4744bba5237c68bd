package cli

import (
	"net/url"

	"github.com/spf13/cobra"
)

func newConnectionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connections",
		Short: "List connections on a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result ConnectionList

			if err := client.Get("/api/v1/connections", &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}
}

func newPlayersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "players [id]",
		Short: "List player records, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cfg.Output, cmd.OutOrStdout())

			if len(args) == 1 {
				var result Player
				if err := client.Get("/api/v1/players/"+url.PathEscape(args[0]), &result); err != nil {
					return err
				}
				out.Print(result)
				return nil
			}

			var result PlayerList
			if err := client.Get("/api/v1/players", &result); err != nil {
				return err
			}
			out.Print(result)
			return nil
		},
	}
}
