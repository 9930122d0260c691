package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/nhle/mailtriage/internal/tools"
)

func toolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Print the JSON schema of every registered tool",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := tools.NewDefaultRegistry()
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(registry)
		},
	}
}
