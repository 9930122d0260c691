package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/mailtriage/internal/ai"
)

func embedCmd(flags *rootFlags) *cobra.Command {
	var modelName string

	cmd := &cobra.Command{
		Use:   "embed <email id>",
		Short: "Print the embedding vector of a stored email's summary or body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			e, err := a.store.GetEmail(ctx, args[0])
			if err != nil {
				return err
			}

			text := e.Body
			if e.Summary != nil {
				text = *e.Summary
			}
			if text == "" {
				return fmt.Errorf("email %s has no text to embed", e.ID)
			}

			vec, err := a.aiClient().Embed(ctx, text, ai.CallOptions{Model: modelName})
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(vec)
		},
	}

	cmd.Flags().StringVar(&modelName, "model", "", "embedding model (default: configured model)")
	return cmd
}
