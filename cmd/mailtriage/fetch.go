package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nhle/mailtriage/internal/model"
	"github.com/nhle/mailtriage/internal/source"
)

func fetchCmd(flags *rootFlags) *cobra.Command {
	var opts source.FetchOptions
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "fetch <account id|address>",
		Short: "Fetch, enrich and store messages for one account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			account, err := a.resolveAccount(ctx, args[0])
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("max-emails") {
				opts.MaxEmails = a.cfg.Sync.MaxEmails
			}

			emails, err := a.syncer(ctx).FetchAndEnrich(ctx, *account, opts)
			if err != nil {
				return fmt.Errorf("fetching %s: %w", account.Address, err)
			}
			return printEmails(cmd.OutOrStdout(), emails, jsonOut)
		},
	}

	cmd.Flags().StringVar(&opts.FromDate, "from", "", "only messages on or after this date (DD-Mon-YYYY)")
	cmd.Flags().StringVar(&opts.ToDate, "to", "", "only messages before this date (DD-Mon-YYYY)")
	cmd.Flags().IntVar(&opts.MaxEmails, "max-emails", source.DefaultMaxEmails, "maximum messages to fetch")
	cmd.Flags().BoolVar(&opts.MarkAsRead, "mark-as-read", false, "set \\Seen on fetched messages")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON")
	return cmd
}

func printEmails(out io.Writer, emails []model.EnrichedEmail, jsonOut bool) error {
	if jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(emails)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUID\tSTATUS\tCATEGORY\tPRI\tREPLY\tFROM\tSUBJECT")
	for _, e := range emails {
		category := "-"
		if e.Category != nil {
			category = string(*e.Category)
		}
		from := "-"
		if e.From != nil {
			from = e.From.Address
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%t\t%s\t%s\n",
			e.ID, e.UID, e.Status, category, e.Priority, e.NeedsReply, from, e.Subject)
	}
	return w.Flush()
}
