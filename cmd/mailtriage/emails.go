package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/mailtriage/internal/model"
	"github.com/nhle/mailtriage/internal/store"
)

func emailsCmd(flags *rootFlags) *cobra.Command {
	var (
		accountRef string
		status     string
		category   string
		needsReply bool
		limit      int
		offset     int
		jsonOut    bool
	)

	cmd := &cobra.Command{
		Use:   "emails",
		Short: "List stored emails",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			filter := store.EmailFilter{Limit: limit, Offset: offset}

			if accountRef != "" {
				account, err := a.resolveAccount(ctx, accountRef)
				if err != nil {
					return err
				}
				filter.AccountID = &account.ID
			}
			if status != "" {
				s := model.Status(status)
				if !s.Valid() {
					return fmt.Errorf("unknown status %q", status)
				}
				filter.Status = &s
			}
			if category != "" {
				c := model.Category(category)
				if !c.Valid() {
					return fmt.Errorf("unknown category %q", category)
				}
				filter.Category = &c
			}
			if cmd.Flags().Changed("needs-reply") {
				filter.NeedsReply = &needsReply
			}

			emails, err := a.store.ListEmails(ctx, filter)
			if err != nil {
				return err
			}
			return printEmails(cmd.OutOrStdout(), emails, jsonOut)
		},
	}

	cmd.Flags().StringVar(&accountRef, "account", "", "account id or address")
	cmd.Flags().StringVar(&status, "status", "", "pending, processed or error")
	cmd.Flags().StringVar(&category, "category", "", "category to filter by")
	cmd.Flags().BoolVar(&needsReply, "needs-reply", false, "only emails that need (or with =false, do not need) a reply")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON")
	return cmd
}
