package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nhle/mailtriage/internal/followup"
	"github.com/nhle/mailtriage/internal/source/email"
)

func followUpCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "followup",
		Aliases: []string{"follow-up"},
		Short:   "Review and send drafted replies",
	}
	cmd.AddCommand(followUpListCmd(flags), followUpSendCmd(flags))
	return cmd
}

func followUpListCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list <email id>",
		Short: "List follow-ups drafted for an email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			followUps, err := a.store.ListFollowUps(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tCREATED\tCONTENT")
			for _, fu := range followUps {
				fmt.Fprintf(w, "%s\t%s\t%s\t%.60q\n", fu.ID, fu.Status, fu.CreatedAt.Format("2006-01-02 15:04"), fu.Content)
			}
			return w.Flush()
		},
	}
}

func followUpSendCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "send <follow-up id>",
		Short: "Send a drafted follow-up to the original sender",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			svc := followup.NewService(a.store, a.creds, email.SMTPSender{}, a.logger)
			fu, err := svc.Send(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "sent follow-up %s at %s\n", fu.ID, fu.SentAt.Format("2006-01-02 15:04:05"))
			return nil
		},
	}
}
