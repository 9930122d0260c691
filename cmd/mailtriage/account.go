package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nhle/mailtriage/internal/credential"
	"github.com/nhle/mailtriage/internal/model"
)

// secretEnv is read when --secret-stdin is not given.
const secretEnv = "MAILTRIAGE_ACCOUNT_SECRET"

func accountCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage mailbox accounts",
	}
	cmd.AddCommand(accountAddCmd(flags), accountListCmd(flags), accountRemoveCmd(flags))
	return cmd
}

func accountAddCmd(flags *rootFlags) *cobra.Command {
	var account model.MailAccount
	var secretStdin bool

	cmd := &cobra.Command{
		Use:   "add <address>",
		Short: "Register an account and store its secret in the keyring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account.Address = args[0]
			if account.IMAPHost == "" {
				return fmt.Errorf("--imap-host is required")
			}

			secret, err := readSecret(cmd, secretStdin)
			if err != nil {
				return err
			}

			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			if account.OwnerID == "" {
				account.OwnerID = currentUser()
			}
			if err := a.store.CreateAccount(cmd.Context(), &account); err != nil {
				return fmt.Errorf("creating account %s: %w", account.Address, err)
			}
			if err := a.creds.Set(credential.AccountKey(account.ID), secret); err != nil {
				_ = a.store.DeleteAccount(cmd.Context(), account.ID)
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "added account %s (%s)\n", account.Address, account.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&account.OwnerID, "owner", "", "owner id (default: current user)")
	cmd.Flags().StringVar(&account.IMAPHost, "imap-host", "", "IMAP server host")
	cmd.Flags().IntVar(&account.IMAPPort, "imap-port", model.DefaultIMAPPort, "IMAP server port")
	cmd.Flags().StringVar(&account.SMTPHost, "smtp-host", "", "SMTP server host for follow-ups")
	cmd.Flags().IntVar(&account.SMTPPort, "smtp-port", model.DefaultSMTPPort, "SMTP server port")
	cmd.Flags().StringVar(&account.Mailbox, "mailbox", "INBOX", "mailbox to fetch from")
	cmd.Flags().BoolVar(&secretStdin, "secret-stdin", false, "read the secret from the first line of stdin instead of "+secretEnv)
	return cmd
}

func readSecret(cmd *cobra.Command, fromStdin bool) (string, error) {
	if !fromStdin {
		secret := os.Getenv(secretEnv)
		if secret == "" {
			return "", fmt.Errorf("set %s or pass --secret-stdin", secretEnv)
		}
		return secret, nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading secret from stdin: %w", err)
	}
	secret := strings.TrimRight(line, "\r\n")
	if secret == "" {
		return "", fmt.Errorf("empty secret on stdin")
	}
	return secret, nil
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "default"
}

func accountListCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			accounts, err := a.store.ListAccounts(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tADDRESS\tIMAP\tSMTP\tMAILBOX")
			for _, acc := range accounts {
				fmt.Fprintf(w, "%s\t%s\t%s:%d\t%s:%d\t%s\n",
					acc.ID, acc.Address, acc.IMAPHost, acc.IMAPPort, acc.SMTPHost, acc.SMTPPort, acc.Mailbox)
			}
			return w.Flush()
		},
	}
}

func accountRemoveCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id|address>",
		Short: "Remove an account, its stored emails and its secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			account, err := a.resolveAccount(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := a.store.DeleteAccount(cmd.Context(), account.ID); err != nil {
				return err
			}
			if err := a.creds.Delete(credential.AccountKey(account.ID)); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "removed account %s\n", account.Address)
			return nil
		},
	}
}
