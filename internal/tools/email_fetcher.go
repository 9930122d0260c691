package tools

import "github.com/nhle/mailtriage/internal/source"

// EmailFetcherName is the registry name of the email fetcher tool.
const EmailFetcherName = "email_fetcher"

// EmailFetcherTool declares the configuration and inputs of a fetch pass.
// Defaults match source.FetchConfig and source.FetchOptions.
func EmailFetcherTool() Tool {
	return Tool{
		Name:        EmailFetcherName,
		Description: "Fetch emails from an IMAP mailbox within an optional date range.",
		Config: Schema{
			{Name: "imap_server", Type: TypeString, Description: "IMAP server host", Required: true},
			{Name: "email", Type: TypeString, Description: "Login address", Required: true},
			{Name: "password", Type: TypeString, Description: "Login secret", Required: true},
			{Name: "port", Type: TypeInteger, Description: "IMAP port", Default: source.DefaultPort},
			{Name: "ssl", Type: TypeBoolean, Description: "Use implicit TLS", Default: true},
			{Name: "mailbox", Type: TypeString, Description: "Mailbox to select", Default: source.DefaultMailbox},
		},
		Inputs: Schema{
			{Name: "from_date", Type: TypeString, Description: "Start date, DD-Mon-YYYY"},
			{Name: "to_date", Type: TypeString, Description: "End date (exclusive), DD-Mon-YYYY"},
			{Name: "max_emails", Type: TypeInteger, Description: "Maximum messages to fetch", Default: source.DefaultMaxEmails},
			{Name: "mark_as_read", Type: TypeBoolean, Description: "Set \\Seen on fetched messages", Default: false},
		},
	}
}

// NewDefaultRegistry returns a registry holding the built-in tools.
func NewDefaultRegistry() (*Registry, error) {
	r := NewRegistry()
	if err := r.Register(EmailFetcherTool()); err != nil {
		return nil, err
	}
	return r, nil
}
