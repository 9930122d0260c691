package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS accounts (
	id         TEXT PRIMARY KEY,
	owner_id   TEXT NOT NULL,
	address    TEXT NOT NULL,
	imap_host  TEXT NOT NULL,
	imap_port  INTEGER NOT NULL DEFAULT 993,
	smtp_host  TEXT NOT NULL DEFAULT '',
	smtp_port  INTEGER NOT NULL DEFAULT 587,
	mailbox    TEXT NOT NULL DEFAULT 'INBOX',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(owner_id, address)
);

CREATE TABLE IF NOT EXISTS emails (
	id              TEXT PRIMARY KEY,
	account_id      TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	uid             TEXT NOT NULL,
	subject         TEXT NOT NULL DEFAULT '',
	from_name       TEXT,
	from_address    TEXT,
	to_name         TEXT,
	to_address      TEXT,
	received_at     DATETIME,
	body            TEXT NOT NULL DEFAULT '',
	headers         TEXT NOT NULL DEFAULT '{}',
	summary         TEXT,
	category        TEXT CHECK(category IS NULL OR category IN (
		'interview', 'rejection', 'offer', 'follow_up', 'newsletter', 'spam', 'other'
	)),
	priority        INTEGER NOT NULL DEFAULT 0,
	needs_reply     INTEGER NOT NULL DEFAULT 0 CHECK(needs_reply IN (0, 1)),
	suggested_reply TEXT,
	status          TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending', 'processed', 'error')),
	processed_at    DATETIME,
	error_message   TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(account_id, uid)
);

CREATE INDEX IF NOT EXISTS idx_emails_status ON emails(status);
CREATE INDEX IF NOT EXISTS idx_emails_priority ON emails(priority);
CREATE INDEX IF NOT EXISTS idx_emails_needs_reply ON emails(needs_reply);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS follow_ups (
	id            TEXT PRIMARY KEY,
	email_id      TEXT NOT NULL REFERENCES emails(id) ON DELETE CASCADE,
	content       TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'draft' CHECK(status IN ('draft', 'sent', 'error')),
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	sent_at       DATETIME,
	error_message TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_follow_ups_email_id ON follow_ups(email_id);
CREATE INDEX IF NOT EXISTS idx_emails_received_at ON emails(account_id, received_at);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
