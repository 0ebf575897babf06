package sqlite

import (
	"database/sql"
	"fmt"
)

// Schema creates the tables the chat core reads and writes.
// The unique index on (listing_id, buyer_id, seller_id) is what deduplicates
// concurrent conversation creation.
const Schema = `
CREATE TABLE IF NOT EXISTS profiles (
	id         TEXT PRIMARY KEY,
	full_name  TEXT NOT NULL DEFAULT '',
	avatar_url TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS listings (
	id        TEXT PRIMARY KEY,
	title     TEXT NOT NULL DEFAULT '',
	seller_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS conversations (
	id                   TEXT PRIMARY KEY,
	listing_id           TEXT NOT NULL,
	buyer_id             TEXT NOT NULL,
	seller_id            TEXT NOT NULL,
	last_message_preview TEXT,
	created_at           DATETIME NOT NULL,
	updated_at           DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_triple
	ON conversations(listing_id, buyer_id, seller_id);
CREATE INDEX IF NOT EXISTS idx_conversations_buyer ON conversations(buyer_id, updated_at DESC);
CREATE INDEX IF NOT EXISTS idx_conversations_seller ON conversations(seller_id, updated_at DESC);

CREATE TABLE IF NOT EXISTS messages (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id TEXT NOT NULL,
	sender_id       TEXT NOT NULL,
	content         TEXT NOT NULL,
	kind            TEXT NOT NULL DEFAULT 'text',
	client_ref      TEXT,
	created_at      DATETIME NOT NULL,
	FOREIGN KEY (conversation_id) REFERENCES conversations(id)
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at DESC);
`

// Migrate applies Schema to db. It is safe to run on every start.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
