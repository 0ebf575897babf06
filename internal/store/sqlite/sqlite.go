package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/loopmarked/dashboard/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// New opens the database at dbPath and applies the schema.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, Migrate)
}

// NewWithSetup opens the database and runs a setup function.
// Useful for tests to apply a schema on an in-memory database.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// ==== ConversationStore implementation ====

const conversationColumns = `id, listing_id, buyer_id, seller_id, COALESCE(last_message_preview, ''), created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*store.Conversation, error) {
	var c store.Conversation
	if err := row.Scan(
		&c.ID,
		&c.ListingID,
		&c.BuyerID,
		&c.SellerID,
		&c.LastMessagePreview,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateConversation inserts a conversation for the triple.
func (s *SQLiteStore) CreateConversation(ctx context.Context, listingID, buyerID, sellerID string) (*store.Conversation, error) {
	query := `
		INSERT INTO conversations (id, listing_id, buyer_id, seller_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	id := uuid.NewString()
	now := s.now().UTC()
	if _, err := s.db.ExecContext(ctx, query, id, listingID, buyerID, sellerID, now, now); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("insert conversation: %w", store.ErrConflict)
		}
		return nil, fmt.Errorf("insert conversation: %w", err)
	}

	return s.GetConversation(ctx, id)
}

// GetConversation retrieves a conversation by ID.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*store.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = ?`
	c, err := scanConversation(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("conversation %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	return c, nil
}

// FindConversation retrieves the conversation for the triple.
func (s *SQLiteStore) FindConversation(ctx context.Context, listingID, buyerID, sellerID string) (*store.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE listing_id = ? AND buyer_id = ? AND seller_id = ?
	`
	c, err := scanConversation(s.db.QueryRowContext(ctx, query, listingID, buyerID, sellerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("conversation for listing %s: %w", listingID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	return c, nil
}

// ListConversations lists conversations where userID is buyer or seller.
func (s *SQLiteStore) ListConversations(ctx context.Context, userID string) ([]*store.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE buyer_id = ? OR seller_id = ?
		ORDER BY updated_at DESC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	conversations := make([]*store.Conversation, 0)
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conversations = append(conversations, c)
	}

	return conversations, rows.Err()
}

// ==== MessageStore implementation ====

// SaveMessage persists a message and advances its conversation in one transaction.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	msg.CreatedAt = msg.CreatedAt.UTC()
	if msg.Kind == "" {
		msg.Kind = store.MessageKindText
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	// updated_at only moves forward, even for back-dated inserts.
	update := `
		UPDATE conversations
		SET updated_at = CASE WHEN updated_at < ? THEN ? ELSE updated_at END,
		    last_message_preview = ?
		WHERE id = ?
	`
	result, err := tx.ExecContext(ctx, update, msg.CreatedAt, msg.CreatedAt, Preview(msg), msg.ConversationID)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("conversation %s: %w", msg.ConversationID, store.ErrNotFound)
	}

	insert := `
		INSERT INTO messages (conversation_id, sender_id, content, kind, client_ref, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	var clientRef sql.NullString
	if msg.ClientRef != "" {
		clientRef = sql.NullString{String: msg.ClientRef, Valid: true}
	}
	res, err := tx.ExecContext(ctx, insert, msg.ConversationID, msg.SenderID, msg.Content, string(msg.Kind), clientRef, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	msg.ID = id
	return nil
}

// ListMessages returns up to limit messages, oldest first. limit <= 0 means all.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string, limit int) ([]*store.Message, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `
		SELECT id, conversation_id, sender_id, content, kind, COALESCE(client_ref, ''), created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.Message, 0)
	for rows.Next() {
		var msg store.Message
		var kind string
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &kind, &msg.ClientRef, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Kind = store.MessageKind(kind)
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to get chronological order
	for i := range len(messages) / 2 {
		messages[i], messages[len(messages)-1-i] = messages[len(messages)-1-i], messages[i]
	}

	return messages, nil
}

// ==== ProfileStore implementation ====

// GetProfile retrieves a profile by user ID.
func (s *SQLiteStore) GetProfile(ctx context.Context, id string) (*store.Profile, error) {
	query := `SELECT id, full_name, avatar_url FROM profiles WHERE id = ?`
	var p store.Profile
	err := s.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.FullName, &p.AvatarURL)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("profile %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query profile: %w", err)
	}
	return &p, nil
}

// UpsertProfile creates or replaces a profile.
func (s *SQLiteStore) UpsertProfile(ctx context.Context, p *store.Profile) error {
	query := `
		INSERT INTO profiles (id, full_name, avatar_url)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET full_name = excluded.full_name, avatar_url = excluded.avatar_url
	`
	if _, err := s.db.ExecContext(ctx, query, p.ID, p.FullName, p.AvatarURL); err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// ==== ListingStore implementation ====

// GetListing retrieves a listing by ID.
func (s *SQLiteStore) GetListing(ctx context.Context, id string) (*store.Listing, error) {
	query := `SELECT id, title, seller_id FROM listings WHERE id = ?`
	var l store.Listing
	err := s.db.QueryRowContext(ctx, query, id).Scan(&l.ID, &l.Title, &l.SellerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("listing %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query listing: %w", err)
	}
	return &l, nil
}

// UpsertListing creates or replaces a listing.
func (s *SQLiteStore) UpsertListing(ctx context.Context, l *store.Listing) error {
	query := `
		INSERT INTO listings (id, title, seller_id)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title, seller_id = excluded.seller_id
	`
	if _, err := s.db.ExecContext(ctx, query, l.ID, l.Title, l.SellerID); err != nil {
		return fmt.Errorf("upsert listing: %w", err)
	}
	return nil
}
