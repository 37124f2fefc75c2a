// Package store persists civic assistant chat history in SQLite. Each chat
// session has its own thread, replayed into the prompt on later turns.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/54b3r/civic-go/internal/prompt"
)

// Role identifies the author of a stored message.
type Role string

const (
	// RoleUser is a message typed by the resident.
	RoleUser Role = "user"
	// RoleAssistant is a reply produced by the assistant.
	RoleAssistant Role = "assistant"
)

// Message is a single persisted chat message.
type Message struct {
	Role      Role
	Content   string
	CreatedAt time.Time
}

// ConversationStore persists and retrieves chat history keyed by session id.
// Implementations must be safe for concurrent use.
type ConversationStore interface {
	// Append persists a single message for the session.
	Append(ctx context.Context, session string, role Role, content string) error
	// Recent returns up to n of the newest messages, oldest first.
	Recent(ctx context.Context, session string, n int) ([]Message, error)
	// Clear removes every message for the session.
	Clear(ctx context.Context, session string) error
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a ConversationStore backed by a local SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// DefaultDBPath resolves ~/.civic/history.db, creating the directory.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".civic")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open opens (or creates) a SQLiteStore at path. Use ":memory:" in tests.
func Open(path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// One connection: writes serialise and ":memory:" stays a single database.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS chat_messages (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    session    TEXT    NOT NULL,
    role       TEXT    NOT NULL CHECK(role IN ('user','assistant')),
    content    TEXT    NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_messages_session
    ON chat_messages (session, id);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Append persists a single message for the session.
func (s *SQLiteStore) Append(ctx context.Context, session string, role Role, content string) error {
	const q = `INSERT INTO chat_messages (session, role, content, created_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, session, string(role), content, s.now().Unix()); err != nil {
		return fmt.Errorf("store: append: %w", err)
	}
	return nil
}

// Recent returns the newest n messages for the session, oldest first.
// Insertion order wins over timestamps, which only have second precision.
func (s *SQLiteStore) Recent(ctx context.Context, session string, n int) ([]Message, error) {
	if n <= 0 {
		return nil, nil
	}
	const q = `
SELECT role, content, created_at FROM (
    SELECT id, role, content, created_at
    FROM   chat_messages
    WHERE  session = ?
    ORDER  BY id DESC
    LIMIT  ?
) ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, q, session, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var (
			m    Message
			ts   int64
			role string
		)
		if err := rows.Scan(&role, &m.Content, &ts); err != nil {
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		m.Role = Role(role)
		m.CreatedAt = time.Unix(ts, 0)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent rows: %w", err)
	}
	return msgs, nil
}

// Clear removes every message for the session.
func (s *SQLiteStore) Clear(ctx context.Context, session string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE session = ?`, session); err != nil {
		return fmt.Errorf("store: clear: %w", err)
	}
	return nil
}

// Ping checks that the history database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}

// Turns pairs stored messages into prompt turns. A user message without a
// following reply becomes a turn with an empty answer; a reply without a
// preceding question is dropped.
func Turns(msgs []Message) []prompt.Turn {
	var turns []prompt.Turn
	for i := 0; i < len(msgs); i++ {
		if msgs[i].Role != RoleUser {
			continue
		}
		t := prompt.Turn{User: msgs[i].Content}
		if i+1 < len(msgs) && msgs[i+1].Role == RoleAssistant {
			t.Assistant = msgs[i+1].Content
			i++
		}
		turns = append(turns, t)
	}
	return turns
}
