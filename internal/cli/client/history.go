package client

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// ChatStore keeps conversation history in a local SQLite database so chat
// sessions survive restarts. The store lives next to the global config.
type ChatStore struct {
	db *sql.DB
}

// Conversation is one stored chat session.
type Conversation struct {
	ID        int64
	Title     string
	CreatedAt time.Time
}

// StoredTurn is one stored exchange half within a conversation.
type StoredTurn struct {
	Role    string
	Content string
}

// OpenChatStore opens (and if needed creates) the chat history database.
// An empty dataDir defaults to the mmrag config directory.
func OpenChatStore(dataDir string) (*ChatStore, error) {
	if dataDir == "" {
		configDir, err := GetConfigDir()
		if err != nil {
			return nil, err
		}
		dataDir = configDir
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "chat.db")

	// WAL keeps concurrent readers cheap; the busy timeout covers the rare
	// second process touching the same file.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open chat database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &ChatStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *ChatStore) migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS conversations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS turns (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id INTEGER NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_turns_conversation ON turns(conversation_id, id);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create chat schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *ChatStore) Close() error {
	return s.db.Close()
}

// CreateConversation starts a new conversation and returns its ID.
func (s *ChatStore) CreateConversation(title string) (int64, error) {
	res, err := s.db.Exec("INSERT INTO conversations (title) VALUES (?)", title)
	if err != nil {
		return 0, fmt.Errorf("failed to create conversation: %w", err)
	}
	return res.LastInsertId()
}

// RenameConversation sets the conversation title.
func (s *ChatStore) RenameConversation(id int64, title string) error {
	_, err := s.db.Exec("UPDATE conversations SET title = ? WHERE id = ?", title, id)
	if err != nil {
		return fmt.Errorf("failed to rename conversation: %w", err)
	}
	return nil
}

// GetConversation loads one conversation by ID.
func (s *ChatStore) GetConversation(id int64) (*Conversation, error) {
	var conv Conversation
	err := s.db.QueryRow(
		"SELECT id, title, created_at FROM conversations WHERE id = ?", id,
	).Scan(&conv.ID, &conv.Title, &conv.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("conversation %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	return &conv, nil
}

// ListConversations returns up to limit conversations, newest first.
func (s *ChatStore) ListConversations(limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		"SELECT id, title, created_at FROM conversations ORDER BY id DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		var conv Conversation
		if err := rows.Scan(&conv.ID, &conv.Title, &conv.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}

// AppendTurn records one exchange half inside a conversation.
func (s *ChatStore) AppendTurn(conversationID int64, role, content string) error {
	_, err := s.db.Exec(
		"INSERT INTO turns (conversation_id, role, content) VALUES (?, ?, ?)",
		conversationID, role, content,
	)
	if err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return nil
}

// Turns returns the full transcript of a conversation in order.
func (s *ChatStore) Turns(conversationID int64) ([]StoredTurn, error) {
	rows, err := s.db.Query(
		"SELECT role, content FROM turns WHERE conversation_id = ? ORDER BY id ASC",
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load turns: %w", err)
	}
	defer rows.Close()

	var turns []StoredTurn
	for rows.Next() {
		var turn StoredTurn
		if err := rows.Scan(&turn.Role, &turn.Content); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

// RecentTurns returns the last n turns of a conversation in order. The
// server applies its own history window; this just bounds the payload.
func (s *ChatStore) RecentTurns(conversationID int64, n int) ([]StoredTurn, error) {
	turns, err := s.Turns(conversationID)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return turns, nil
}
