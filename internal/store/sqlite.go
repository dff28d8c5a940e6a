// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides credential/mapping/installation persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS credentials (
			team_id TEXT PRIMARY KEY,
			token TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS conversation_mappings (
			thread_ts TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS installations (
			team_id TEXT PRIMARY KEY,
			team_name TEXT NOT NULL,
			bot_token TEXT NOT NULL,
			bot_user_id TEXT NOT NULL,
			scopes TEXT NOT NULL,
			installed_at DATETIME NOT NULL
		);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}

	return nil
}

// SetToken stores or replaces the Potpie API key for a workspace
func (s *SQLiteStore) SetToken(ctx context.Context, teamID, token string) error {
	query := `
		INSERT OR REPLACE INTO credentials (team_id, token, updated_at)
		VALUES (?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		teamID,
		token,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting credential: %w", err)
	}

	s.logger.Debug("stored credential", "team_id", teamID)
	return nil
}

// GetToken returns the Potpie API key for a workspace.
// Returns ErrNotFound if the workspace never authenticated.
func (s *SQLiteStore) GetToken(ctx context.Context, teamID string) (string, error) {
	query := `SELECT token FROM credentials WHERE team_id = ?`

	var token string
	err := s.db.QueryRowContext(ctx, query, teamID).Scan(&token)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying credential: %w", err)
	}

	return token, nil
}

// SetMapping stores or replaces the conversation bound to a thread
func (s *SQLiteStore) SetMapping(ctx context.Context, threadTS, conversationID string) error {
	query := `
		INSERT OR REPLACE INTO conversation_mappings (thread_ts, conversation_id, updated_at)
		VALUES (?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		threadTS,
		conversationID,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting conversation mapping: %w", err)
	}

	s.logger.Debug("stored conversation mapping", "thread_ts", threadTS, "conversation_id", conversationID)
	return nil
}

// GetMapping returns the conversation ID bound to a thread.
// Returns ErrNotFound if the thread has no conversation.
func (s *SQLiteStore) GetMapping(ctx context.Context, threadTS string) (string, error) {
	query := `SELECT conversation_id FROM conversation_mappings WHERE thread_ts = ?`

	var conversationID string
	err := s.db.QueryRowContext(ctx, query, threadTS).Scan(&conversationID)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying conversation mapping: %w", err)
	}

	return conversationID, nil
}

// SetInstallation stores or replaces a workspace installation
func (s *SQLiteStore) SetInstallation(ctx context.Context, inst *Installation) error {
	if inst.InstalledAt.IsZero() {
		inst.InstalledAt = time.Now().UTC()
	}

	query := `
		INSERT OR REPLACE INTO installations (team_id, team_name, bot_token, bot_user_id, scopes, installed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		inst.TeamID,
		inst.TeamName,
		inst.BotToken,
		inst.BotUserID,
		inst.Scopes,
		inst.InstalledAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting installation: %w", err)
	}

	s.logger.Debug("stored installation", "team_id", inst.TeamID, "team_name", inst.TeamName)
	return nil
}

// GetInstallation returns the installation for a workspace.
// Returns ErrNotFound if the app was never installed there.
func (s *SQLiteStore) GetInstallation(ctx context.Context, teamID string) (*Installation, error) {
	query := `
		SELECT team_id, team_name, bot_token, bot_user_id, scopes, installed_at
		FROM installations
		WHERE team_id = ?
	`

	var inst Installation
	var installedAt string

	err := s.db.QueryRowContext(ctx, query, teamID).Scan(
		&inst.TeamID,
		&inst.TeamName,
		&inst.BotToken,
		&inst.BotUserID,
		&inst.Scopes,
		&installedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying installation: %w", err)
	}

	if parsed, err := time.Parse(time.RFC3339, installedAt); err != nil {
		s.logger.Warn("failed to parse installation installed_at", "team_id", inst.TeamID, "error", err)
	} else {
		inst.InstalledAt = parsed
	}

	return &inst, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ensure SQLiteStore implements the Store interface
var _ Store = (*SQLiteStore)(nil)
