// ABOUTME: Store interfaces and shared types for workspace persistence
// ABOUTME: Defines credential, mapping, and installation stores plus backend selection

package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Installation records a completed OAuth install for a Slack workspace.
// One record per team; reinstalling the app replaces the previous record.
type Installation struct {
	TeamID      string
	TeamName    string
	BotToken    string
	BotUserID   string
	Scopes      string
	InstalledAt time.Time
}

// CredentialStore persists per-workspace Potpie API keys.
// Setting a token for a team that already has one replaces it.
type CredentialStore interface {
	// SetToken stores or replaces the API key for a workspace
	SetToken(ctx context.Context, teamID, token string) error

	// GetToken returns the API key for a workspace.
	// Returns ErrNotFound if the workspace never authenticated.
	GetToken(ctx context.Context, teamID string) (string, error)
}

// MappingStore persists the thread-to-conversation routing table.
// Each Slack thread maps to at most one Potpie conversation; remapping
// a thread replaces the previous conversation ID.
type MappingStore interface {
	// SetMapping stores or replaces the conversation for a thread
	SetMapping(ctx context.Context, threadTS, conversationID string) error

	// GetMapping returns the conversation ID bound to a thread.
	// Returns ErrNotFound if the thread has no conversation.
	GetMapping(ctx context.Context, threadTS string) (string, error)
}

// InstallationStore persists OAuth installations for multi-workspace mode.
type InstallationStore interface {
	// SetInstallation stores or replaces a workspace installation
	SetInstallation(ctx context.Context, inst *Installation) error

	// GetInstallation returns the installation for a workspace.
	// Returns ErrNotFound if the app was never installed there.
	GetInstallation(ctx context.Context, teamID string) (*Installation, error)
}

// Store combines all persistence interfaces behind a single handle
type Store interface {
	CredentialStore
	MappingStore
	InstallationStore

	// Close releases any resources held by the store
	Close() error
}

// Open creates a store for the configured backend.
// Backend is one of "memory", "file", or "sqlite"; path is the data
// directory for the file backend or the database file for sqlite.
func Open(backend, path string) (Store, error) {
	switch backend {
	case "memory":
		return NewMemoryStore(), nil
	case "file":
		return NewFileStore(path)
	case "sqlite":
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
