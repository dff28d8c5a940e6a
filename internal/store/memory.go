// ABOUTME: In-memory implementation of the Store interface
// ABOUTME: Used for tests and ephemeral deployments where persistence doesn't matter

package store

import (
	"context"
	"sync"
)

// MemoryStore implements the Store interface with in-process maps.
// Nothing survives a restart.
type MemoryStore struct {
	mu            sync.RWMutex
	credentials   map[string]string
	mappings      map[string]string
	installations map[string]*Installation
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		credentials:   make(map[string]string),
		mappings:      make(map[string]string),
		installations: make(map[string]*Installation),
	}
}

// SetToken stores or replaces the Potpie API key for a workspace
func (s *MemoryStore) SetToken(ctx context.Context, teamID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials[teamID] = token
	return nil
}

// GetToken returns the Potpie API key for a workspace.
// Returns ErrNotFound if the workspace never authenticated.
func (s *MemoryStore) GetToken(ctx context.Context, teamID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.credentials[teamID]
	if !ok {
		return "", ErrNotFound
	}
	return token, nil
}

// SetMapping stores or replaces the conversation bound to a thread
func (s *MemoryStore) SetMapping(ctx context.Context, threadTS, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mappings[threadTS] = conversationID
	return nil
}

// GetMapping returns the conversation ID bound to a thread.
// Returns ErrNotFound if the thread has no conversation.
func (s *MemoryStore) GetMapping(ctx context.Context, threadTS string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conversationID, ok := s.mappings[threadTS]
	if !ok {
		return "", ErrNotFound
	}
	return conversationID, nil
}

// SetInstallation stores or replaces a workspace installation
func (s *MemoryStore) SetInstallation(ctx context.Context, inst *Installation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *inst
	s.installations[inst.TeamID] = &cp
	return nil
}

// GetInstallation returns the installation for a workspace.
// Returns ErrNotFound if the app was never installed there.
func (s *MemoryStore) GetInstallation(ctx context.Context, teamID string) (*Installation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.installations[teamID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *inst
	return &cp, nil
}

// Close is a no-op for the memory store
func (s *MemoryStore) Close() error {
	return nil
}

// Ensure MemoryStore implements the Store interface
var _ Store = (*MemoryStore)(nil)
