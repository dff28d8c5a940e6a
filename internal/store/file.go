// ABOUTME: File implementation of the Store interface using flat JSON documents
// ABOUTME: Each logical store is one JSON file rewritten atomically on every mutation

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Document names under the store directory.
const (
	credentialsFile   = "credentials.json"
	mappingsFile      = "conversation_mappings.json"
	installationsFile = "installations.json"
)

// FileStore implements the Store interface using JSON documents on disk.
// Credentials and conversation mappings are flat string-to-string maps;
// installations are keyed objects. Every operation reads the document
// fresh and mutations rewrite it via a temp file and rename, so the data
// survives restarts and stays readable by other tools. A single lock
// serializes all read-modify-write cycles in this process.
type FileStore struct {
	dir    string
	logger *slog.Logger

	mu sync.Mutex
}

// NewFileStore creates a file-backed store rooted at the given directory.
// The directory is created if it doesn't exist.
func NewFileStore(dir string) (*FileStore, error) {
	logger := slog.Default().With("component", "store")

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	s := &FileStore{
		dir:    dir,
		logger: logger,
	}

	logger.Info("file store initialized", "dir", dir)
	return s, nil
}

// SetToken stores or replaces the Potpie API key for a workspace
func (s *FileStore) SetToken(ctx context.Context, teamID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadStringDoc(credentialsFile)
	if err != nil {
		return err
	}
	doc[teamID] = token
	if err := s.saveDoc(credentialsFile, doc); err != nil {
		return err
	}

	s.logger.Debug("stored credential", "team_id", teamID)
	return nil
}

// GetToken returns the Potpie API key for a workspace.
// Returns ErrNotFound if the workspace never authenticated.
func (s *FileStore) GetToken(ctx context.Context, teamID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadStringDoc(credentialsFile)
	if err != nil {
		return "", err
	}
	token, ok := doc[teamID]
	if !ok {
		return "", ErrNotFound
	}
	return token, nil
}

// SetMapping stores or replaces the conversation bound to a thread
func (s *FileStore) SetMapping(ctx context.Context, threadTS, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadStringDoc(mappingsFile)
	if err != nil {
		return err
	}
	doc[threadTS] = conversationID
	if err := s.saveDoc(mappingsFile, doc); err != nil {
		return err
	}

	s.logger.Debug("stored conversation mapping", "thread_ts", threadTS, "conversation_id", conversationID)
	return nil
}

// GetMapping returns the conversation ID bound to a thread.
// Returns ErrNotFound if the thread has no conversation.
func (s *FileStore) GetMapping(ctx context.Context, threadTS string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadStringDoc(mappingsFile)
	if err != nil {
		return "", err
	}
	conversationID, ok := doc[threadTS]
	if !ok {
		return "", ErrNotFound
	}
	return conversationID, nil
}

// SetInstallation stores or replaces a workspace installation
func (s *FileStore) SetInstallation(ctx context.Context, inst *Installation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadInstallationDoc()
	if err != nil {
		return err
	}
	cp := *inst
	doc[inst.TeamID] = &cp
	if err := s.saveDoc(installationsFile, doc); err != nil {
		return err
	}

	s.logger.Debug("stored installation", "team_id", inst.TeamID, "team_name", inst.TeamName)
	return nil
}

// GetInstallation returns the installation for a workspace.
// Returns ErrNotFound if the app was never installed there.
func (s *FileStore) GetInstallation(ctx context.Context, teamID string) (*Installation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadInstallationDoc()
	if err != nil {
		return nil, err
	}
	inst, ok := doc[teamID]
	if !ok {
		return nil, ErrNotFound
	}
	return inst, nil
}

// Close is a no-op for the file store
func (s *FileStore) Close() error {
	return nil
}

// loadStringDoc reads a flat string-to-string document.
// A missing file is treated as an empty document.
func (s *FileStore) loadStringDoc(name string) (map[string]string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if os.IsNotExist(err) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	doc := make(map[string]string)
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	return doc, nil
}

// loadInstallationDoc reads the installations document.
// A missing file is treated as an empty document.
func (s *FileStore) loadInstallationDoc() (map[string]*Installation, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, installationsFile))
	if os.IsNotExist(err) {
		return make(map[string]*Installation), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", installationsFile, err)
	}

	doc := make(map[string]*Installation)
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", installationsFile, err)
	}
	return doc, nil
}

// saveDoc writes a document to a temp file and renames it into place,
// so readers never observe a partially written document.
func (s *FileStore) saveDoc(name string, doc any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing %s: %w", name, err)
	}

	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", name, err)
	}
	return nil
}

// Ensure FileStore implements the Store interface
var _ Store = (*FileStore)(nil)
