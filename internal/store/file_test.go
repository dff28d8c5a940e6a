// ABOUTME: Tests for the file-backed store implementation
// ABOUTME: Covers document layout, durability across reopen, and corrupt document handling

package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestNewFileStore_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data", "potpie")

	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	defer store.Close()

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("store directory was not created: %v", err)
	}
	if !info.IsDir() {
		t.Errorf("%s is not a directory", dir)
	}
}

func TestFileStore_DocumentLayout(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	defer store.Close()

	if err := store.SetToken(ctx, "T0001", "sk-potpie-abc"); err != nil {
		t.Fatalf("SetToken failed: %v", err)
	}
	if err := store.SetMapping(ctx, "1724567890.123456", "conv-abc"); err != nil {
		t.Fatalf("SetMapping failed: %v", err)
	}

	// Each logical store is a flat string map in its own document
	creds := readStringDoc(t, filepath.Join(dir, "credentials.json"))
	if creds["T0001"] != "sk-potpie-abc" {
		t.Errorf("credentials.json[T0001] = %q, want %q", creds["T0001"], "sk-potpie-abc")
	}

	mappings := readStringDoc(t, filepath.Join(dir, "conversation_mappings.json"))
	if mappings["1724567890.123456"] != "conv-abc" {
		t.Errorf("conversation_mappings.json[1724567890.123456] = %q, want %q",
			mappings["1724567890.123456"], "conv-abc")
	}
}

func TestFileStore_ReopenPreservesData(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	if err := store.SetToken(ctx, "T0001", "sk-potpie-abc"); err != nil {
		t.Fatalf("SetToken failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("reopening store failed: %v", err)
	}
	defer reopened.Close()

	token, err := reopened.GetToken(ctx, "T0001")
	if err != nil {
		t.Fatalf("GetToken after reopen failed: %v", err)
	}
	if token != "sk-potpie-abc" {
		t.Errorf("token = %q, want %q", token, "sk-potpie-abc")
	}
}

func TestFileStore_CorruptDocument(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	defer store.Close()

	if err := os.WriteFile(filepath.Join(dir, "credentials.json"), []byte("not json"), 0644); err != nil {
		t.Fatalf("writing corrupt document failed: %v", err)
	}

	if _, err := store.GetToken(ctx, "T0001"); err == nil {
		t.Error("GetToken succeeded on corrupt document, want error")
	}
	if err := store.SetToken(ctx, "T0001", "sk-potpie-abc"); err == nil {
		t.Error("SetToken succeeded on corrupt document, want error")
	}
}

func readStringDoc(t *testing.T, path string) map[string]string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s failed: %v", path, err)
	}

	doc := make(map[string]string)
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("parsing %s failed: %v", path, err)
	}
	return doc
}
