// Package store provides persistent storage for workspace state.
//
// # Architecture
//
// The store package uses an interface-driven architecture with specialized
// interfaces composed into a single Store:
//
//   - CredentialStore: Per-workspace Potpie API keys
//   - MappingStore: Slack thread to Potpie conversation routing
//   - InstallationStore: OAuth installations for multi-workspace mode
//
// Three backends implement all interfaces:
//
//   - SQLiteStore: SQLite database, the recommended backend
//   - FileStore: Flat JSON documents under a directory
//   - MemoryStore: In-process maps for tests and ephemeral runs
//
// Open selects a backend by name so callers only handle config strings.
//
// # Semantics
//
// All writes are upserts: setting a token for a team that already has
// one replaces it, and remapping a thread replaces its conversation ID.
// The stores never enumerate their contents; the only read is a point
// lookup that either returns the value or ErrNotFound. Callers treat
// ErrNotFound as a normal state (workspace not yet authenticated, thread
// not yet bound) rather than a failure.
//
// # File Layout
//
// The file backend keeps one JSON document per logical store:
//
//   - credentials.json: team_id -> api key
//   - conversation_mappings.json: thread_ts -> conversation_id
//   - installations.json: team_id -> installation record
//
// Every mutation reads the document, applies the change, and atomically
// replaces the file, so documents stay valid JSON at all times and can
// be inspected or edited by hand while the service is stopped.
//
// # SQLite Configuration
//
// The SQLite backend uses WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// All methods accept context.Context for cancellation support.
package store
