// Package dispatch routes user queries from chat threads into remote
// Potpie conversations.
//
// # Model
//
// Every operation begins with gates: the workspace must hold a stored
// API key, and a follow-up's thread must map to a known conversation.
// Gates fail closed. If the store cannot answer, the caller sees
// ErrNotAuthenticated or ErrNoConversation exactly as if the record
// were absent, and the remote gateway is never contacted.
//
// Once gated, delivery is detached. StartConversation and
// ContinueConversation hand the query to a pipeline goroutine and
// return a Handle; the caller's request finishes immediately and its
// context has no hold over the work. The pipeline cannot be cancelled
// and always reaches a terminal state:
//
//	placeholder posted -> remote call -> reply + success reaction
//	                                  -> apology + failure reaction
//
// On success the rendered reply lands in the thread, the originating
// message gets the success reaction, and the placeholder is deleted.
// On any failure the originating message gets the failure reaction and
// the thread gets a generic apology; the raw error goes to the log
// only. The placeholder is removed on both paths, best-effort.
//
// # Concurrency
//
// Dispatches are independent. Two follow-ups in the same thread run
// concurrently with no ordering between their replies; last write wins
// on the underlying stores.
package dispatch
