// Package potpie is a typed client for the Potpie AI-agent API.
// Every operation returns a value or an *Err, never both, so remote
// failures stay regular values instead of exceptional control flow.
package potpie
