// Package dedupe suppresses duplicate Slack event deliveries using a
// bounded time-based cache keyed by event ID.
package dedupe
