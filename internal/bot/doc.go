// Package bot is the Slack-facing surface: signed request verification,
// Events API callbacks, slash commands, modal submissions, and the OAuth
// v2 install flow.
//
// Every inbound handler verifies the request signature before reading
// anything else from it, then acknowledges within Slack's deadline.
// Work that can outlive the deadline is either already detached inside
// the dispatch pipeline or, for conversation-start submissions, handed
// to a goroutine after the acknowledgement.
//
// Event callbacks are deduplicated by event ID because Slack redelivers
// on slow or lost acknowledgements. A duplicate is acknowledged and
// dropped before any side effect runs.
//
// Web API clients are resolved per workspace. A pinned bot token serves
// single-workspace deployments; otherwise the token comes from the
// recorded OAuth installation for the event's team.
package bot
