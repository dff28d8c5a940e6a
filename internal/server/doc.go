// Package server orchestrates the potpie-slack server components.
//
// # Overview
//
// The server package is the central coordinator. It owns the persistence
// store, the Potpie API client, the dispatch core, and the Slack-facing
// bot, and serves them behind a single HTTP listener.
//
// # HTTP Routes
//
//   - POST /slack/events - Slack Events API callbacks (mentions, App Home)
//   - POST /slack/commands - Slash commands (/authenticate, /potpie)
//   - POST /slack/interactive - Modal submissions
//   - GET /slack/install - OAuth v2 install redirect
//   - GET /slack/oauth_redirect - OAuth v2 callback
//   - GET /health - Liveness check
//   - GET /health/ready - Readiness check (store answering)
//
// # Listeners
//
// By default the server listens on the configured TCP address. With
// tailscale.enabled it joins the tailnet as its own node and serves on
// a Funnel HTTPS endpoint instead, which gives Slack a publicly
// reachable URL without a reverse proxy or certificate handling.
//
// # Lifecycle
//
// Start the server:
//
//	srv, err := server.New(cfg, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	go srv.Run(ctx)
//
// Graceful shutdown:
//
//	cancel()
//
// Run performs its own bounded-timeout shutdown when the context is
// canceled, stopping the listener, the tsnet node, and the store.
package server
