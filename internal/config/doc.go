// Package config handles configuration loading for potpie-slack.
//
// # Overview
//
// Configuration is loaded from a YAML file with environment variable
// expansion. The package validates required fields and fills defaults
// for the Potpie endpoint, the store backend, and logging.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	slack:
//	  signing_secret: "${SLACK_SIGNING_SECRET}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
//
// # Configuration Sections
//
// Server:
//
//	server:
//	  http_addr: "0.0.0.0:8010"
//	  public_url: "https://bot.example.com"
//
// Slack app credentials (pin bot_token for single-workspace deployments,
// or provide client_id/client_secret/state_secret for OAuth installs):
//
//	slack:
//	  client_id: "${SLACK_CLIENT_ID}"
//	  client_secret: "${SLACK_CLIENT_SECRET}"
//	  signing_secret: "${SLACK_SIGNING_SECRET}"
//	  state_secret: "${SLACK_STATE_SECRET}"
//	  bot_token: ""
//
// Potpie API:
//
//	potpie:
//	  base_url: "http://localhost:8001"
//	  send_timeout: "120s"
//
// Persistence (memory, file, or sqlite):
//
//	store:
//	  backend: "file"
//	  path: "/var/lib/potpie-slack"
//	  db_path: "/var/lib/potpie-slack/potpie-slack.db"
//
// Tailscale (optional public HTTPS via Funnel):
//
//	tailscale:
//	  enabled: false
//	  hostname: "potpie-slack"
//	  auth_key: "${TS_AUTHKEY}"
//
// Logging:
//
//	logging:
//	  level: "info"  # debug, info, warn, error
//	  format: "text" # text, json
package config
