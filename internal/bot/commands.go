// ABOUTME: Slash command endpoint for /authenticate and /potpie
// ABOUTME: Gated failures answer the command itself with an ephemeral text

package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/slack-go/slack"

	"github.com/2389/potpie-slack/internal/dispatch"
	"github.com/2389/potpie-slack/internal/potpie"
)

// HandleCommands handles POST /slack/commands requests.
func (b *Bot) HandleCommands(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := b.readAndVerify(r)
	if err != nil {
		b.logger.Warn("rejecting command request", "error", err)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	// SlashCommandParse consumes the form body the verifier just drained.
	r.Body = io.NopCloser(bytes.NewReader(body))

	cmd, err := slack.SlashCommandParse(r)
	if err != nil {
		b.logger.Error("parsing slash command failed", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	switch cmd.Command {
	case "/authenticate":
		b.commandAuthenticate(r.Context(), w, cmd)
	case "/potpie":
		b.commandPotpie(r.Context(), w, cmd)
	default:
		b.logger.Warn("unknown command", "command", cmd.Command)
		w.WriteHeader(http.StatusOK)
	}
}

// commandAuthenticate opens the API token modal. The channel rides along
// in the modal's private metadata so the confirmation lands where the
// command was issued.
func (b *Bot) commandAuthenticate(ctx context.Context, w http.ResponseWriter, cmd slack.SlashCommand) {
	api, err := b.client(ctx, cmd.TeamID)
	if err != nil {
		b.logger.Error("no workspace client", "team_id", cmd.TeamID, "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	if _, err := api.OpenViewContext(ctx, cmd.TriggerID, authModal(cmd.ChannelID)); err != nil {
		b.logger.Error("opening authentication modal failed", "error", err)
	}
	w.WriteHeader(http.StatusOK)
}

// commandPotpie gates on the stored credential, pulls the tenant's
// projects and agents, and opens the conversation modal. Only projects
// the remote service reports as ready are offered.
func (b *Bot) commandPotpie(ctx context.Context, w http.ResponseWriter, cmd slack.SlashCommand) {
	logger := b.logger.With("team_id", cmd.TeamID)

	projects, err := b.dispatcher.ListProjects(ctx, cmd.TeamID)
	if errors.Is(err, dispatch.ErrNotAuthenticated) {
		respondEphemeral(w, msgNotAuthenticated)
		return
	}
	if err != nil {
		logger.Error("listing projects failed", "error", err)
		respondEphemeral(w, msgRetrievalError)
		return
	}

	var ready []potpie.Project
	for _, p := range projects {
		if p.Ready() {
			ready = append(ready, p)
		}
	}

	agents, err := b.dispatcher.ListAgents(ctx, cmd.TeamID)
	if err != nil {
		logger.Error("listing agents failed", "error", err)
		respondEphemeral(w, msgRetrievalError)
		return
	}

	if len(ready) == 0 {
		respondEphemeral(w, msgNoReadyProjects)
		return
	}
	if len(agents) == 0 {
		respondEphemeral(w, msgNoAgents)
		return
	}

	api, err := b.client(ctx, cmd.TeamID)
	if err != nil {
		logger.Error("no workspace client", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}
	if _, err := api.OpenViewContext(ctx, cmd.TriggerID, startModal(cmd.ChannelID, ready, agents)); err != nil {
		logger.Error("opening conversation modal failed", "error", err)
	}
	w.WriteHeader(http.StatusOK)
}

// respondEphemeral answers a slash command with text only the invoking
// user sees.
func respondEphemeral(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"response_type": "ephemeral",
		"text":          text,
	})
}
