// ABOUTME: Interactivity endpoint handling the two modal submissions
// ABOUTME: Conversation starts are acknowledged first and completed detached

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
)

// HandleInteractive handles POST /slack/interactive requests. Slack
// expects the response within seconds, so the conversation-start
// submission is completed on its own goroutine after the acknowledgement.
func (b *Bot) HandleInteractive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := b.readAndVerify(r)
	if err != nil {
		b.logger.Warn("rejecting interactive request", "error", err)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	// PostFormValue reads the form body the verifier just drained.
	r.Body = io.NopCloser(bytes.NewReader(body))

	var cb slack.InteractionCallback
	if err := json.Unmarshal([]byte(r.PostFormValue("payload")), &cb); err != nil {
		b.logger.Error("parsing interaction payload failed", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if cb.Type != slack.InteractionTypeViewSubmission {
		w.WriteHeader(http.StatusOK)
		return
	}

	switch cb.View.CallbackID {
	case callbackAuthenticate:
		b.submitAuthenticate(r.Context(), cb)
	case callbackStartConversation:
		go b.submitStartConversation(context.Background(), cb)
	default:
		b.logger.Warn("unknown view submission", "callback_id", cb.View.CallbackID)
	}
	w.WriteHeader(http.StatusOK)
}

// submitAuthenticate stores the submitted API token for the workspace
// and confirms in the channel the command came from.
func (b *Bot) submitAuthenticate(ctx context.Context, cb slack.InteractionCallback) {
	teamID := cb.Team.ID
	logger := b.logger.With("team_id", teamID)

	if cb.View.State == nil {
		logger.Error("authentication submission without view state")
		return
	}
	token := cb.View.State.Values[blockAPIToken][actionAPIToken].Value

	if err := b.dispatcher.Authenticate(ctx, teamID, token); err != nil {
		logger.Error("storing credential failed", "error", err)
		return
	}

	api, err := b.client(ctx, teamID)
	if err != nil {
		logger.Error("no workspace client", "error", err)
		return
	}
	b.say(ctx, &teamChat{api: api}, cb.View.PrivateMetadata, msgAuthenticated)
}

// submitStartConversation opens the remote conversation for the chosen
// project/agent pair. Failures surface as an ephemeral message in the
// originating channel; success is carried entirely by the dispatch
// pipeline (header, placeholder, reply).
func (b *Bot) submitStartConversation(ctx context.Context, cb slack.InteractionCallback) {
	teamID := cb.User.TeamID
	logger := b.logger.With("team_id", teamID)

	if cb.View.State == nil {
		logger.Error("conversation submission without view state")
		return
	}
	values := cb.View.State.Values
	project := values[blockSelectRepo][actionSelectRepo].SelectedOption
	agent := values[blockSelectAgent][actionSelectAgent].SelectedOption
	query := values[blockUserQuery][actionUserQuery].Value
	channelID := cb.View.PrivateMetadata

	api, err := b.client(ctx, teamID)
	if err != nil {
		logger.Error("no workspace client", "error", err)
		return
	}

	req := dispatch.StartRequest{
		TeamID:      teamID,
		ChannelID:   channelID,
		ProjectID:   project.Value,
		ProjectName: optionLabel(project),
		AgentID:     agent.Value,
		AgentName:   optionLabel(agent),
		Query:       query,
	}
	if _, err := b.dispatcher.StartConversation(ctx, &teamChat{api: api}, req); err != nil {
		logger.Error("starting conversation failed", "error", err)
		text := msgCreateFailed
		if errors.Is(err, dispatch.ErrNotAuthenticated) {
			text = msgNotAuthenticated
		}
		b.whisper(ctx, api, channelID, cb.User.ID, text)
	}
}

func optionLabel(opt slack.OptionBlockObject) string {
	if opt.Text == nil {
		return ""
	}
	return opt.Text.Text
}
