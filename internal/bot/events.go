// ABOUTME: Events API endpoint: URL verification, mention routing, App Home publishing
// ABOUTME: Deduplicates redelivered callbacks before any side effect runs

package bot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/slack-go/slack/slackevents"

	"github.com/2389/potpie-slack/internal/dispatch"
)

// HandleEvents handles POST /slack/events requests. Slack retries
// callbacks it considers unacknowledged, so deliveries are deduplicated
// by event ID before any handler runs. The slow work (the remote call)
// is already detached inside the dispatch pipeline; everything here is
// quick enough to run before the acknowledgement.
func (b *Bot) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := b.readAndVerify(r)
	if err != nil {
		b.logger.Warn("rejecting events request", "error", err)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		b.logger.Error("parsing event failed", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	switch event.Type {
	case slackevents.URLVerification:
		challenge, ok := event.Data.(*slackevents.EventsAPIURLVerificationEvent)
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(challenge.Challenge))

	case slackevents.CallbackEvent:
		if cb, ok := event.Data.(*slackevents.EventsAPICallbackEvent); ok && b.events.Seen(cb.EventID) {
			b.logger.Debug("skipping redelivered event", "event_id", cb.EventID)
			w.WriteHeader(http.StatusOK)
			return
		}
		b.routeCallback(r.Context(), &event)
		w.WriteHeader(http.StatusOK)

	default:
		b.logger.Debug("ignoring event envelope", "type", event.Type)
		w.WriteHeader(http.StatusOK)
	}
}

func (b *Bot) routeCallback(ctx context.Context, event *slackevents.EventsAPIEvent) {
	switch ev := event.InnerEvent.Data.(type) {
	case *slackevents.AppMentionEvent:
		b.handleMention(ctx, event.TeamID, ev)
	case *slackevents.AppHomeOpenedEvent:
		b.handleHomeOpened(ctx, event.TeamID, ev)
	default:
		b.logger.Debug("ignoring event", "type", event.InnerEvent.Type)
	}
}

// handleMention routes a thread mention into the dispatch pipeline, or
// answers with guidance when a gate holds it back. A mention outside a
// thread has no anchor and therefore no mapping, so it gets the same
// guidance as an unmapped thread.
func (b *Bot) handleMention(ctx context.Context, teamID string, ev *slackevents.AppMentionEvent) {
	logger := b.logger.With("team_id", teamID, "channel", ev.Channel)

	api, err := b.client(ctx, teamID)
	if err != nil {
		logger.Error("no workspace client", "error", err)
		return
	}
	chat := &teamChat{api: api}

	_, err = b.dispatcher.ContinueConversation(ctx, chat, dispatch.ContinueRequest{
		TeamID:    teamID,
		ChannelID: ev.Channel,
		ThreadTS:  ev.ThreadTimeStamp,
		MessageTS: ev.TimeStamp,
		Query:     ev.Text,
	})
	switch {
	case errors.Is(err, dispatch.ErrNotAuthenticated):
		b.say(ctx, chat, ev.Channel, msgNotAuthenticated)
	case errors.Is(err, dispatch.ErrNoConversation):
		b.say(ctx, chat, ev.Channel, msgStartConversation)
	case err != nil:
		logger.Error("continuing conversation failed", "error", err)
	}
}

func (b *Bot) handleHomeOpened(ctx context.Context, teamID string, ev *slackevents.AppHomeOpenedEvent) {
	api, err := b.client(ctx, teamID)
	if err != nil {
		b.logger.Error("no workspace client", "team_id", teamID, "error", err)
		return
	}
	if _, err := api.PublishViewContext(ctx, ev.User, homeView(ev.User), ""); err != nil {
		b.logger.Error("publishing home view failed", "user", ev.User, "error", err)
	}
}
