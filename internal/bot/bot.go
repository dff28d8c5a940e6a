// ABOUTME: Slack adapter wiring events, commands, and modals to the dispatch core
// ABOUTME: Owns signature verification, workspace client resolution, and user-facing texts

package bot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/2389/potpie-slack/internal/auth"
	"github.com/2389/potpie-slack/internal/config"
	"github.com/2389/potpie-slack/internal/dedupe"
	"github.com/2389/potpie-slack/internal/dispatch"
	"github.com/2389/potpie-slack/internal/potpie"
	"github.com/2389/potpie-slack/internal/store"
)

// Event redeliveries arrive within minutes, so a short window is enough.
const (
	eventCacheTTL  = 5 * time.Minute
	eventCacheSize = 4096
)

// User-facing texts for the gating and authentication flows.
const (
	msgNotAuthenticated  = "You haven't authenticated yet! Set your _token_ using `/authenticate` to start querying."
	msgStartConversation = "Use `/potpie` command to start a conversation."
	msgAuthenticated     = "*You have been Authenticated Successfully!*\n\n• Use `/potpie` command to start a conversation\n"
	msgRetrievalError    = "Error retrieving data! Please try again later."
	msgNoReadyProjects   = "You don't have any ready projects, please parse your repo before starting conversation."
	msgNoAgents          = "No agents available!"
	msgCreateFailed      = "Failed to create conversation. Please try again later."
)

// Dispatcher is the conversation core the bot hands gated work to.
type Dispatcher interface {
	Authenticate(ctx context.Context, teamID, token string) error
	ListProjects(ctx context.Context, teamID string) ([]potpie.Project, error)
	ListAgents(ctx context.Context, teamID string) ([]potpie.Agent, error)
	StartConversation(ctx context.Context, chat dispatch.Chat, req dispatch.StartRequest) (*dispatch.StartResult, error)
	ContinueConversation(ctx context.Context, chat dispatch.Chat, req dispatch.ContinueRequest) (*dispatch.Handle, error)
}

// slackAPI is the slice of the Slack Web API the bot uses. *slack.Client
// implements it; tests substitute a recorder.
type slackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	PostEphemeralContext(ctx context.Context, channelID, userID string, options ...slack.MsgOption) (string, error)
	DeleteMessageContext(ctx context.Context, channel, messageTimestamp string) (string, string, error)
	AddReactionContext(ctx context.Context, name string, item slack.ItemRef) error
	OpenViewContext(ctx context.Context, triggerID string, view slack.ModalViewRequest) (*slack.ViewResponse, error)
	PublishViewContext(ctx context.Context, userID string, view slack.HomeTabViewRequest, hash string) (*slack.ViewResponse, error)
}

// Bot translates Slack's HTTP surfaces into dispatch operations.
type Bot struct {
	signingSecret string
	clientID      string
	clientSecret  string
	botToken      string
	redirectURL   string
	store         store.Store
	dispatcher    Dispatcher
	events        *dedupe.Cache
	states        *auth.StateSigner
	logger        *slog.Logger

	// Seams for tests: minting Web API clients and the OAuth code
	// exchange both talk to slack.com in production.
	newClient func(token string) slackAPI
	exchange  func(ctx context.Context, code string) (*slack.OAuthV2Response, error)
}

// New creates the Slack adapter around the given dispatch core.
func New(cfg *config.Config, st store.Store, d Dispatcher, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}

	redirectURL := ""
	if cfg.Server.PublicURL != "" {
		redirectURL = strings.TrimSuffix(cfg.Server.PublicURL, "/") + "/slack/oauth_redirect"
	}

	b := &Bot{
		signingSecret: cfg.Slack.SigningSecret,
		clientID:      cfg.Slack.ClientID,
		clientSecret:  cfg.Slack.ClientSecret,
		botToken:      cfg.Slack.BotToken,
		redirectURL:   redirectURL,
		store:         st,
		dispatcher:    d,
		events:        dedupe.New(eventCacheTTL, eventCacheSize),
		states:        auth.NewStateSigner([]byte(cfg.Slack.StateSecret)),
		logger:        logger.With("component", "bot"),
	}
	b.newClient = func(token string) slackAPI {
		return slack.New(token)
	}
	b.exchange = func(ctx context.Context, code string) (*slack.OAuthV2Response, error) {
		return slack.GetOAuthV2ResponseContext(ctx, http.DefaultClient,
			b.clientID, b.clientSecret, code, b.redirectURL)
	}
	return b
}

// client returns a Web API client for the workspace. A pinned bot token
// serves single-workspace deployments; otherwise the token comes from
// the installation recorded during the OAuth flow.
func (b *Bot) client(ctx context.Context, teamID string) (slackAPI, error) {
	if b.botToken != "" {
		return b.newClient(b.botToken), nil
	}
	inst, err := b.store.GetInstallation(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace %q: %w", teamID, err)
	}
	return b.newClient(inst.BotToken), nil
}

// readAndVerify drains the body and checks the request signature against
// the app's signing secret. Every Slack-originated route goes through it.
func (b *Bot) readAndVerify(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("reading request body: %w", err)
	}
	verifier, err := slack.NewSecretsVerifier(r.Header, b.signingSecret)
	if err != nil {
		return nil, fmt.Errorf("building signature verifier: %w", err)
	}
	if _, err := verifier.Write(body); err != nil {
		return nil, fmt.Errorf("hashing request body: %w", err)
	}
	if err := verifier.Ensure(); err != nil {
		return nil, fmt.Errorf("checking request signature: %w", err)
	}
	return body, nil
}

// say posts a channel-level message, logging delivery failures.
func (b *Bot) say(ctx context.Context, chat dispatch.Chat, channelID, text string) {
	if _, err := chat.PostMessage(ctx, channelID, "", text); err != nil {
		b.logger.Warn("posting message failed", "channel", channelID, "error", err)
	}
}

// whisper sends an ephemeral message only the acting user sees.
func (b *Bot) whisper(ctx context.Context, api slackAPI, channelID, userID, text string) {
	if _, err := api.PostEphemeralContext(ctx, channelID, userID, slack.MsgOptionText(text, false)); err != nil {
		b.logger.Warn("posting ephemeral message failed", "channel", channelID, "error", err)
	}
}
