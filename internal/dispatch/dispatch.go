// ABOUTME: Dispatch service routing user queries into remote Potpie conversations
// ABOUTME: Gates on stored credentials and thread mappings, then hands off to the detached pipeline

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/2389/potpie-slack/internal/potpie"
	"github.com/2389/potpie-slack/internal/store"
)

var (
	// ErrNotAuthenticated means the workspace has no stored API key.
	// Lookup failures collapse into this too: a credential we cannot
	// read is a credential we do not have.
	ErrNotAuthenticated = errors.New("workspace not authenticated")

	// ErrNoConversation means the thread has no recorded conversation,
	// so there is nothing to continue.
	ErrNoConversation = errors.New("no conversation for thread")
)

// Store is the persistence surface the dispatch layer needs: workspace
// credentials plus thread-to-conversation mappings.
type Store interface {
	store.CredentialStore
	store.MappingStore
}

// Gateway is the slice of the Potpie client the dispatch layer uses.
type Gateway interface {
	FetchProjects(ctx context.Context, token string) ([]potpie.Project, *potpie.Err)
	FetchAgents(ctx context.Context, token string) ([]potpie.Agent, *potpie.Err)
	CreateConversation(ctx context.Context, token, projectID, agentID string) (string, *potpie.Err)
	SendMessage(ctx context.Context, token, conversationID, content string) (string, *potpie.Err)
}

// Chat posts, deletes, and reacts to messages on the chat platform.
// PostMessage with an empty threadTS posts to the channel itself; the
// returned timestamp identifies the new message.
type Chat interface {
	PostMessage(ctx context.Context, channelID, threadTS, text string) (string, error)
	DeleteMessage(ctx context.Context, channelID, ts string) error
	AddReaction(ctx context.Context, channelID, ts, name string) error
}

// RenderFunc converts agent output into platform-native formatting
// before it is posted.
type RenderFunc func(string) string

// Service coordinates credential gates, the remote gateway, and the
// chat platform for every conversation operation. The Chat surface is
// passed per call because workspaces resolve to different clients.
type Service struct {
	store   Store
	gateway Gateway
	render  RenderFunc
	logger  *slog.Logger
}

// New creates a dispatch service. A nil render function passes agent
// output through untouched.
func New(st Store, gw Gateway, render RenderFunc, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if render == nil {
		render = func(s string) string { return s }
	}
	return &Service{
		store:   st,
		gateway: gw,
		render:  render,
		logger:  logger.With("component", "dispatch"),
	}
}

// Authenticate stores the workspace's Potpie API key, replacing any
// previous one.
func (s *Service) Authenticate(ctx context.Context, teamID, token string) error {
	if err := s.store.SetToken(ctx, teamID, token); err != nil {
		return fmt.Errorf("storing token: %w", err)
	}
	s.logger.Info("workspace authenticated", "team_id", teamID)
	return nil
}

// token resolves the workspace credential. The gate fails closed: a
// store error reads as not-authenticated rather than leaking through.
func (s *Service) token(ctx context.Context, teamID string) (string, error) {
	token, err := s.store.GetToken(ctx, teamID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Error("credential lookup failed", "team_id", teamID, "error", err)
		}
		return "", ErrNotAuthenticated
	}
	return token, nil
}

// ListProjects returns the workspace's projects from the gateway,
// ready or not. Callers filter for readiness where it matters.
func (s *Service) ListProjects(ctx context.Context, teamID string) ([]potpie.Project, error) {
	token, err := s.token(ctx, teamID)
	if err != nil {
		return nil, err
	}
	projects, apiErr := s.gateway.FetchProjects(ctx, token)
	if apiErr != nil {
		s.logger.Error("fetching projects failed", "error", apiErr.Message, "status", apiErr.StatusCode)
		return nil, apiErr
	}
	return projects, nil
}

// ListAgents returns the agents available to the workspace.
func (s *Service) ListAgents(ctx context.Context, teamID string) ([]potpie.Agent, error) {
	token, err := s.token(ctx, teamID)
	if err != nil {
		return nil, err
	}
	agents, apiErr := s.gateway.FetchAgents(ctx, token)
	if apiErr != nil {
		s.logger.Error("fetching agents failed", "error", apiErr.Message, "status", apiErr.StatusCode)
		return nil, apiErr
	}
	return agents, nil
}

// StartRequest carries everything needed to open a conversation from a
// modal submission.
type StartRequest struct {
	TeamID      string
	ChannelID   string
	ProjectID   string
	ProjectName string
	AgentID     string
	AgentName   string
	Query       string
}

// StartResult reports the conversation and the channel message that
// anchors its thread. Handle tracks the detached first dispatch.
type StartResult struct {
	ConversationID string
	ThreadTS       string
	Handle         *Handle
}

// StartConversation opens a remote conversation, posts the header
// message whose timestamp anchors the thread, records the mapping, and
// dispatches the opening query. Errors returned here mean nothing was
// dispatched; once a StartResult comes back the pipeline owns delivery.
func (s *Service) StartConversation(ctx context.Context, chat Chat, req StartRequest) (*StartResult, error) {
	token, err := s.token(ctx, req.TeamID)
	if err != nil {
		return nil, err
	}

	conversationID, apiErr := s.gateway.CreateConversation(ctx, token, req.ProjectID, req.AgentID)
	if apiErr != nil {
		s.logger.Error("creating conversation failed", "error", apiErr.Message, "status", apiErr.StatusCode)
		return nil, apiErr
	}

	header := fmt.Sprintf("📁 Project: *%s* \n🤖 Agent: *%s*  \n\n> _“%s”_  🔍",
		req.ProjectName, req.AgentName, req.Query)
	anchorTS, err := chat.PostMessage(ctx, req.ChannelID, "", header)
	if err != nil {
		return nil, fmt.Errorf("posting conversation header: %w", err)
	}

	if err := s.store.SetMapping(ctx, anchorTS, conversationID); err != nil {
		return nil, fmt.Errorf("recording conversation mapping: %w", err)
	}
	s.logger.Info("conversation started",
		"conversation_id", conversationID,
		"thread_ts", anchorTS,
		"project_id", req.ProjectID,
		"agent_id", req.AgentID)

	if err := chat.AddReaction(ctx, req.ChannelID, anchorTS, reactionQueued); err != nil {
		s.logger.Warn("adding queued reaction failed", "ts", anchorTS, "error", err)
	}

	handle := s.dispatch(query{
		chat:           chat,
		token:          token,
		conversationID: conversationID,
		channelID:      req.ChannelID,
		threadTS:       anchorTS,
		messageTS:      anchorTS,
		text:           req.Query,
		firstMessage:   true,
	})

	return &StartResult{
		ConversationID: conversationID,
		ThreadTS:       anchorTS,
		Handle:         handle,
	}, nil
}

// ContinueRequest carries a thread follow-up aimed at an existing
// conversation. MessageTS is the user's message, which receives the
// status reactions; ThreadTS is the anchor the mapping is keyed by.
type ContinueRequest struct {
	TeamID    string
	ChannelID string
	ThreadTS  string
	MessageTS string
	Query     string
}

// ContinueConversation routes a follow-up into the conversation mapped
// to its thread. Both gates fail closed; when an error comes back, no
// remote call was made and nothing was posted.
func (s *Service) ContinueConversation(ctx context.Context, chat Chat, req ContinueRequest) (*Handle, error) {
	token, err := s.token(ctx, req.TeamID)
	if err != nil {
		return nil, err
	}

	conversationID, err := s.store.GetMapping(ctx, req.ThreadTS)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Error("mapping lookup failed", "thread_ts", req.ThreadTS, "error", err)
		}
		return nil, ErrNoConversation
	}

	if err := chat.AddReaction(ctx, req.ChannelID, req.MessageTS, reactionQueued); err != nil {
		s.logger.Warn("adding queued reaction failed", "ts", req.MessageTS, "error", err)
	}

	handle := s.dispatch(query{
		chat:           chat,
		token:          token,
		conversationID: conversationID,
		channelID:      req.ChannelID,
		threadTS:       req.ThreadTS,
		messageTS:      req.MessageTS,
		text:           req.Query,
	})
	return handle, nil
}
