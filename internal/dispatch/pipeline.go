// ABOUTME: Detached pipeline walking one query from placeholder to terminal outcome
// ABOUTME: Fire-and-forget - callers get a Handle, never an error, and every run terminates

package dispatch

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Reactions marking dispatch progress on the originating message.
const (
	reactionQueued  = "eyes"
	reactionSuccess = "thumbsup"
	reactionFailure = "x"
)

// placeholderText is the interim thread reply shown while the remote
// call is in flight.
const placeholderText = "_Processing_ ..."

// mentionHint trails the first reply of a conversation so users know
// how to keep it going.
const mentionHint = "\nYou can *@mention* me to continue the conversation"

// User-facing apologies. The raw error goes to the log, never to the
// user; remote and local failures read differently.
const (
	apologyRemote = "Error processing your request. Please try again later."
	apologyLocal  = "There was some error at our end! Please try again later."
)

// Outcome is the terminal state of a dispatch.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeSuccess
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	default:
		return "pending"
	}
}

// Handle tracks one detached dispatch. Done is closed when the
// pipeline reaches a terminal state; there is no way to cancel an
// in-flight dispatch.
type Handle struct {
	done    chan struct{}
	outcome Outcome
}

// Done returns a channel closed once the dispatch terminates.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Outcome reports the terminal state, or OutcomePending while the
// dispatch is still running.
func (h *Handle) Outcome() Outcome {
	select {
	case <-h.done:
		return h.outcome
	default:
		return OutcomePending
	}
}

func (h *Handle) finish(o Outcome) {
	h.outcome = o
	close(h.done)
}

// query is one gated user message bound for a remote conversation,
// together with the workspace chat client that carries its feedback.
type query struct {
	chat           Chat
	token          string
	conversationID string
	channelID      string
	threadTS       string
	messageTS      string
	text           string
	firstMessage   bool
}

// dispatch spawns the pipeline for one query and returns immediately.
// Nothing waits on the goroutine; it always reaches a terminal state.
func (s *Service) dispatch(q query) *Handle {
	h := &Handle{done: make(chan struct{})}
	go s.run(q, h)
	return h
}

// run walks one query to its terminal state: placeholder, remote call,
// then either the rendered reply with a success reaction or an apology
// with a failure reaction. The placeholder is removed on both paths.
// Runs on its own background context so the triggering request's
// lifetime has no hold over it.
func (s *Service) run(q query, h *Handle) {
	ctx := context.Background()
	logger := s.logger.With(
		"dispatch_id", uuid.New().String(),
		"conversation_id", q.conversationID,
		"thread_ts", q.threadTS)

	var placeholderTS string
	outcome := OutcomeFailure

	defer func() {
		// Faults must not escape the pipeline: conclude the dispatch
		// instead of crashing the process.
		if r := recover(); r != nil {
			logger.Error("dispatch panicked", "panic", r)
			s.fail(ctx, q, placeholderTS, apologyLocal, logger)
		}
		h.finish(outcome)
	}()

	ts, err := q.chat.PostMessage(ctx, q.channelID, q.threadTS, placeholderText)
	if err != nil {
		logger.Error("posting placeholder failed", "error", err)
		s.fail(ctx, q, "", apologyLocal, logger)
		return
	}
	placeholderTS = ts

	reply, apiErr := s.gateway.SendMessage(ctx, q.token, q.conversationID, q.text)
	if apiErr != nil {
		logger.Error("sending message failed", "error", apiErr.Message, "status", apiErr.StatusCode)
		s.fail(ctx, q, placeholderTS, apologyRemote, logger)
		return
	}

	text := s.render(reply)
	if q.firstMessage {
		text += mentionHint
	}
	if _, err := q.chat.PostMessage(ctx, q.channelID, q.threadTS, text); err != nil {
		logger.Error("posting reply failed", "error", err)
		s.fail(ctx, q, placeholderTS, apologyLocal, logger)
		return
	}

	if err := q.chat.AddReaction(ctx, q.channelID, q.messageTS, reactionSuccess); err != nil {
		logger.Warn("adding success reaction failed", "ts", q.messageTS, "error", err)
	}
	deletePlaceholder(ctx, q.chat, q.channelID, placeholderTS, logger)

	logger.Info("dispatch succeeded")
	outcome = OutcomeSuccess
}

// fail marks the originating message, posts the apology in the thread,
// and cleans up the placeholder. Every step is best-effort; the
// dispatch has already failed.
func (s *Service) fail(ctx context.Context, q query, placeholderTS, apology string, logger *slog.Logger) {
	if err := q.chat.AddReaction(ctx, q.channelID, q.messageTS, reactionFailure); err != nil {
		logger.Warn("adding failure reaction failed", "ts", q.messageTS, "error", err)
	}
	if _, err := q.chat.PostMessage(ctx, q.channelID, q.threadTS, apology); err != nil {
		logger.Warn("posting apology failed", "error", err)
	}
	deletePlaceholder(ctx, q.chat, q.channelID, placeholderTS, logger)
}

func deletePlaceholder(ctx context.Context, chat Chat, channelID, ts string, logger *slog.Logger) {
	if ts == "" {
		return
	}
	if err := chat.DeleteMessage(ctx, channelID, ts); err != nil {
		logger.Warn("deleting placeholder failed", "ts", ts, "error", err)
	}
}
