// ABOUTME: Shared test doubles for the bot package
// ABOUTME: Records Web API calls and dispatch requests instead of performing them

package bot

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/potpie-slack/internal/config"
	"github.com/2389/potpie-slack/internal/dispatch"
	"github.com/2389/potpie-slack/internal/potpie"
	"github.com/2389/potpie-slack/internal/store"
)

const testSigningSecret = "8f742231b10e8888abcd99yyyzzz85a5"

// signRequest stamps the two Slack signature headers onto req, computed
// over body the way Slack computes them.
func signRequest(t *testing.T, req *http.Request, body string) {
	t.Helper()
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	mac := hmac.New(sha256.New, []byte(testSigningSecret))
	fmt.Fprintf(mac, "v0:%s:%s", ts, body)
	req.Header.Set("X-Slack-Request-Timestamp", ts)
	req.Header.Set("X-Slack-Signature", "v0="+hex.EncodeToString(mac.Sum(nil)))
}

type fakePost struct {
	channel  string
	threadTS string
	text     string
}

type fakeEphemeral struct {
	channel string
	user    string
	text    string
}

type fakeView struct {
	triggerID string
	view      slack.ModalViewRequest
}

type fakeHome struct {
	user string
	view slack.HomeTabViewRequest
}

type fakeReaction struct {
	channel string
	ts      string
	name    string
}

// fakeSlackAPI records Web API calls. Message options are decoded back
// into form values so tests can assert on text and thread_ts.
type fakeSlackAPI struct {
	mu         sync.Mutex
	nextTS     int
	posts      []fakePost
	ephemerals []fakeEphemeral
	deletes    []string
	reactions  []fakeReaction
	views      []fakeView
	homes      []fakeHome

	openViewErr error
}

func (f *fakeSlackAPI) PostMessageContext(_ context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	_, values, err := slack.UnsafeApplyMsgOptions("tok", channelID, "https://slack.com/api/", options...)
	if err != nil {
		return "", "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextTS++
	f.posts = append(f.posts, fakePost{
		channel:  channelID,
		threadTS: values.Get("thread_ts"),
		text:     values.Get("text"),
	})
	return channelID, fmt.Sprintf("1700000000.%06d", f.nextTS), nil
}

func (f *fakeSlackAPI) PostEphemeralContext(_ context.Context, channelID, userID string, options ...slack.MsgOption) (string, error) {
	_, values, err := slack.UnsafeApplyMsgOptions("tok", channelID, "https://slack.com/api/", options...)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ephemerals = append(f.ephemerals, fakeEphemeral{channel: channelID, user: userID, text: values.Get("text")})
	return "1700000000.000001", nil
}

func (f *fakeSlackAPI) DeleteMessageContext(_ context.Context, channel, messageTimestamp string) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, messageTimestamp)
	return channel, messageTimestamp, nil
}

func (f *fakeSlackAPI) AddReactionContext(_ context.Context, name string, item slack.ItemRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions = append(f.reactions, fakeReaction{channel: item.Channel, ts: item.Timestamp, name: name})
	return nil
}

func (f *fakeSlackAPI) OpenViewContext(_ context.Context, triggerID string, view slack.ModalViewRequest) (*slack.ViewResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openViewErr != nil {
		return nil, f.openViewErr
	}
	f.views = append(f.views, fakeView{triggerID: triggerID, view: view})
	return &slack.ViewResponse{}, nil
}

func (f *fakeSlackAPI) PublishViewContext(_ context.Context, userID string, view slack.HomeTabViewRequest, _ string) (*slack.ViewResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.homes = append(f.homes, fakeHome{user: userID, view: view})
	return &slack.ViewResponse{}, nil
}

func (f *fakeSlackAPI) allPosts() []fakePost {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakePost(nil), f.posts...)
}

func (f *fakeSlackAPI) allEphemerals() []fakeEphemeral {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakeEphemeral(nil), f.ephemerals...)
}

func (f *fakeSlackAPI) allViews() []fakeView {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakeView(nil), f.views...)
}

func (f *fakeSlackAPI) allHomes() []fakeHome {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakeHome(nil), f.homes...)
}

var _ slackAPI = (*fakeSlackAPI)(nil)

// fakeDispatcher records dispatch calls and returns canned results.
type fakeDispatcher struct {
	mu sync.Mutex

	tokens  map[string]string
	authErr error

	projects    []potpie.Project
	projectsErr error
	agents      []potpie.Agent
	agentsErr   error

	startErr  error
	startReqs []dispatch.StartRequest

	continueErr error
	contReqs    []dispatch.ContinueRequest
}

func (d *fakeDispatcher) Authenticate(_ context.Context, teamID, token string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.authErr != nil {
		return d.authErr
	}
	if d.tokens == nil {
		d.tokens = make(map[string]string)
	}
	d.tokens[teamID] = token
	return nil
}

func (d *fakeDispatcher) ListProjects(context.Context, string) ([]potpie.Project, error) {
	return d.projects, d.projectsErr
}

func (d *fakeDispatcher) ListAgents(context.Context, string) ([]potpie.Agent, error) {
	return d.agents, d.agentsErr
}

func (d *fakeDispatcher) StartConversation(_ context.Context, _ dispatch.Chat, req dispatch.StartRequest) (*dispatch.StartResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.startReqs = append(d.startReqs, req)
	if d.startErr != nil {
		return nil, d.startErr
	}
	return &dispatch.StartResult{ConversationID: "c1", ThreadTS: "1700000000.000100"}, nil
}

func (d *fakeDispatcher) ContinueConversation(_ context.Context, _ dispatch.Chat, req dispatch.ContinueRequest) (*dispatch.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.contReqs = append(d.contReqs, req)
	return nil, d.continueErr
}

func (d *fakeDispatcher) startCalls() []dispatch.StartRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]dispatch.StartRequest(nil), d.startReqs...)
}

func (d *fakeDispatcher) continueCalls() []dispatch.ContinueRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]dispatch.ContinueRequest(nil), d.contReqs...)
}

func (d *fakeDispatcher) storedToken(teamID string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tokens[teamID]
}

var _ Dispatcher = (*fakeDispatcher)(nil)

// newTestBot builds a Bot with a pinned token and a recording Web API.
func newTestBot(t *testing.T, d Dispatcher) (*Bot, *fakeSlackAPI) {
	t.Helper()

	cfg := &config.Config{}
	cfg.Slack.SigningSecret = testSigningSecret
	cfg.Slack.BotToken = "xoxb-test"
	cfg.Slack.ClientID = "client-id"
	cfg.Slack.ClientSecret = "client-secret"
	cfg.Slack.StateSecret = "state-secret"

	b := New(cfg, store.NewMemoryStore(), d, nil)
	api := &fakeSlackAPI{}
	b.newClient = func(string) slackAPI { return api }
	return b, api
}

func TestClient_PinnedToken(t *testing.T) {
	cfg := &config.Config{}
	cfg.Slack.SigningSecret = testSigningSecret
	cfg.Slack.BotToken = "xoxb-pinned"

	b := New(cfg, store.NewMemoryStore(), &fakeDispatcher{}, nil)
	var got string
	b.newClient = func(token string) slackAPI {
		got = token
		return &fakeSlackAPI{}
	}

	_, err := b.client(context.Background(), "T-any")
	require.NoError(t, err)
	assert.Equal(t, "xoxb-pinned", got)
}

func TestClient_ResolvesInstallation(t *testing.T) {
	cfg := &config.Config{}
	cfg.Slack.SigningSecret = testSigningSecret
	cfg.Slack.ClientID = "client-id"
	cfg.Slack.ClientSecret = "client-secret"
	cfg.Slack.StateSecret = "state-secret"

	st := store.NewMemoryStore()
	require.NoError(t, st.SetInstallation(context.Background(), &store.Installation{
		TeamID:   "T1",
		BotToken: "xoxb-installed",
	}))

	b := New(cfg, st, &fakeDispatcher{}, nil)
	var got string
	b.newClient = func(token string) slackAPI {
		got = token
		return &fakeSlackAPI{}
	}

	_, err := b.client(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal(t, "xoxb-installed", got)

	_, err = b.client(context.Background(), "T-unknown")
	assert.Error(t, err, "unknown workspace must not get a client")
}
