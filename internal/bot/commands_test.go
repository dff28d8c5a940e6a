// ABOUTME: Tests for the slash command endpoint
// ABOUTME: Modal contents and the ephemeral answers for each gated failure

package bot

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/potpie-slack/internal/dispatch"
	"github.com/2389/potpie-slack/internal/potpie"
)

func postCommand(t *testing.T, b *Bot, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	body := form.Encode()
	req := httptest.NewRequest(http.MethodPost, "/slack/commands", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	signRequest(t, req, body)
	rec := httptest.NewRecorder()
	b.HandleCommands(rec, req)
	return rec
}

func commandForm(command string) url.Values {
	return url.Values{
		"command":    {command},
		"team_id":    {"T1"},
		"channel_id": {"C1"},
		"user_id":    {"U1"},
		"trigger_id": {"trigger-1"},
	}
}

func TestHandleCommands_AuthenticateOpensModal(t *testing.T) {
	b, api := newTestBot(t, &fakeDispatcher{})

	rec := postCommand(t, b, commandForm("/authenticate"))
	require.Equal(t, http.StatusOK, rec.Code)

	views := api.allViews()
	require.Len(t, views, 1)
	assert.Equal(t, "trigger-1", views[0].triggerID)

	view := views[0].view
	assert.Equal(t, callbackAuthenticate, view.CallbackID)
	assert.Equal(t, "C1", view.PrivateMetadata)
	assert.Equal(t, "Authenticate", view.Title.Text)

	require.Len(t, view.Blocks.BlockSet, 1)
	input, ok := view.Blocks.BlockSet[0].(*slack.InputBlock)
	require.True(t, ok)
	assert.Equal(t, blockAPIToken, input.BlockID)
	assert.Equal(t, "Enter your API Token", input.Label.Text)
}

func TestHandleCommands_PotpieNotAuthenticated(t *testing.T) {
	d := &fakeDispatcher{projectsErr: dispatch.ErrNotAuthenticated}
	b, api := newTestBot(t, d)

	rec := postCommand(t, b, commandForm("/potpie"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ephemeral")
	assert.Contains(t, rec.Body.String(), "authenticated yet")
	assert.Empty(t, api.allViews(), "gated command must not open the modal")
}

func TestHandleCommands_PotpieRetrievalError(t *testing.T) {
	d := &fakeDispatcher{projectsErr: errors.New("potpie is down")}
	b, api := newTestBot(t, d)

	rec := postCommand(t, b, commandForm("/potpie"))

	assert.Contains(t, rec.Body.String(), msgRetrievalError)
	assert.NotContains(t, rec.Body.String(), "potpie is down", "raw errors stay out of user-facing text")
	assert.Empty(t, api.allViews())
}

func TestHandleCommands_PotpieAgentRetrievalError(t *testing.T) {
	d := &fakeDispatcher{
		projects:  []potpie.Project{{ID: "p1", Name: "repo-one", Status: "ready"}},
		agentsErr: errors.New("potpie is down"),
	}
	b, api := newTestBot(t, d)

	rec := postCommand(t, b, commandForm("/potpie"))

	assert.Contains(t, rec.Body.String(), msgRetrievalError)
	assert.Empty(t, api.allViews())
}

func TestHandleCommands_PotpieNoReadyProjects(t *testing.T) {
	d := &fakeDispatcher{
		projects: []potpie.Project{{ID: "p1", Name: "repo-one", Status: "submitted"}},
		agents:   []potpie.Agent{{ID: "a1", Name: "Debug Agent"}},
	}
	b, api := newTestBot(t, d)

	rec := postCommand(t, b, commandForm("/potpie"))

	assert.Contains(t, rec.Body.String(), msgNoReadyProjects)
	assert.Empty(t, api.allViews())
}

func TestHandleCommands_PotpieNoAgents(t *testing.T) {
	d := &fakeDispatcher{
		projects: []potpie.Project{{ID: "p1", Name: "repo-one", Status: "ready"}},
	}
	b, api := newTestBot(t, d)

	rec := postCommand(t, b, commandForm("/potpie"))

	assert.Contains(t, rec.Body.String(), msgNoAgents)
	assert.Empty(t, api.allViews())
}

func TestHandleCommands_PotpieOpensModal(t *testing.T) {
	d := &fakeDispatcher{
		projects: []potpie.Project{
			{ID: "p-ready", Name: "repo-one", Status: "ready"},
			{ID: "p-parsing", Name: "repo-two", Status: "submitted"},
		},
		agents: []potpie.Agent{
			{ID: "a1", Name: "Debug Agent"},
			{ID: "a2", Name: "QnA Agent"},
		},
	}
	b, api := newTestBot(t, d)

	rec := postCommand(t, b, commandForm("/potpie"))
	require.Equal(t, http.StatusOK, rec.Code)

	views := api.allViews()
	require.Len(t, views, 1)
	view := views[0].view
	assert.Equal(t, callbackStartConversation, view.CallbackID)
	assert.Equal(t, "C1", view.PrivateMetadata)
	assert.Equal(t, "PotpieAI", view.Title.Text)
	require.Len(t, view.Blocks.BlockSet, 5)

	repoInput, ok := view.Blocks.BlockSet[2].(*slack.InputBlock)
	require.True(t, ok)
	assert.Equal(t, blockSelectRepo, repoInput.BlockID)
	repoSelect, ok := repoInput.Element.(*slack.SelectBlockElement)
	require.True(t, ok)
	require.Len(t, repoSelect.Options, 1, "only ready projects are offered")
	assert.Equal(t, "p-ready", repoSelect.Options[0].Value)
	assert.Equal(t, "repo-one", repoSelect.Options[0].Text.Text)
	require.NotNil(t, repoSelect.InitialOption)
	assert.Equal(t, "p-ready", repoSelect.InitialOption.Value)

	agentInput, ok := view.Blocks.BlockSet[3].(*slack.InputBlock)
	require.True(t, ok)
	assert.Equal(t, blockSelectAgent, agentInput.BlockID)
	agentSelect, ok := agentInput.Element.(*slack.SelectBlockElement)
	require.True(t, ok)
	require.Len(t, agentSelect.Options, 2)
	require.NotNil(t, agentSelect.InitialOption)
	assert.Equal(t, "a1", agentSelect.InitialOption.Value)

	queryInput, ok := view.Blocks.BlockSet[4].(*slack.InputBlock)
	require.True(t, ok)
	assert.Equal(t, blockUserQuery, queryInput.BlockID)
}

func TestHandleCommands_UnknownCommand(t *testing.T) {
	b, api := newTestBot(t, &fakeDispatcher{})

	rec := postCommand(t, b, commandForm("/frobnicate"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, api.allViews())
	assert.Empty(t, rec.Body.String())
}

func TestHandleCommands_RejectsBadSignature(t *testing.T) {
	b, _ := newTestBot(t, &fakeDispatcher{})

	body := commandForm("/potpie").Encode()
	req := httptest.NewRequest(http.MethodPost, "/slack/commands", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	b.HandleCommands(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
