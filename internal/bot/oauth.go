// ABOUTME: OAuth v2 install flow for multi-workspace deployments
// ABOUTME: Issues signed state tokens and records completed installations

package bot

import (
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/2389/potpie-slack/internal/auth"
	"github.com/2389/potpie-slack/internal/store"
)

const authorizeURL = "https://slack.com/oauth/v2/authorize"

// InstallScopes is everything the bot needs: mention and DM events,
// message posting, reactions, and user lookups. The app manifest and
// the install redirect must stay in sync.
var InstallScopes = []string{
	"app_mentions:read",
	"commands",
	"im:history",
	"users:read",
	"im:read",
	"chat:write",
	"im:write",
	"reactions:read",
	"reactions:write",
}

// HandleInstall handles GET /slack/install by redirecting the browser to
// Slack's consent screen with a freshly signed state token.
func (b *Bot) HandleInstall(w http.ResponseWriter, r *http.Request) {
	state, err := b.states.Issue(auth.StateTTL)
	if err != nil {
		b.logger.Error("issuing oauth state failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	params := url.Values{}
	params.Set("client_id", b.clientID)
	params.Set("scope", strings.Join(InstallScopes, ","))
	params.Set("state", state)
	if b.redirectURL != "" {
		params.Set("redirect_uri", b.redirectURL)
	}

	http.Redirect(w, r, authorizeURL+"?"+params.Encode(), http.StatusFound)
}

// HandleOAuthRedirect handles GET /slack/oauth_redirect, Slack's
// callback after the user approves the install. The state token must
// verify before the code is exchanged.
func (b *Bot) HandleOAuthRedirect(w http.ResponseWriter, r *http.Request) {
	if err := b.states.Verify(r.URL.Query().Get("state")); err != nil {
		b.logger.Warn("rejecting oauth redirect", "error", err)
		http.Error(w, "invalid or expired state", http.StatusBadRequest)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing code", http.StatusBadRequest)
		return
	}

	resp, err := b.exchange(r.Context(), code)
	if err != nil {
		b.logger.Error("oauth code exchange failed", "error", err)
		http.Error(w, "code exchange failed", http.StatusBadGateway)
		return
	}

	inst := &store.Installation{
		TeamID:      resp.Team.ID,
		TeamName:    resp.Team.Name,
		BotToken:    resp.AccessToken,
		BotUserID:   resp.BotUserID,
		Scopes:      resp.Scope,
		InstalledAt: time.Now().UTC(),
	}
	if err := b.store.SetInstallation(r.Context(), inst); err != nil {
		b.logger.Error("recording installation failed", "team_id", inst.TeamID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	b.logger.Info("workspace installed", "team_id", inst.TeamID, "team_name", inst.TeamName)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, installedPage, html.EscapeString(inst.TeamName))
}

const installedPage = `<!DOCTYPE html>
<html>
<head><title>Installed</title></head>
<body>
<h2>Potpie installed in %s</h2>
<p>Run <code>/authenticate</code> in Slack to connect your Potpie account, then <code>/potpie</code> to start a conversation.</p>
</body>
</html>
`
