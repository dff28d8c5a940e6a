// ABOUTME: Block Kit view builders for the modals and the App Home tab
// ABOUTME: Callback and block IDs are shared with the interactivity handlers

package bot

import (
	"fmt"

	"github.com/slack-go/slack"

	"github.com/2389/potpie-slack/internal/potpie"
)

const (
	callbackAuthenticate      = "handle_authentication"
	callbackStartConversation = "start-conversation-modal"

	blockAPIToken  = "api_token_input"
	actionAPIToken = "api_token"

	blockSelectRepo  = "select-repo-input"
	actionSelectRepo = "select-repo-action"

	blockSelectAgent  = "select-agent-input"
	actionSelectAgent = "select-agent-action"

	blockUserQuery  = "user_query_block"
	actionUserQuery = "user_query_input"

	learnMoreURL = "https://docs.potpie.ai/introduction"
)

// authModal collects the tenant API token. channelID rides along as
// private metadata so the confirmation lands where the command was run.
func authModal(channelID string) slack.ModalViewRequest {
	tokenInput := slack.NewPlainTextInputBlockElement(
		slack.NewTextBlockObject(slack.PlainTextType, "Your API Token", false, false),
		actionAPIToken,
	)

	return slack.ModalViewRequest{
		Type:            slack.VTModal,
		CallbackID:      callbackAuthenticate,
		PrivateMetadata: channelID,
		Title:           slack.NewTextBlockObject(slack.PlainTextType, "Authenticate", false, false),
		Submit:          slack.NewTextBlockObject(slack.PlainTextType, "Submit", false, false),
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			slack.NewInputBlock(blockAPIToken,
				slack.NewTextBlockObject(slack.PlainTextType, "Enter your API Token", false, false),
				nil,
				tokenInput),
		}},
	}
}

// startModal pairs a repository picker with an agent picker and a query
// box. Both selects preselect their first option; callers must pass
// non-empty slices.
func startModal(channelID string, projects []potpie.Project, agents []potpie.Agent) slack.ModalViewRequest {
	repoOptions := make([]*slack.OptionBlockObject, 0, len(projects))
	for _, p := range projects {
		repoOptions = append(repoOptions, slack.NewOptionBlockObject(
			p.ID,
			slack.NewTextBlockObject(slack.PlainTextType, p.Name, false, false),
			nil))
	}
	agentOptions := make([]*slack.OptionBlockObject, 0, len(agents))
	for _, a := range agents {
		agentOptions = append(agentOptions, slack.NewOptionBlockObject(
			a.ID,
			slack.NewTextBlockObject(slack.PlainTextType, a.Name, false, false),
			nil))
	}

	repoSelect := slack.NewOptionsSelectBlockElement(slack.OptTypeStatic, nil, actionSelectRepo, repoOptions...)
	repoSelect.InitialOption = repoOptions[0]
	agentSelect := slack.NewOptionsSelectBlockElement(slack.OptTypeStatic, nil, actionSelectAgent, agentOptions...)
	agentSelect.InitialOption = agentOptions[0]

	queryInput := slack.NewPlainTextInputBlockElement(
		slack.NewTextBlockObject(slack.PlainTextType, "Type your question here...", false, false),
		actionUserQuery,
	)
	queryInput.Multiline = true

	return slack.ModalViewRequest{
		Type:            slack.VTModal,
		CallbackID:      callbackStartConversation,
		PrivateMetadata: channelID,
		Title:           slack.NewTextBlockObject(slack.PlainTextType, "PotpieAI", true, false),
		Submit:          slack.NewTextBlockObject(slack.PlainTextType, "Submit", true, false),
		Close:           slack.NewTextBlockObject(slack.PlainTextType, "Cancel", true, false),
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			slack.NewSectionBlock(
				slack.NewTextBlockObject(slack.MarkdownType, "*Please select the repo and agent*:", false, false),
				nil, nil),
			slack.NewDividerBlock(),
			slack.NewInputBlock(blockSelectRepo,
				slack.NewTextBlockObject(slack.PlainTextType, "Choose a repository", false, false),
				nil,
				repoSelect),
			slack.NewInputBlock(blockSelectAgent,
				slack.NewTextBlockObject(slack.PlainTextType, "Choose an agent", false, false),
				nil,
				agentSelect),
			slack.NewInputBlock(blockUserQuery,
				slack.NewTextBlockObject(slack.PlainTextType, "Ask the AI Agent", false, false),
				nil,
				queryInput),
		}},
	}
}

// homeView greets the user on the App Home tab.
func homeView(userID string) slack.HomeTabViewRequest {
	learnMore := slack.NewButtonBlockElement("", "learn_more",
		slack.NewTextBlockObject(slack.PlainTextType, "Learn More", false, false))
	learnMore.URL = learnMoreURL

	return slack.HomeTabViewRequest{
		Type: slack.VTHomeTab,
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			slack.NewSectionBlock(
				slack.NewTextBlockObject(slack.MarkdownType,
					fmt.Sprintf("Welcome to Potpie AI, <@%s>! 🎉", userID), false, false),
				nil, nil),
			slack.NewSectionBlock(
				slack.NewTextBlockObject(slack.MarkdownType,
					"Explore our features or visit the About tab for more information.", false, false),
				nil, nil),
			slack.NewActionBlock("", learnMore),
		}},
	}
}
