// Package mrkdwn renders Markdown as Slack mrkdwn text so agent
// replies keep their formatting when posted.
package mrkdwn
