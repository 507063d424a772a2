package config

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/komainu/pkg/domain/interfaces"
	"github.com/m-mizutani/komainu/pkg/service/notify"
	"github.com/urfave/cli/v3"
)

// Notify contains configuration for alert delivery
type Notify struct {
	SlackToken   string
	SlackChannel string
}

// Flags returns CLI flags for alert notification configuration
func (n *Notify) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-oauth-token",
			Category:    "notify",
			Sources:     cli.EnvVars("KOMAINU_SLACK_OAUTH_TOKEN"),
			Usage:       "Slack OAuth token for health alerts",
			Destination: &n.SlackToken,
		},
		&cli.StringFlag{
			Name:        "slack-alert-channel",
			Category:    "notify",
			Sources:     cli.EnvVars("KOMAINU_SLACK_ALERT_CHANNEL"),
			Usage:       "Slack channel ID for health alerts",
			Destination: &n.SlackChannel,
		},
	}
}

// Configured returns true if Slack alerting is fully configured
func (n *Notify) Configured() bool {
	return n.SlackToken != "" && n.SlackChannel != ""
}

// Configure builds the Slack notifier
func (n *Notify) Configure() (interfaces.AlertNotifier, error) {
	if n.SlackToken == "" || n.SlackChannel == "" {
		return nil, goerr.New("both slack-oauth-token and slack-alert-channel are required")
	}
	return notify.NewSlackNotifier(n.SlackToken, n.SlackChannel)
}
