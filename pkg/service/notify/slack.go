package notify

import (
	"context"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/komainu/pkg/domain/interfaces"
	"github.com/m-mizutani/komainu/pkg/domain/model/metrics"
	"github.com/m-mizutani/komainu/pkg/domain/types/apperr"
	api "github.com/slack-go/slack"
)

// SlackNotifier delivers monitor health alerts to a Slack channel
type SlackNotifier struct {
	client    *api.Client
	channelID string
}

// NewSlackNotifier creates a new Slack notifier. The token is verified
// up front so a misconfigured credential fails at startup, not at the
// first alert.
func NewSlackNotifier(token, channelID string) (*SlackNotifier, error) {
	if token == "" {
		return nil, goerr.New("slack token is required")
	}
	if channelID == "" {
		return nil, goerr.New("slack channel ID is required")
	}

	client := api.New(token)
	if _, err := client.AuthTest(); err != nil {
		return nil, goerr.Wrap(err, "failed to verify slack credentials",
			goerr.T(apperr.ErrTagSlackAPI))
	}

	return &SlackNotifier{
		client:    client,
		channelID: channelID,
	}, nil
}

// NotifyHealth posts a degraded-health alert
func (n *SlackNotifier) NotifyHealth(ctx context.Context, health *metrics.Health) error {
	if health == nil || health.Healthy {
		return nil
	}

	blocks := []api.Block{
		api.NewHeaderBlock(api.NewTextBlockObject(api.PlainTextType, ":rotating_light: Call safety degraded", true, false)),
		api.NewSectionBlock(api.NewTextBlockObject(api.MarkdownType, formatIssues(health.Issues), false, false), nil, nil),
	}

	_, timestamp, err := n.client.PostMessageContext(
		ctx,
		n.channelID,
		api.MsgOptionBlocks(blocks...),
		api.MsgOptionText("call safety degraded: "+strings.Join(health.Issues, "; "), false),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to post health alert to slack",
			goerr.T(apperr.ErrTagSlackAPI),
			goerr.V("channel", n.channelID),
		)
	}

	ctxlog.From(ctx).Debug("posted health alert to slack",
		"channel", n.channelID,
		"timestamp", timestamp,
	)

	return nil
}

func formatIssues(issues []string) string {
	var sb strings.Builder
	for _, issue := range issues {
		sb.WriteString("• ")
		sb.WriteString(issue)
		sb.WriteString("\n")
	}
	if sb.Len() == 0 {
		sb.WriteString("no issue details available")
	}
	return sb.String()
}

// Ensure SlackNotifier implements the interface
var _ interfaces.AlertNotifier = (*SlackNotifier)(nil)
