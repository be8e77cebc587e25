package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/valentinpelus/voiceboard/internal/logger"
	"github.com/valentinpelus/voiceboard/pkg/stats"
	"github.com/valentinpelus/voiceboard/pkg/types"
)

// DefaultAPIURL is the Slack Web API base
const DefaultAPIURL = "https://slack.com/api"

// Client posts dashboard reports to Slack through a bot token or an incoming webhook
type Client struct {
	webhookURL  string
	botToken    string
	channelID   string
	workspaceID string
	apiURL      string
	client      *http.Client
}

// NewClient creates a new Slack client
func NewClient(webhookURL, botToken, channelID string) *Client {
	return &Client{
		webhookURL: webhookURL,
		botToken:   botToken,
		channelID:  channelID,
		apiURL:     DefaultAPIURL,
		client:     &http.Client{},
	}
}

// IsConfigured checks if Slack notifications are configured
func (c *Client) IsConfigured() bool {
	return c != nil && (c.webhookURL != "" || c.HasBotToken())
}

// HasBotToken checks if Bot token is configured for threading support
func (c *Client) HasBotToken() bool {
	return c.botToken != "" && c.channelID != ""
}

// SetAPIURL points the client at another Web API base (tests, proxies)
func (c *Client) SetAPIURL(u string) {
	c.apiURL = strings.TrimRight(u, "/")
}

// SetWorkspaceID sets the workspace ID used to build message permalinks
func (c *Client) SetWorkspaceID(workspaceID string) {
	c.workspaceID = workspaceID
}

// Permalink returns a link to a posted message, or "" when it cannot be built
func (c *Client) Permalink(ts string) string {
	if c.workspaceID == "" || c.channelID == "" || ts == "" {
		return ""
	}
	return fmt.Sprintf("https://app.slack.com/client/%s/%s/p%s", c.workspaceID, c.channelID, strings.ReplaceAll(ts, ".", ""))
}

// ImportReport summarizes a confirmed CSV import
type ImportReport struct {
	FileName   string
	Added      int
	Total      int
	Categories []stats.Bucket
	Insights   []string
}

// SendImportReport announces a confirmed import. Returns the message timestamp
// when posted with the bot token.
func (c *Client) SendImportReport(ctx context.Context, report ImportReport) (string, error) {
	fields := []types.SlackTextObject{
		{Type: "mrkdwn", Text: fmt.Sprintf("*新增反馈:*\n%d条", report.Added)},
		{Type: "mrkdwn", Text: fmt.Sprintf("*当前总数:*\n%d条", report.Total)},
	}

	message := types.SlackMessage{
		Text: fmt.Sprintf("导入完成: %s (%d条)", report.FileName, report.Added),
		Blocks: []types.SlackBlock{
			types.HeaderBlock("📥 反馈数据导入完成"),
			{Type: "section", Fields: fields},
		},
	}

	if len(report.Categories) > 0 {
		var b strings.Builder
		for _, bucket := range stats.SortedByCount(report.Categories) {
			fmt.Fprintf(&b, "• %s: %d条\n", bucket.Key, bucket.Count)
		}
		message.Blocks = append(message.Blocks, types.MarkdownSection("*问题类型分布:*\n"+b.String()))
	}
	if len(report.Insights) > 0 {
		message.Blocks = append(message.Blocks, types.MarkdownSection("*洞察:*\n• "+strings.Join(report.Insights, "\n• ")))
	}
	message.Blocks = append(message.Blocks, types.SlackBlock{
		Type:     "context",
		Elements: []types.SlackTextObject{{Type: "mrkdwn", Text: "文件: `" + report.FileName + "`"}},
	})

	return c.send(ctx, message)
}

// ShareAnswer posts an assistant answer together with the question that produced it.
// With a bot token, an answer longer than one section continues as thread replies.
func (c *Client) ShareAnswer(ctx context.Context, question, answer string) (string, error) {
	parts := splitForSlack(ConvertMarkdownToSlack(answer), sectionLimit)
	head := parts[0]
	if len(parts) > 1 && !c.HasBotToken() {
		head += "\n... (truncated)"
	}

	message := types.SlackMessage{
		Text: truncateForSlack(answer, 150),
		Blocks: []types.SlackBlock{
			types.MarkdownSection("*🤖 智能反馈分析*"),
			types.MarkdownSection("> " + truncateForSlack(question, 500)),
			{Type: "divider"},
			types.MarkdownSection(head),
		},
	}
	ts, err := c.send(ctx, message)
	if err != nil || ts == "" {
		return ts, err
	}

	for _, part := range parts[1:] {
		if err := c.ReplyToThread(ctx, ts, part); err != nil {
			return ts, fmt.Errorf("failed to post answer continuation: %w", err)
		}
	}
	return ts, nil
}

// ReplyToThread sends a message as a reply in a thread
func (c *Client) ReplyToThread(ctx context.Context, threadTS, text string) error {
	if !c.HasBotToken() {
		return fmt.Errorf("bot token required for thread replies")
	}

	_, err := c.postMessage(ctx, types.SlackMessage{
		Channel:  c.channelID,
		ThreadTS: threadTS,
		Text:     truncateForSlack(ConvertMarkdownToSlack(text), 3000),
	})
	return err
}

// ValidateToken calls auth.test to verify the bot token
func (c *Client) ValidateToken(ctx context.Context) (types.SlackResponse, error) {
	if !c.HasBotToken() {
		return types.SlackResponse{}, fmt.Errorf("bot token not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/auth.test", nil)
	if err != nil {
		return types.SlackResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.botToken)

	slackResp, err := c.do(req)
	if err != nil {
		return types.SlackResponse{}, fmt.Errorf("failed to validate token: %w", err)
	}
	if c.workspaceID == "" {
		c.workspaceID = slackResp.TeamID
	}
	return slackResp, nil
}

// send picks the bot API when configured, the webhook otherwise
func (c *Client) send(ctx context.Context, message types.SlackMessage) (string, error) {
	switch {
	case c.HasBotToken():
		message.Channel = c.channelID
		return c.postMessage(ctx, message)
	case c.webhookURL != "":
		return "", c.postWebhook(ctx, message)
	default:
		return "", nil
	}
}

// postWebhook sends a message using Slack incoming webhook
func (c *Client) postWebhook(ctx context.Context, message types.SlackMessage) error {
	jsonData, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal Slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send to Slack: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook returned status %d: %s", resp.StatusCode, string(body))
	}

	// Incoming webhooks typically just return "ok"
	if strings.TrimSpace(string(body)) != "ok" {
		logger.Warn("Unexpected Slack webhook response", "body", string(body))
	}
	return nil
}

// postMessage sends a message using the Slack chat.postMessage API
func (c *Client) postMessage(ctx context.Context, message types.SlackMessage) (string, error) {
	jsonData, err := json.Marshal(message)
	if err != nil {
		return "", fmt.Errorf("failed to marshal Slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/chat.postMessage", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+c.botToken)

	slackResp, err := c.do(req)
	if err != nil {
		return "", err
	}

	logger.Debug("Message sent to Slack", "ts", slackResp.TS, "channel", slackResp.Channel)
	return slackResp.TS, nil
}

func (c *Client) do(req *http.Request) (types.SlackResponse, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return types.SlackResponse{}, fmt.Errorf("failed to send to Slack: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.SlackResponse{}, fmt.Errorf("failed to read response: %w", err)
	}

	var slackResp types.SlackResponse
	if err := json.Unmarshal(body, &slackResp); err != nil {
		return types.SlackResponse{}, fmt.Errorf("failed to parse Slack response (status %d): %w", resp.StatusCode, err)
	}
	if !slackResp.OK {
		if slackResp.Error == "not_in_channel" {
			return slackResp, fmt.Errorf("bot not in channel - invite bot to channel with: /invite @bot-name (channel: %s)", c.channelID)
		}
		return slackResp, fmt.Errorf("slack error: %s", slackResp.Error)
	}
	return slackResp, nil
}

// section text objects are capped at 3000 characters
const sectionLimit = 2900

// splitForSlack cuts text into pieces of at most maxLen bytes, preferring line
// breaks and never splitting a rune. Always returns at least one piece.
func splitForSlack(text string, maxLen int) []string {
	var parts []string
	for len(text) > maxLen {
		cut := strings.LastIndexByte(text[:maxLen], '\n')
		if cut <= 0 {
			cut = maxLen
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
		}
		parts = append(parts, text[:cut])
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if text != "" || len(parts) == 0 {
		parts = append(parts, text)
	}
	return parts
}

// truncateForSlack truncates text to at most maxLen bytes without splitting a rune
func truncateForSlack(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "\n... (truncated)"
}

var markdownHeading = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)

// ConvertMarkdownToSlack converts standard Markdown to Slack's mrkdwn format
func ConvertMarkdownToSlack(text string) string {
	// Convert **bold** to *bold*
	text = strings.ReplaceAll(text, "**", "*")
	// Slack has no headings; render them bold
	return markdownHeading.ReplaceAllString(text, "*$1*")
}
