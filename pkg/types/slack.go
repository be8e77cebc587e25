package types

// SlackMessage is the body of chat.postMessage and incoming-webhook calls
// Reference: https://api.slack.com/methods/chat.postMessage
type SlackMessage struct {
	Channel     string       `json:"channel,omitempty"`
	Text        string       `json:"text,omitempty"` // notification fallback when blocks are present
	Blocks      []SlackBlock `json:"blocks,omitempty"`
	ThreadTS    string       `json:"thread_ts,omitempty"`
	UnfurlLinks bool         `json:"unfurl_links,omitempty"`
}

// SlackBlock represents a Slack Block Kit element
type SlackBlock struct {
	Type     string            `json:"type"`
	Text     *SlackTextObject  `json:"text,omitempty"`
	Fields   []SlackTextObject `json:"fields,omitempty"`
	Elements []SlackTextObject `json:"elements,omitempty"`
}

// SlackTextObject represents text within a Slack block
type SlackTextObject struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// MarkdownSection builds a section block holding mrkdwn text.
func MarkdownSection(text string) SlackBlock {
	return SlackBlock{Type: "section", Text: &SlackTextObject{Type: "mrkdwn", Text: text}}
}

// HeaderBlock builds a plain-text header block.
func HeaderBlock(text string) SlackBlock {
	return SlackBlock{Type: "header", Text: &SlackTextObject{Type: "plain_text", Text: text}}
}

// SlackResponse represents the response from Slack API
type SlackResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	TS      string `json:"ts,omitempty"`
	Channel string `json:"channel,omitempty"`

	// auth.test only
	Team   string `json:"team,omitempty"`
	TeamID string `json:"team_id,omitempty"`
	User   string `json:"user,omitempty"`
}
