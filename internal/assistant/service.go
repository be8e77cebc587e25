// Package assistant runs chat conversations about the feedback data against
// an LLM provider.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/valentinpelus/voiceboard/internal/logger"
	"github.com/valentinpelus/voiceboard/pkg/feedback"
	"github.com/valentinpelus/voiceboard/pkg/llm"
	"github.com/valentinpelus/voiceboard/pkg/slack"
)

var (
	ErrNotFound           = errors.New("conversation not found")
	ErrBusy               = errors.New("conversation has a request in flight")
	ErrEmptyMessage       = errors.New("message is empty")
	ErrNothingToRetry     = errors.New("last request did not fail")
	ErrNothingToShare     = errors.New("conversation has no answer to share")
	ErrSlackNotConfigured = errors.New("slack is not configured")
)

// Turn roles. Error turns stay in the transcript but are never sent to the model.
const (
	RoleUser      = llm.RoleUser
	RoleAssistant = llm.RoleAssistant
	RoleError     = "error"
)

// Greeting opens every conversation.
const Greeting = "您好！我是腾讯理财通智能反馈分析助手。我可以帮助您：\n\n✨ 分析客诉数据趋势\n📊 生成统计报告\n🔍 查找特定问题类型\n💡 提供改进建议\n\n请告诉我您需要什么帮助？"

// Turn is one entry of a transcript
type Turn struct {
	ID        string     `json:"id"`
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"createdAt"`
	Local     bool       `json:"local,omitempty"` // shown in the UI only
	Error     *TurnError `json:"error,omitempty"`
}

// TurnError describes a failed request so the UI can offer a retry
type TurnError struct {
	StatusCode int    `json:"statusCode,omitempty"`
	Body       string `json:"body,omitempty"`
	Retriable  bool   `json:"retriable"` // false when the provider rejected the request itself
}

// Conversation is a snapshot of a chat session
type Conversation struct {
	ID        string    `json:"id"`
	Turns     []Turn    `json:"turns"`
	Busy      bool      `json:"busy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type conversation struct {
	Conversation
}

func (c *conversation) snapshot() Conversation {
	out := c.Conversation
	out.Turns = append([]Turn{}, c.Turns...)
	return out
}

// Options tune the service
type Options struct {
	// Timeout bounds blocking completions. Streams are bounded by the caller's context.
	Timeout time.Duration
	// IdleTTL removes conversations untouched for this long. Zero keeps them forever.
	IdleTTL time.Duration
}

// Service handles chat conversations
type Service struct {
	provider    llm.Provider
	store       *feedback.Store
	slackClient *slack.Client
	opts        Options
	now         func() time.Time

	mu            sync.Mutex
	conversations map[string]*conversation
}

// NewService creates a new chat service
func NewService(provider llm.Provider, store *feedback.Store, slackClient *slack.Client, opts Options) *Service {
	return &Service{
		provider:      provider,
		store:         store,
		slackClient:   slackClient,
		opts:          opts,
		now:           time.Now,
		conversations: make(map[string]*conversation),
	}
}

// ProviderName returns the backing provider's name
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

// Ping checks provider connectivity
func (s *Service) Ping(ctx context.Context) error {
	return llm.Ping(ctx, s.provider)
}

// Create starts a conversation holding only the greeting
func (s *Service) Create() Conversation {
	now := s.now()
	c := &conversation{Conversation{
		ID:        uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
		Turns: []Turn{{
			ID:        uuid.New().String(),
			Role:      RoleAssistant,
			Content:   Greeting,
			CreatedAt: now,
			Local:     true,
		}},
	}}

	s.mu.Lock()
	s.conversations[c.ID] = c
	s.mu.Unlock()
	return c.snapshot()
}

// History returns the transcript of a conversation
func (s *Service) History(id string) (Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[id]
	if !ok {
		return Conversation{}, ErrNotFound
	}
	return c.snapshot(), nil
}

// Delete drops a conversation. An in-flight request still completes but its
// result is discarded.
func (s *Service) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[id]; !ok {
		return ErrNotFound
	}
	delete(s.conversations, id)
	return nil
}

// Reset clears a conversation back to the greeting
func (s *Service) Reset(id string) (Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[id]
	if !ok {
		return Conversation{}, ErrNotFound
	}
	if c.Busy {
		return Conversation{}, ErrBusy
	}
	c.Turns = c.Turns[:0:0]
	c.Turns = append(c.Turns, Turn{ID: uuid.New().String(), Role: RoleAssistant, Content: Greeting, CreatedAt: s.now(), Local: true})
	c.UpdatedAt = s.now()
	return c.snapshot(), nil
}

// Ask sends a question and waits for the whole answer
func (s *Service) Ask(ctx context.Context, id, text string) (Turn, error) {
	return s.ask(ctx, id, text, nil)
}

// AskStream sends a question and hands every fragment of the answer to onChunk
// as it arrives. The returned turn holds the complete answer.
func (s *Service) AskStream(ctx context.Context, id, text string, onChunk func(string)) (Turn, error) {
	if onChunk == nil {
		onChunk = func(string) {}
	}
	return s.ask(ctx, id, text, onChunk)
}

func (s *Service) ask(ctx context.Context, id, text string, onChunk func(string)) (Turn, error) {
	if text == "" {
		return Turn{}, ErrEmptyMessage
	}

	s.mu.Lock()
	c, ok := s.conversations[id]
	if !ok {
		s.mu.Unlock()
		return Turn{}, ErrNotFound
	}
	if c.Busy {
		s.mu.Unlock()
		return Turn{}, ErrBusy
	}
	c.Busy = true
	c.Turns = append(c.Turns, Turn{ID: uuid.New().String(), Role: RoleUser, Content: text, CreatedAt: s.now()})
	messages := s.buildMessages(c.Turns)
	s.mu.Unlock()

	return s.complete(ctx, c, messages, onChunk)
}

// Retry re-sends the last user turn after a failed request. onChunk selects
// streaming when non-nil.
func (s *Service) Retry(ctx context.Context, id string, onChunk func(string)) (Turn, error) {
	s.mu.Lock()
	c, ok := s.conversations[id]
	if !ok {
		s.mu.Unlock()
		return Turn{}, ErrNotFound
	}
	if c.Busy {
		s.mu.Unlock()
		return Turn{}, ErrBusy
	}
	n := len(c.Turns)
	if n < 2 || c.Turns[n-1].Role != RoleError {
		s.mu.Unlock()
		return Turn{}, ErrNothingToRetry
	}
	c.Busy = true
	c.Turns = c.Turns[:n-1]
	messages := s.buildMessages(c.Turns)
	s.mu.Unlock()

	return s.complete(ctx, c, messages, onChunk)
}

// buildMessages prepends a fresh context prompt to the model-visible turns.
// Must be called with s.mu held.
func (s *Service) buildMessages(turns []Turn) []llm.Message {
	messages := []llm.Message{{Role: llm.RoleSystem, Content: llm.BuildContextPrompt(s.store.All())}}
	for _, t := range turns {
		if t.Local || t.Role == RoleError {
			continue
		}
		messages = append(messages, llm.Message{Role: t.Role, Content: t.Content})
	}
	return messages
}

func (s *Service) complete(ctx context.Context, c *conversation, messages []llm.Message, onChunk func(string)) (Turn, error) {
	var (
		answer string
		err    error
	)
	start := s.now()
	if onChunk != nil {
		answer, err = llm.StreamTo(ctx, s.provider, messages, onChunk)
	} else {
		callCtx := ctx
		if s.opts.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
			defer cancel()
		}
		answer, err = s.provider.Complete(callCtx, messages)
	}

	turn := Turn{ID: uuid.New().String(), CreatedAt: s.now()}
	if err != nil {
		turn.Role = RoleError
		turn.Content = fmt.Sprintf("请求失败：%v", err)
		turn.Error = &TurnError{Retriable: true}
		var apiErr *llm.APIError
		if errors.As(err, &apiErr) {
			turn.Error.StatusCode = apiErr.StatusCode
			turn.Error.Body = apiErr.Body
			turn.Error.Retriable = apiErr.Retriable()
		}
		logger.Warn("Assistant request failed", "conversation", c.ID, "provider", s.provider.Name(), "err", err)
	} else {
		turn.Role = RoleAssistant
		turn.Content = answer
		logger.Debug("Assistant answered", "conversation", c.ID, "chars", len(answer), "elapsed", s.now().Sub(start))
	}

	s.mu.Lock()
	c.Turns = append(c.Turns, turn)
	c.Busy = false
	c.UpdatedAt = s.now()
	s.mu.Unlock()

	return turn, err
}

// Share posts the latest answer and the question before it to Slack
func (s *Service) Share(ctx context.Context, id string) (string, error) {
	if !s.slackClient.IsConfigured() {
		return "", ErrSlackNotConfigured
	}

	s.mu.Lock()
	c, ok := s.conversations[id]
	if !ok {
		s.mu.Unlock()
		return "", ErrNotFound
	}
	var question, answer string
	for i := len(c.Turns) - 1; i >= 0; i-- {
		t := c.Turns[i]
		if answer == "" {
			if t.Role == RoleAssistant && !t.Local {
				answer = t.Content
			}
			continue
		}
		if t.Role == RoleUser {
			question = t.Content
			break
		}
	}
	s.mu.Unlock()

	if answer == "" {
		return "", ErrNothingToShare
	}

	ts, err := s.slackClient.ShareAnswer(ctx, question, answer)
	if err != nil {
		return "", fmt.Errorf("failed to share answer: %w", err)
	}
	return s.slackClient.Permalink(ts), nil
}

// Sweep removes idle conversations and returns how many were dropped
func (s *Service) Sweep() int {
	if s.opts.IdleTTL <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.opts.IdleTTL)
	removed := 0
	for id, c := range s.conversations {
		if !c.Busy && c.UpdatedAt.Before(cutoff) {
			delete(s.conversations, id)
			removed++
		}
	}
	return removed
}

// Start runs the idle sweeper until ctx is done
func (s *Service) Start(ctx context.Context) {
	if s.opts.IdleTTL <= 0 {
		return
	}
	interval := s.opts.IdleTTL / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				logger.Info("Pruned idle conversations", "count", n)
			}
		}
	}
}
