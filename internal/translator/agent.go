package translator

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNothingToTranslate is returned when the source text is empty.
var ErrNothingToTranslate = errors.New("nothing to translate")

// DefaultAgentTimeout bounds a single conversation-agent call. LLM-backed
// agents can take a while on long changelogs.
const DefaultAgentTimeout = 60 * time.Second

// Converser is the conversation API the agent needs. *hass.Client
// satisfies it.
type Converser interface {
	Converse(ctx context.Context, agentID, text string) (string, error)
}

// Agent translates release notes through a Home Assistant conversation
// agent.
type Agent struct {
	client  Converser
	agentID string
	prompt  string
	limiter *RateLimiter
	timeout time.Duration
}

// AgentOption configures an Agent.
type AgentOption func(*Agent)

// WithAgentTimeout overrides the per-call timeout.
func WithAgentTimeout(d time.Duration) AgentOption {
	return func(a *Agent) {
		a.timeout = d
	}
}

// WithAgentLimiter spaces out agent calls.
func WithAgentLimiter(l *RateLimiter) AgentOption {
	return func(a *Agent) {
		a.limiter = l
	}
}

// NewAgent creates an Agent that sends prompt-prefixed text to agentID.
func NewAgent(client Converser, agentID, prompt string, opts ...AgentOption) *Agent {
	a := &Agent{
		client:  client,
		agentID: agentID,
		prompt:  prompt,
		timeout: DefaultAgentTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AgentID returns the configured conversation agent.
func (a *Agent) AgentID() string {
	return a.agentID
}

// BuildPrompt joins the instruction prompt and the source text with a
// blank line.
func (a *Agent) BuildPrompt(text string) string {
	return strings.TrimSpace(a.prompt) + "\n\n" + text
}

// Translate sends the text to the agent and returns the translated reply.
func (a *Agent) Translate(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNothingToTranslate
	}

	if a.limiter != nil {
		if err := a.limiter.WaitAgent(ctx); err != nil {
			return "", err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	reply, err := a.client.Converse(ctx, a.agentID, a.BuildPrompt(text))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}
