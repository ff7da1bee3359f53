// Package completion defines the text-completion port and the per-session
// conversation state.
//
// The Client is stateless: it receives the system prompt and the full turn
// history on every call. Multi-turn state lives in a Conversation owned by
// the session, so two users talking at the same time can never interleave
// transcripts.
package completion

import (
	"context"
	"errors"
)

// ErrCompletion is the single failure kind at this boundary. Transport
// errors, service errors and timeouts all wrap it; callers degrade to a
// user-visible retry message and keep their state.
var ErrCompletion = errors.New("completion request failed")

// Role identifies who produced a turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of a conversation transcript
type Turn struct {
	Role    Role
	Content string
}

// Client sends a completion request to the remote service
type Client interface {
	// Complete sends the system prompt plus the full turn history and
	// returns the generated answer.
	Complete(ctx context.Context, systemPrompt string, turns []Turn) (string, error)
}

// Ask is a stateless one-shot call: a system prompt and a single question,
// no transcript involved.
func Ask(ctx context.Context, client Client, systemPrompt, question string) (string, error) {
	return client.Complete(ctx, systemPrompt, []Turn{{Role: RoleUser, Content: question}})
}

// Conversation is an ongoing exchange: a system prompt and an ordered
// transcript. One Conversation belongs to exactly one session.
type Conversation struct {
	SystemPrompt string
	Turns        []Turn
}

// NewConversation starts an empty conversation with the given system prompt
func NewConversation(systemPrompt string) *Conversation {
	return &Conversation{SystemPrompt: systemPrompt}
}

// SetSystemPrompt replaces the active system prompt. The transcript is kept.
func (c *Conversation) SetSystemPrompt(prompt string) {
	c.SystemPrompt = prompt
}

// Continue appends userText as a user turn, sends the whole transcript, and
// appends the answer as an assistant turn. On failure the user turn is
// rolled back so the transcript is unchanged and the user may simply retry.
func (c *Conversation) Continue(ctx context.Context, client Client, userText string) (string, error) {
	c.Turns = append(c.Turns, Turn{Role: RoleUser, Content: userText})

	answer, err := client.Complete(ctx, c.SystemPrompt, c.Turns)
	if err != nil {
		c.Turns = c.Turns[:len(c.Turns)-1]
		return "", err
	}

	c.Turns = append(c.Turns, Turn{Role: RoleAssistant, Content: answer})
	return answer, nil
}
