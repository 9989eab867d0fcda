package llm

import (
	"context"
	"fmt"
	"sync"
)

// Func adapts a function to the Client interface.
type Func func(ctx context.Context, systemPrompt, userPrompt string) (string, error)

// Complete sends a prompt and returns the completion.
func (f Func) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, "", prompt)
}

// CompleteWithSystem sends a prompt with a system message.
func (f Func) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f(ctx, systemPrompt, userPrompt)
}

// ScriptCall records one request seen by a Script.
type ScriptCall struct {
	System string
	User   string
}

// Script replays canned completions in order and records every request.
// Tests and offline runs use it in place of a live provider.
type Script struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   []ScriptCall
}

// NewScript builds a scripted client that returns replies in order.
func NewScript(replies ...string) *Script {
	return &Script{replies: replies}
}

// Push appends more replies to the script.
func (s *Script) Push(replies ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, replies...)
}

// Fail makes every subsequent call return err instead of a reply.
func (s *Script) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Calls returns the requests seen so far.
func (s *Script) Calls() []ScriptCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ScriptCall, len(s.calls))
	copy(out, s.calls)
	return out
}

// Complete sends a prompt and returns the next scripted reply.
func (s *Script) Complete(ctx context.Context, prompt string) (string, error) {
	return s.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem returns the next scripted reply, erroring once the
// script runs out so tests notice extra calls.
func (s *Script) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, ScriptCall{System: systemPrompt, User: userPrompt})
	if s.err != nil {
		return "", s.err
	}
	if len(s.calls) > len(s.replies) {
		return "", fmt.Errorf("script exhausted after %d replies", len(s.replies))
	}
	return s.replies[len(s.calls)-1], nil
}
