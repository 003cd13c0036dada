// Package models defines the completion interface the assistant uses for
// open-ended conversation, implemented per provider in its subpackages.
package models

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyCompletion is returned when a provider answers with no text.
var ErrEmptyCompletion = errors.New("empty completion")

// Role identifies the speaker of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one prior utterance in the conversation.
type Message struct {
	Role    Role
	Content string
}

// Request is a single completion call.
type Request struct {
	// System is the persona instruction.
	System    string
	Messages  []Message
	MaxTokens int
	// Temperature is left to the provider default when nil.
	Temperature *float64
}

// Completer produces the assistant's next message.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
	Name() string
}

// JoinText concatenates non-empty text parts and trims the result.
func JoinText(parts []string) (string, error) {
	text := strings.TrimSpace(strings.Join(parts, ""))
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}
