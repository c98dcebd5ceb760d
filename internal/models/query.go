package models

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// MaxQuestionLength is the longest accepted question in characters.
	MaxQuestionLength = 1000
	// MinQuestionLength is the shortest accepted question after trimming.
	MinQuestionLength = 3
)

// ChatMessage is one turn of conversation history.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of a chat call.
type ChatRequest struct {
	Question string        `json:"question"`
	History  []ChatMessage `json:"history,omitempty"`
}

// ChatResponse is the answer plus the sources used to ground it.
type ChatResponse struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Validate checks the question bounds and history roles.
func (r *ChatRequest) Validate() error {
	if err := ValidateQuestion(r.Question); err != nil {
		return err
	}
	for i, m := range r.History {
		if m.Role != "user" && m.Role != "assistant" {
			return fmt.Errorf("%w: history[%d] role must be user or assistant", ErrInvalidQuestion, i)
		}
	}
	return nil
}

// ValidateQuestion rejects empty, too short, or too long questions.
func ValidateQuestion(q string) error {
	if utf8.RuneCountInString(q) > MaxQuestionLength {
		return fmt.Errorf("%w: question too long (max %d characters)", ErrInvalidQuestion, MaxQuestionLength)
	}
	q = strings.TrimSpace(q)
	if q == "" {
		return fmt.Errorf("%w: question cannot be empty", ErrInvalidQuestion)
	}
	if utf8.RuneCountInString(q) < MinQuestionLength {
		return fmt.Errorf("%w: question too short", ErrInvalidQuestion)
	}
	return nil
}
