// Package chat assembles prompts from retrieved context and asks the chat model to answer.
package chat

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/portfolio-rag/internal/models"
	"github.com/hyperjump/portfolio-rag/pkg/utils"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	// MaxHistoryMessages is how many trailing history turns are sent to the model.
	MaxHistoryMessages = 6
	// MaxContextChars bounds the context block inside the user message.
	MaxContextChars = 3000
	// TruncatedMarker is appended to a context that was cut.
	TruncatedMarker = "\n\n[Content continues but truncated for brevity]"
)

// SystemPrompt makes the model answer in the first person from the context only.
const SystemPrompt = `You are Moez's career assistant. Speak as "I" (Moez). Answer using ONLY the provided context about my background, experience, and career.

If something isn't in the context, say you don't have that information available. Be concise and practical in your responses.

If you see truncated or incomplete information (like "[Context truncated...]" or incomplete sentences), do not mention or reference that incomplete information in your answer. Only use complete, clear information from the context.

Do not include a "Sources:" section in your response. Do not cite or mention document names, filenames, or sources within your answer. Just provide a natural, conversational response based on the context.

Do not invent or make up any details not explicitly mentioned in the context but you can paraphrase them to build meaningful paragraphs.`

const userFooter = `IMPORTANT: Answer as Moez speaking in first person. DO NOT include any "Sources:" section, DO NOT mention document names, filenames, or citations. Just provide a natural conversational response based on the context above.`

// PromptBuilder turns a question, its context, and prior turns into chat messages.
type PromptBuilder struct {
	maxContextChars int
	maxHistory      int
}

// NewPromptBuilder creates a builder. Non-positive limits use the defaults.
func NewPromptBuilder(maxContextChars, maxHistory int) *PromptBuilder {
	if maxContextChars <= 0 {
		maxContextChars = MaxContextChars
	}
	if maxHistory <= 0 {
		maxHistory = MaxHistoryMessages
	}
	return &PromptBuilder{maxContextChars: maxContextChars, maxHistory: maxHistory}
}

// BuildMessages returns the system prompt, the trimmed history, and the user message.
func (b *PromptBuilder) BuildMessages(question, context string, history []models.ChatMessage) []models.ChatMessage {
	limited := LimitHistory(history, b.maxHistory)
	messages := make([]models.ChatMessage, 0, len(limited)+2)
	messages = append(messages, models.ChatMessage{Role: RoleSystem, Content: SystemPrompt})
	messages = append(messages, limited...)
	messages = append(messages, models.ChatMessage{Role: RoleUser, Content: b.UserMessage(question, context)})
	return messages
}

// UserMessage combines the (possibly truncated) context with the question.
func (b *PromptBuilder) UserMessage(question, context string) string {
	context, _ = TruncateContext(context, b.maxContextChars)
	return fmt.Sprintf("%s\n\n**Question:** %s\n\n%s", context, question, userFooter)
}

// LimitHistory keeps the last max messages.
func LimitHistory(history []models.ChatMessage, max int) []models.ChatMessage {
	if len(history) <= max {
		return history
	}
	return history[len(history)-max:]
}

// TruncateContext cuts context to max characters and reports whether it did. The cut falls
// after the last period when that period lies beyond 80% of max.
func TruncateContext(context string, max int) (string, bool) {
	cut := utils.RuneOffset(context, max)
	if cut >= len(context) {
		return context, false
	}
	truncated := context[:cut]
	if last := strings.LastIndexByte(truncated, '.'); last >= 0 && utf8.RuneCountInString(truncated[:last]) > max*8/10 {
		truncated = truncated[:last+1]
	}
	return truncated + TruncatedMarker, true
}
