// Package budget measures the token footprint of formatted messages so
// callers can see what the context machinery costs them per send.
package budget

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/odvcencio/spyglass/pkg/message"
)

var (
	// tokenEncoder is the global tiktoken encoder
	tokenEncoder *tiktoken.Tiktoken
	encoderOnce  sync.Once
	encoderErr   error
)

// initTokenEncoder initializes the tiktoken encoder (lazy initialization)
func initTokenEncoder() error {
	encoderOnce.Do(func() {
		tokenEncoder, encoderErr = tiktoken.GetEncoding("cl100k_base")
	})
	return encoderErr
}

// CountTokens counts the number of tokens in a text using tiktoken, falling
// back to a chars/4 estimate when the encoding is unavailable.
func CountTokens(text string) int {
	if err := initTokenEncoder(); err != nil {
		return estimateTokens(text)
	}
	return len(tokenEncoder.Encode(text, nil, nil))
}

// estimateTokens approximates token count as one token per four characters.
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// Report breaks down the footprint of one formatted message.
type Report struct {
	Parts        int            `json:"parts"`
	TotalTokens  int            `json:"total_tokens"`
	PromptTokens int            `json:"prompt_tokens"`
	PerType      map[string]int `json:"per_type,omitempty"`    // tokens by part type
	PerContext   map[string]int `json:"per_context,omitempty"` // tokens by context_type
}

// Measure counts tokens across a part list. File and agent reference parts
// are metadata-weight: their path or name is counted, not the file content
// behind them.
func Measure(parts []message.Part) Report {
	r := Report{
		Parts:      len(parts),
		PerType:    make(map[string]int),
		PerContext: make(map[string]int),
	}

	for i, part := range parts {
		var tokens int
		switch part.Type {
		case message.PartText:
			tokens = CountTokens(part.Text)
			if i == 0 {
				r.PromptTokens = tokens
			}
		case message.PartFile:
			if part.File != nil {
				tokens = CountTokens(part.File.Path + part.File.DisplayName)
			}
		case message.PartAgent:
			if part.Agent != nil {
				tokens = CountTokens(part.Agent.Name)
			}
		case message.PartSynthetic:
			if part.Synthetic != nil {
				tokens = CountTokens(part.Synthetic.Payload)
				r.PerContext[part.Synthetic.ContextType] += tokens
			}
		}
		r.PerType[string(part.Type)] += tokens
		r.TotalTokens += tokens
	}
	return r
}

// Exceeds reports whether the message is over a token limit. A non-positive
// limit never trips.
func (r Report) Exceeds(limit int) bool {
	return limit > 0 && r.TotalTokens > limit
}
