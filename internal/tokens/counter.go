// Package tokens counts model tokens with a tiktoken encoding.
package tokens

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Counter reports how many tokens a text occupies.
type Counter interface {
	Count(text string) int
}

// TiktokenCounter counts tokens with a BPE encoding.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewCounter accepts either a model name ("gpt-3.5-turbo") or an encoding name ("cl100k_base").
func NewCounter(model string) (*TiktokenCounter, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(model)
		if err != nil {
			return nil, fmt.Errorf("unknown tiktoken model or encoding %q: %w", model, err)
		}
	}
	return &TiktokenCounter{enc: enc}, nil
}

// Count returns the number of tokens in text.
func (c *TiktokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}
