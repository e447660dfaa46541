// Package tokens counts tokens the way the completion API's tokenizer does,
// so budget math stays conservative.
package tokens

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

type Counter struct {
	enc *tiktoken.Tiktoken
}

func NewCounter(model string) (*Counter, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, fmt.Errorf("failed to get encoding for model %s: %w", model, err)
	}
	return &Counter{enc: enc}, nil
}

func (c *Counter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}
