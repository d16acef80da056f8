// Package tokenizer estimates prompt sizes and costs for the request log.
package tokenizer

import (
	"errors"
	"sync"
	"unicode/utf8"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Encoding is the tiktoken encoding used as a proxy for Claude token counts.
const Encoding = "cl100k_base"

// Tokenizer counts tokens with a lazily loaded tiktoken encoder. When the
// encoding cannot be loaded (for example without network access on first
// use) it falls back to a characters-per-token heuristic.
type Tokenizer struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
	err  error
}

var errHeuristicOnly = errors.New("tokenizer: encoder disabled")

// New creates a Tokenizer. The encoding is loaded on first use.
func New() *Tokenizer {
	return &Tokenizer{}
}

// NewHeuristic creates a Tokenizer that never loads the encoding.
func NewHeuristic() *Tokenizer {
	t := &Tokenizer{err: errHeuristicOnly}
	t.once.Do(func() {})
	return t
}

func (t *Tokenizer) encoder() (*tiktoken.Tiktoken, error) {
	t.once.Do(func() {
		t.enc, t.err = tiktoken.GetEncoding(Encoding)
	})
	return t.enc, t.err
}

// Exact reports whether counts come from the tiktoken encoder rather than
// the heuristic.
func (t *Tokenizer) Exact() bool {
	_, err := t.encoder()
	return err == nil
}

// CountTokens returns the estimated token count of text.
func (t *Tokenizer) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	enc, err := t.encoder()
	if err != nil {
		return heuristicCount(text)
	}
	return len(enc.Encode(text, nil, nil))
}

// heuristicCount assumes roughly four characters per token.
func heuristicCount(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}
