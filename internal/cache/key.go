package cache

import (
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"
)

// Params are the generation parameters that take part in a fingerprint.
type Params struct {
	MaxTokens   int
	Temperature float64
}

// Fingerprint computes the hex SHA-256 cache key for a request. The prompt
// is normalized first: CRLF line endings become LF and outer whitespace is
// trimmed, so cosmetically different copies of one prompt share an entry.
func Fingerprint(model, prompt string, p Params) string {
	h := sha256.New()

	h.Write([]byte(model))
	h.Write([]byte{0})

	h.Write([]byte(NormalizePrompt(prompt)))
	h.Write([]byte{0})

	h.Write([]byte(strconv.Itoa(p.MaxTokens)))
	h.Write([]byte{0})

	h.Write([]byte(strconv.FormatFloat(p.Temperature, 'f', 4, 64)))

	return fmt.Sprintf("%x", h.Sum(nil))
}

// NormalizePrompt folds CRLF to LF and trims surrounding whitespace.
func NormalizePrompt(prompt string) string {
	return strings.TrimSpace(strings.ReplaceAll(prompt, "\r\n", "\n"))
}
