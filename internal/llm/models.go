// Package llm talks to hosted language models. It defines the model
// catalogue, the Caller contract with its three-way Result, the Anthropic
// Messages API client, and the retry and circuit-breaker primitives used by
// the assistant fallback chain.
package llm

import (
	"fmt"
	"strings"
)

// Model identifies a catalogue entry. Lower values are more capable.
type Model int

const (
	// ModelOpus is the flagship model.
	ModelOpus Model = iota
	// ModelSonnet is the balanced default.
	ModelSonnet
	// ModelHaiku is the fast model.
	ModelHaiku
	// ModelLegacyHaiku is the emergency model used last.
	ModelLegacyHaiku
)

// ModelInfo describes a catalogue entry.
type ModelInfo struct {
	Key         string `json:"key"`
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Speed       string `json:"speed"`
	Quality     string `json:"quality"`
	Cost        string `json:"cost"`
}

var catalogue = [...]ModelInfo{
	ModelOpus: {
		Key:         "opus",
		ID:          "claude-opus-4-1-20250805",
		DisplayName: "Claude Opus 4.1",
		Speed:       "slow",
		Quality:     "highest",
		Cost:        "high",
	},
	ModelSonnet: {
		Key:         "sonnet",
		ID:          "claude-3-5-sonnet-20241022",
		DisplayName: "Claude 3.5 Sonnet",
		Speed:       "fast",
		Quality:     "high",
		Cost:        "medium",
	},
	ModelHaiku: {
		Key:         "haiku",
		ID:          "claude-3-5-haiku-20241022",
		DisplayName: "Claude 3.5 Haiku",
		Speed:       "very fast",
		Quality:     "good",
		Cost:        "low",
	},
	ModelLegacyHaiku: {
		Key:         "legacy-haiku",
		ID:          "claude-3-haiku-20240307",
		DisplayName: "Claude 3 Haiku",
		Speed:       "very fast",
		Quality:     "basic",
		Cost:        "very low",
	},
}

var aliases = map[string]Model{
	"latest":   ModelSonnet,
	"fallback": ModelLegacyHaiku,
}

// Models returns every model in descending capability order.
func Models() []Model {
	return []Model{ModelOpus, ModelSonnet, ModelHaiku, ModelLegacyHaiku}
}

// Valid reports whether m is a catalogue entry.
func (m Model) Valid() bool {
	return m >= ModelOpus && m <= ModelLegacyHaiku
}

// Info returns the catalogue entry for m.
func (m Model) Info() ModelInfo {
	if !m.Valid() {
		return ModelInfo{Key: fmt.Sprintf("model(%d)", int(m))}
	}
	return catalogue[m]
}

// ID returns the default API identifier of m.
func (m Model) ID() string { return m.Info().ID }

// String returns the config key of m.
func (m Model) String() string { return m.Info().Key }

// MarshalText implements encoding.TextMarshaler.
func (m Model) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("llm: invalid model %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Model) UnmarshalText(text []byte) error {
	parsed, err := ParseModel(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseModel resolves a config key, alias or API identifier to a Model.
func ParseModel(s string) (Model, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if m, ok := aliases[key]; ok {
		return m, nil
	}
	for _, m := range Models() {
		info := catalogue[m]
		if key == info.Key || key == info.ID {
			return m, nil
		}
	}
	return 0, fmt.Errorf("llm: unknown model %q", s)
}

// Chain returns the order in which models are tried for a request that
// prefers the given model: the preferred model first, then the others in
// descending capability.
func Chain(preferred Model) []Model {
	chain := make([]Model, 0, len(catalogue))
	if preferred.Valid() {
		chain = append(chain, preferred)
	}
	for _, m := range Models() {
		if m != preferred {
			chain = append(chain, m)
		}
	}
	return chain
}
