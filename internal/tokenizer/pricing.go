package tokenizer

import "strings"

// ModelPricing holds the per-million-token costs for a model.
type ModelPricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// Pricing maps API model identifiers to their token pricing.
var Pricing = map[string]ModelPricing{
	"claude-opus-4-1-20250805":   {15.00, 75.00},
	"claude-3-5-sonnet-20241022": {3.00, 15.00},
	"claude-3-5-haiku-20241022":  {0.80, 4.00},
	"claude-3-haiku-20240307":    {0.25, 1.25},

	"claude-opus-4-1":   {15.00, 75.00},
	"claude-3-5-sonnet": {3.00, 15.00},
	"claude-3-5-haiku":  {0.80, 4.00},
	"claude-3-haiku":    {0.25, 1.25},
}

// GetPricing returns the pricing for model by exact match, then by the
// longest known prefix.
func GetPricing(model string) (ModelPricing, bool) {
	if p, ok := Pricing[model]; ok {
		return p, true
	}

	best := ""
	for name := range Pricing {
		if strings.HasPrefix(model, name) && len(name) > len(best) {
			best = name
		}
	}
	if best == "" {
		return ModelPricing{}, false
	}
	return Pricing[best], true
}

// EstimateCost returns the USD cost of tokensIn and tokensOut on model, or
// 0 for an unknown model.
func EstimateCost(model string, tokensIn, tokensOut int) float64 {
	p, ok := GetPricing(model)
	if !ok {
		return 0.0
	}
	return (float64(tokensIn)*p.InputPerMillion + float64(tokensOut)*p.OutputPerMillion) / 1_000_000
}
