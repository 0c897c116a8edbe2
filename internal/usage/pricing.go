// Package usage provides fire-and-forget token metering for agent calls.
package usage

import "fmt"

// ModelPricing is USD per 1M tokens.
type ModelPricing struct {
	InputPer1M  float64
	OutputPer1M float64
}

// modelPricing reflects OpenAI list prices; unknown models fall back to the
// gpt-4o baseline.
var modelPricing = map[string]ModelPricing{
	"gpt-4o":        {InputPer1M: 2.50, OutputPer1M: 10.00},
	"gpt-4o-mini":   {InputPer1M: 0.150, OutputPer1M: 0.600},
	"gpt-4-turbo":   {InputPer1M: 10.00, OutputPer1M: 30.00},
	"gpt-4":         {InputPer1M: 30.00, OutputPer1M: 60.00},
	"gpt-3.5-turbo": {InputPer1M: 0.50, OutputPer1M: 1.50},
	"o1":            {InputPer1M: 15.00, OutputPer1M: 60.00},
	"o1-mini":       {InputPer1M: 3.00, OutputPer1M: 12.00},
}

var defaultPricing = ModelPricing{InputPer1M: 2.50, OutputPer1M: 10.00}

// CalculateCost returns the USD cost of one call.
func CalculateCost(model string, inputTokens, outputTokens int64) float64 {
	pricing, ok := modelPricing[model]
	if !ok {
		pricing = defaultPricing
	}
	inputCost := float64(inputTokens) / 1_000_000 * pricing.InputPer1M
	outputCost := float64(outputTokens) / 1_000_000 * pricing.OutputPer1M
	return inputCost + outputCost
}

// FormatCost renders a cost for logs and reports.
func FormatCost(cost float64) string {
	if cost == 0 {
		return "$0.00"
	}
	if cost < 0.01 {
		return fmt.Sprintf("$%.4f", cost)
	}
	return fmt.Sprintf("$%.2f", cost)
}

// FormatTokens renders a token count compactly.
func FormatTokens(tokens int64) string {
	if tokens < 1000 {
		return fmt.Sprintf("%d", tokens)
	}
	if tokens < 1_000_000 {
		return fmt.Sprintf("%.1fK", float64(tokens)/1000)
	}
	return fmt.Sprintf("%.2fM", float64(tokens)/1_000_000)
}
