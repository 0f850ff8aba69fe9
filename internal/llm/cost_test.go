package llm

import (
	"math"
	"testing"
)

func TestCost(t *testing.T) {
	tests := []struct {
		name  string
		usage Usage
		want  float64
	}{
		{"zero", Usage{}, 0},
		{"a million each", Usage{InputTokens: 1_000_000, OutputTokens: 1_000_000}, 0.75},
		{"typical director call", Usage{InputTokens: 150_000, OutputTokens: 10_000}, 0.0285},
		{"output only", Usage{OutputTokens: 500_000}, 0.30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cost(tt.usage); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cost(%+v) = %v, want %v", tt.usage, got, tt.want)
			}
		})
	}
}
