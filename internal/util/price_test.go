package util

import (
	"math"
	"testing"
)

func TestRoundToTick(t *testing.T) {
	tests := []struct {
		name     string
		x        float64
		tick     float64
		expected float64
	}{
		{name: "basic rounding down", x: 1.2345, tick: 0.01, expected: 1.23},
		{name: "tie rounds away from zero", x: 1.235, tick: 0.01, expected: 1.24},
		{name: "negative basic rounding", x: -1.2345, tick: 0.01, expected: -1.23},
		{name: "larger tick size", x: 1.27, tick: 0.05, expected: 1.25},
		{name: "exact multiple", x: 1.25, tick: 0.05, expected: 1.25},
		{name: "negative tick uses absolute value", x: 1.235, tick: -0.01, expected: 1.24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RoundToTick(tt.x, tt.tick)
			if math.Abs(result-tt.expected) > 1e-10 {
				t.Errorf("RoundToTick(%v, %v) = %v, expected %v", tt.x, tt.tick, result, tt.expected)
			}
		})
	}

	t.Run("zero tick returns input", func(t *testing.T) {
		if result := RoundToTick(1.2345, 0); result != 1.2345 {
			t.Errorf("RoundToTick(1.2345, 0) = %v", result)
		}
	})
	t.Run("NaN input returns unchanged", func(t *testing.T) {
		if result := RoundToTick(math.NaN(), 0.01); !math.IsNaN(result) {
			t.Errorf("RoundToTick(NaN, 0.01) = %v, expected NaN", result)
		}
	})
}

func TestClamp(t *testing.T) {
	if got := Clamp(1.5, -1, 1); got != 1 {
		t.Errorf("Clamp(1.5, -1, 1) = %v", got)
	}
	if got := Clamp(-1.5, -1, 1); got != -1 {
		t.Errorf("Clamp(-1.5, -1, 1) = %v", got)
	}
	if got := Clamp(0.25, -1, 1); got != 0.25 {
		t.Errorf("Clamp(0.25, -1, 1) = %v", got)
	}
}
