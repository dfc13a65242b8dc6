package database

import (
	"math"
	"testing"
)

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"scaled", []float32{1, 2, 3}, []float32{2, 4, 6}, 0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 2},
		{"empty", nil, nil, 2},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineDistance(tt.a, tt.b)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("CosineDistance() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCosineDistance_SelfIsExactlyZero(t *testing.T) {
	vectors := [][]float32{
		{0.1, 0.2, 0.3},
		{1, 1},
		{0.123456, -0.98765, 3.14159, 2.71828, -1.41421},
		{1e-3, 7, -2.5, 0.333333},
	}
	for _, v := range vectors {
		if d := CosineDistance(v, v); d != 0 {
			t.Errorf("expected exact zero self-distance for %v, got %g", v, d)
		}
	}
}

func TestCosineDistance_Range(t *testing.T) {
	a := []float32{0.3, -0.7, 0.2}
	b := []float32{-0.1, 0.4, 0.9}
	d := CosineDistance(a, b)
	if d < 0 || d > 2 {
		t.Errorf("distance %v out of [0,2]", d)
	}
}
