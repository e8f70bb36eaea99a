package utils

import (
	"math"
	"testing"
)

func TestNormalizeL2(t *testing.T) {
	tests := []struct {
		name     string
		in       []float32
		wantNorm float64
		want     []float32
	}{
		{"3-4-5", []float32{3, 4}, 5, []float32{0.6, 0.8}},
		{"already unit", []float32{0, 1, 0}, 1, []float32{0, 1, 0}},
		{"zero unchanged", []float32{0, 0}, 0, []float32{0, 0}},
		{"empty", nil, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := append([]float32(nil), tt.in...)
			if norm := NormalizeL2(x); math.Abs(norm-tt.wantNorm) > 1e-9 {
				t.Errorf("norm = %v, want %v", norm, tt.wantNorm)
			}
			for i := range tt.want {
				if math.Abs(float64(x[i]-tt.want[i])) > 1e-6 {
					t.Errorf("x = %v, want %v", x, tt.want)
					break
				}
			}
		})
	}
}

func TestNormalizeL2_NonFiniteUnchanged(t *testing.T) {
	x := []float32{float32(math.Inf(1)), 1}
	if norm := NormalizeL2(x); !math.IsInf(norm, 1) {
		t.Errorf("norm = %v, want +Inf", norm)
	}
	if !math.IsInf(float64(x[0]), 1) || x[1] != 1 {
		t.Errorf("non-finite vector should be unchanged, got %v", x)
	}
}

func TestNormalizeL2_LargeComponentsDoNotOverflow(t *testing.T) {
	x := []float32{3e20, 4e20}
	NormalizeL2(x)
	if math.Abs(float64(x[0])-0.6) > 1e-6 || math.Abs(float64(x[1])-0.8) > 1e-6 {
		t.Errorf("got %v", x)
	}
}
