package vector

import (
	"errors"
	"math"
	"testing"

	"github.com/hyperjump/shoroku/internal/models"
)

func TestL2Distance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"unit axis", []float32{1, 0}, []float32{0, 1}, math.Sqrt2},
		{"3-4-5", []float32{0, 0}, []float32{3, 4}, 5},
		{"empty", []float32{}, []float32{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := L2Distance(tt.a, tt.b)
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("L2Distance() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestL2Distance_dimensionMismatch(t *testing.T) {
	_, err := L2Distance([]float32{1, 2}, []float32{1, 2, 3})
	if !errors.Is(err, models.ErrDimensionMismatch) {
		t.Errorf("err = %v, want ErrDimensionMismatch", err)
	}
}

func TestNonFinite(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(-1))
	tests := []struct {
		in   []float32
		want int
	}{
		{[]float32{1, 2, 3}, -1},
		{nil, -1},
		{[]float32{nan, 0}, 0},
		{[]float32{0, 1, inf}, 2},
	}
	for _, tt := range tests {
		if got := NonFinite(tt.in); got != tt.want {
			t.Errorf("NonFinite(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	Normalize(v)
	if math.Abs(L2Norm(v)-1) > 1e-6 {
		t.Errorf("norm after Normalize = %v", L2Norm(v))
	}
	zero := []float32{0, 0}
	Normalize(zero)
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("zero vector changed: %v", zero)
	}
}

func TestEncodeDecodeEmbedding(t *testing.T) {
	in := []float32{0, -1.5, float32(math.Pi), math.MaxFloat32, math.SmallestNonzeroFloat32}
	blob := EncodeEmbedding(in)
	if len(blob) != len(in)*4 {
		t.Fatalf("blob length = %d", len(blob))
	}
	out, err := DecodeEmbedding(blob)
	if err != nil {
		t.Fatal(err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("component %d = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestDecodeEmbedding_badLength(t *testing.T) {
	if _, err := DecodeEmbedding([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated blob")
	}
}
