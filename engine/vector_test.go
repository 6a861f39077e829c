package engine

import (
	"math"
	"testing"
)

func TestVectorWeightsSumToOne(t *testing.T) {
	for xi := 0; xi <= 20; xi++ {
		for yi := 0; yi <= 20; yi++ {
			x := float32(xi) / 20
			y := float32(yi) / 20
			w := vectorWeights(x, y)
			sum := float64(w[0]) + float64(w[1]) + float64(w[2]) + float64(w[3])
			if math.Abs(sum-1) > 1e-6 {
				t.Fatalf("weights at (%v, %v) sum to %v", x, y, sum)
			}
		}
	}
}

func TestVectorWeightsCorners(t *testing.T) {
	tests := []struct {
		x, y   float32
		corner int
	}{
		{0, 0, 0},
		{1, 0, 1},
		{0, 1, 2},
		{1, 1, 3},
	}
	for _, test := range tests {
		w := vectorWeights(test.x, test.y)
		for i, v := range w {
			want := float32(0)
			if i == test.corner {
				want = 1
			}
			if v != want {
				t.Errorf("at (%v, %v) corner %d weight = %v, want %v", test.x, test.y, i, v, want)
			}
		}
	}
}

func TestVectorWeightsZeroAlongOppositeEdge(t *testing.T) {
	// Corner (0,0) must contribute nothing anywhere on the x = 1 edge.
	for yi := 0; yi <= 10; yi++ {
		w := vectorWeights(1, float32(yi)/10)
		if w[0] != 0 || w[2] != 0 {
			t.Fatalf("left corners nonzero on the right edge: %v", w)
		}
	}
}
