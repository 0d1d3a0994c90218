package coins

import (
	"math"
	"math/rand"
	"testing"
)

const epsilon = 1e-9

func classification(t *testing.T, class string, confidence float64) Classification {
	t.Helper()
	d, err := DefaultRegistry().Lookup(class)
	if err != nil {
		t.Fatalf("Lookup(%s) failed: %v", class, err)
	}
	return Classification{Denomination: d, Confidence: confidence}
}

func TestTotal_Empty(t *testing.T) {
	if got := Total(nil); got != 0 {
		t.Errorf("Total(nil): got %v, want 0", got)
	}
	if got := Total([]Classification{}); got != 0 {
		t.Errorf("Total(empty): got %v, want 0", got)
	}
}

func TestTotal_Single(t *testing.T) {
	got := Total([]Classification{classification(t, "50_cents", 0.9)})
	if math.Abs(got-0.5) > epsilon {
		t.Errorf("Total: got %v, want 0.5", got)
	}
}

func TestTotal_OrderIndependent(t *testing.T) {
	results := []Classification{
		classification(t, "1_real", 0.9),
		classification(t, "50_cents", 0.8),
		classification(t, "25_cents", 0.95),
		classification(t, "10_cents", 0.71),
		classification(t, "5_cents", 0.99),
		classification(t, "10_cents", 0.85),
	}
	want := Total(results)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := make([]Classification, len(results))
		copy(shuffled, results)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})

		if got := Total(shuffled); math.Abs(got-want) > epsilon {
			t.Errorf("permutation %d: got %v, want %v", i, got, want)
		}
	}
}

func TestAccepted_ThresholdBoundary(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		want       bool
	}{
		{"below", 0.6, false},
		{"equal", 0.7, false},
		{"marginally above", 0.7000001, true},
		{"well above", 0.99, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := classification(t, "1_real", tt.confidence)
			if got := c.Passes(0.7); got != tt.want {
				t.Errorf("Passes(%v): got %v, want %v", tt.confidence, got, tt.want)
			}
			got := Accepted([]Classification{c}, 0.7)
			if (len(got) == 1) != tt.want {
				t.Errorf("confidence %v: accepted=%v, want %v", tt.confidence, len(got) == 1, tt.want)
			}
		})
	}
}

func TestAccepted_Total(t *testing.T) {
	results := []Classification{
		classification(t, "1_real", 0.9),
		classification(t, "50_cents", 0.75),
		classification(t, "25_cents", 0.6),
	}

	got := Total(Accepted(results, 0.7))
	if math.Abs(got-1.5) > epsilon {
		t.Errorf("Total(Accepted): got %v, want 1.5", got)
	}
}
