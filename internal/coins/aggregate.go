package coins

// Classification pairs a denomination with the classifier's confidence in it.
type Classification struct {
	Denomination Denomination `json:"denomination"`
	Confidence   float64      `json:"confidence"`
}

// Passes reports whether the confidence strictly exceeds threshold.
func (c Classification) Passes(threshold float64) bool {
	return c.Confidence > threshold
}

// Accepted returns the classifications that pass threshold. A confidence
// equal to the threshold is rejected.
func Accepted(results []Classification, threshold float64) []Classification {
	accepted := make([]Classification, 0, len(results))
	for _, r := range results {
		if r.Passes(threshold) {
			accepted = append(accepted, r)
		}
	}
	return accepted
}

// Total sums the denomination values of results. The empty list totals 0.
// Callers are expected to filter with Accepted first.
func Total(results []Classification) float64 {
	var total float64
	for _, r := range results {
		total += r.Denomination.Value
	}
	return total
}
