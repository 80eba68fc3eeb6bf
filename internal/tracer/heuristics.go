package tracer

// MaxCharDistance is the penalty for every character one string has and the
// other lacks.
const MaxCharDistance = 0xFFFF

// LeftAlignmentDistance compares a and b character by character from the
// left. It is zero only when the strings are equal.
func LeftAlignmentDistance(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	n := min(len(ra), len(rb))

	dist := float64(abs(len(ra)-len(rb))) * MaxCharDistance
	for i := 0; i < n; i++ {
		dist += float64(abs(int(ra[i]) - int(rb[i])))
	}
	return dist
}

// Normalize maps a non-negative distance into [0, 1).
func Normalize(d float64) float64 {
	if d <= 0 {
		return 0
	}
	return d / (d + 1)
}

// EqualityDistance returns the distance-to-true and distance-to-false for
// the branch "a == b".
func EqualityDistance(a, b string) (toTrue, toFalse float64) {
	if a == b {
		return 0, 1
	}
	return Normalize(LeftAlignmentDistance(a, b)), 0
}

// ContainsDistance returns the distances for "target in items": to-true is
// the closest candidate's distance.
func ContainsDistance(items []string, target string) (toTrue, toFalse float64) {
	if len(items) == 0 {
		return 1, 0
	}
	best := 1.0
	for _, it := range items {
		if it == target {
			return 0, 1
		}
		if d := Normalize(LeftAlignmentDistance(it, target)); d < best {
			best = d
		}
	}
	return best, 0
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
