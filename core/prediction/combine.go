package prediction

import (
	"sort"
	"time"
)

// Combine returns the median of the candidate times. With an even count it
// returns the midpoint of the two middle values. The bool is false for an
// empty input.
func Combine(candidates []time.Time) (time.Time, bool) {
	n := len(candidates)
	if n == 0 {
		return time.Time{}, false
	}
	sorted := make([]time.Time, n)
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	mid := sorted[n/2]
	if n%2 == 1 {
		return mid, true
	}
	lo := sorted[n/2-1]
	return lo.Add(mid.Sub(lo) / 2), true
}
