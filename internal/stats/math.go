package stats

import "slices"

// Number is the element type accepted by Median and Mean.
type Number interface {
	~int | ~float64
}

// Median returns the middle value, or the mean of the two middle values for an even count.
// values is left untouched. An empty slice yields 0.
func Median[T Number](values []T) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Sorted(slices.Values(values))
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return float64(sorted[mid])
	}
	return (float64(sorted[mid-1]) + float64(sorted[mid])) / 2
}

// Mean returns the arithmetic mean, 0 for an empty slice.
func Mean[T Number](values []T) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += float64(v)
	}
	return sum / float64(len(values))
}
