package common

import "cmp"

// Coalesce picks the first argument that is not the zero value of T, falling back to zero.
// Config loading uses it to layer user values over defaults.
//
// Parameters:
//   - values: candidates in priority order
//
// Returns:
//   - T: the first non-zero candidate
func Coalesce[T comparable](values ...T) T {
	var zero T
	for i := range values {
		if values[i] != zero {
			return values[i]
		}
	}
	return zero
}

// Clamp limits v to [lo, hi]. lo wins when the bounds are inverted.
func Clamp[T cmp.Ordered](v, lo, hi T) T {
	return max(lo, min(hi, v))
}
