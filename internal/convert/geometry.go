package convert

import (
	"fmt"
	"math"

	"github.com/desertthunder/imgset/internal/shared"
)

// Validate returns the side length of the square image stored in columns start through end (inclusive).
//
// The column count must be a perfect square; anything else wraps [shared.ErrInvalidGeometry].
func Validate(start, end int) (int, error) {
	if start < 0 {
		return 0, fmt.Errorf("%w: imgcolstart %d is negative", shared.ErrInvalidGeometry, start)
	}
	if end < start {
		return 0, fmt.Errorf("%w: imgcolend %d is before imgcolstart %d", shared.ErrInvalidGeometry, end, start)
	}

	width := end - start + 1
	side := isqrt(width)
	if side*side != width {
		return 0, fmt.Errorf("%w: %d pixel columns", shared.ErrInvalidGeometry, width)
	}
	return side, nil
}

// isqrt is floor(sqrt(n)) for n >= 0, corrected so float rounding can never change the result.
func isqrt(n int) int {
	s := int(math.Sqrt(float64(n)))
	for s*s > n {
		s--
	}
	for (s+1)*(s+1) <= n {
		s++
	}
	return s
}
