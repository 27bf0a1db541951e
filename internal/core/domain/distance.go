package domain

import (
	"fmt"
	"math"
	"sort"
)

// CosineDistance returns 1 - cosine similarity of a and b, in [0, 2].
// A zero-magnitude vector has no direction and is at distance 1 from everything.
func CosineDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, &DimensionMismatchError{Expected: len(a), Actual: len(b)}
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("%w: cosine distance on empty vectors", ErrInvalidInput)
	}

	var dot, na2, nb2 float64
	for i := range a {
		va := float64(a[i])
		vb := float64(b[i])
		dot += va * vb
		na2 += va * va
		nb2 += vb * vb
	}
	if na2 == 0 || nb2 == 0 {
		return 1, nil
	}

	// One square root: sqrt(x*x) == x exactly, so a vector is at distance
	// 0 from itself and from its positive multiples with exact norms.
	sim := dot / math.Sqrt(na2*nb2)
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return 1 - sim, nil
}

// TopK sorts hits by ascending distance and keeps the first k. The sort is
// stable, so callers that pass hits in insertion order get ties broken by
// insertion order.
func TopK(hits []QueryHit, k int) []QueryHit {
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})
	if k >= 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}
