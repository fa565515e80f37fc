package semantic

import "math"

// l2Normalize scales the vector to unit length in place. Zero vectors are
// left untouched. Vectors are normalized on ingest and on query so cosine
// distance reduces to 1 - dot product.
func l2Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}

// cosineDistance assumes both vectors are unit length: 0 means identical,
// values near 1 mean unrelated. Mismatched lengths compare only the shared
// prefix, which yields a large distance rather than a panic.
func cosineDistance(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	return 1 - dot
}
