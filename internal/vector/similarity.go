package vector

import "math"

// dot is the inner product of two rows of equal length. On unit vectors it is the cosine similarity.
func dot(a, b []float32) float64 {
	b = b[:len(a)]
	var s0, s1 float64
	i := 0
	for ; i+1 < len(a); i += 2 {
		s0 += float64(a[i]) * float64(b[i])
		s1 += float64(a[i+1]) * float64(b[i+1])
	}
	if i < len(a) {
		s0 += float64(a[i]) * float64(b[i])
	}
	return s0 + s1
}

// l2Norm returns the Euclidean length of x.
func l2Norm(x []float32) float64 {
	return math.Sqrt(dot(x, x))
}
