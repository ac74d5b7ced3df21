package embedding

import "math"

// CosineSimilarity returns the cosine similarity of two vectors clamped to
// [0, 1]. Negative correlation is treated the same as orthogonality, which is
// all the retrieval threshold logic downstream cares about. Mismatched lengths
// and zero vectors score 0 rather than erroring so a single malformed row
// cannot abort a batch.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, magA, magB float64
	for i := range a {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		magA += x * x
		magB += y * y
	}
	if magA == 0 || magB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(magA) * math.Sqrt(magB))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
