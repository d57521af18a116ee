package analysis

import (
	"math"
	"runtime"
	"sync"

	"github.com/truework/truework/internal/models"
	"github.com/truework/truework/pkg/utils"
)

// CosineSimilarity returns the cosine similarity of two sparse vectors,
// clamped to [0,1]. If either norm is zero (a document with no recognized
// terms), the similarity is defined as 0.0, never NaN or Inf.
//
// The ratio is compared in squared form before any square root: identical
// vectors produce dot² == |a|²·|b|² (sorted-order accumulation makes the
// sums bit-identical), so identical documents score exactly 1.0 instead of
// 1.0 minus a rounding ulp.
func CosineSimilarity(a, b Vector) float64 {
	na2, nb2 := a.normSquared(), b.normSquared()
	if na2 == 0 || nb2 == 0 {
		return 0.0
	}
	dot := a.Dot(b)
	num, den := dot*dot, na2*nb2
	if num >= den {
		return 1.0
	}
	return utils.Clamp01(math.Sqrt(num / den))
}

// ComputePairs computes cosine similarity for every unordered pair (i, j),
// i < j, and returns one SimilarityPair per pair with ids[i] < ids[j].
//
// This is O(n²·v) in the number of submissions (v = average vocabulary
// overlap per pair) and dominates the cost of a whole run. That is acceptable
// for moderate batch sizes; at production scale this loop is the optimization
// target (sparse-matrix batched multiplication instead of pair-by-pair).
//
// The upper triangle is embarrassingly parallel: workers read the shared
// vectors and write disjoint output slots, so the only synchronization is the
// final join. workers <= 0 means one worker per CPU.
func ComputePairs(ids []int64, vectors []Vector, workers int) []models.SimilarityPair {
	n := len(vectors)
	if n < 2 {
		return nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	total := n * (n - 1) / 2
	pairs := make([]models.SimilarityPair, total)
	if workers > total {
		workers = total
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			for k := offset; k < total; k += workers {
				i, j := pairIndex(k, n)
				a, b := ids[i], ids[j]
				if a > b {
					a, b = b, a
				}
				pairs[k] = models.SimilarityPair{
					DocA:  a,
					DocB:  b,
					Score: CosineSimilarity(vectors[i], vectors[j]),
				}
			}
		}(w)
	}
	wg.Wait()
	return pairs
}

// pairIndex maps a flat upper-triangle index k to its (i, j) pair, i < j.
func pairIndex(k, n int) (int, int) {
	i := 0
	rowLen := n - 1
	for k >= rowLen {
		k -= rowLen
		i++
		rowLen--
	}
	return i, i + 1 + k
}
