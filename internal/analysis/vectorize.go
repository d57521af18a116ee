package analysis

import (
	"math"
	"sort"
)

// Vector is a sparse term-weight mapping for one submission. Terms absent
// from the map have implicit weight 0. Vectors are not length-normalized;
// the similarity step normalizes when it computes cosine.
type Vector map[string]float64

// Vocabulary maps each term seen in the batch to the number of submissions
// containing it (document frequency).
type Vocabulary map[string]int

// Vectorize builds TF-IDF vectors over a shared vocabulary. The vocabulary is
// derived from the whole batch, so vectors are only comparable within one run.
// idf = log((N+1)/(df+1)) + 1, smoothed so every known term gets a positive
// weight and no division by zero occurs. A batch of fewer than 2 documents
// still produces valid vectors; it simply yields zero pairs downstream.
func Vectorize(docs [][]string) (Vocabulary, []Vector) {
	n := len(docs)
	vocab := make(Vocabulary)
	for _, tokens := range docs {
		seen := make(map[string]bool, len(tokens))
		for _, t := range tokens {
			if !seen[t] {
				seen[t] = true
				vocab[t]++
			}
		}
	}

	vectors := make([]Vector, n)
	for i, tokens := range docs {
		tf := make(map[string]int, len(tokens))
		for _, t := range tokens {
			tf[t]++
		}
		vec := make(Vector, len(tf))
		for term, count := range tf {
			idf := math.Log(float64(n+1)/float64(vocab[term]+1)) + 1
			vec[term] = float64(count) * idf
		}
		vectors[i] = vec
	}
	return vocab, vectors
}

// Norm returns the Euclidean norm of v.
func (v Vector) Norm() float64 {
	return math.Sqrt(v.normSquared())
}

// normSquared returns the sum of squared weights. Terms are accumulated in
// sorted order: map iteration order is randomized per loop, and equal
// vectors must produce bit-identical sums so identical documents compare
// to exactly 1.0.
func (v Vector) normSquared() float64 {
	var sum float64
	for _, term := range v.sortedTerms() {
		w := v[term]
		sum += w * w
	}
	return sum
}

// Dot returns the dot product of v and other, iterating the smaller map.
// Same sorted-order accumulation as normSquared.
func (v Vector) Dot(other Vector) float64 {
	a, b := v, other
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for _, term := range a.sortedTerms() {
		if wb, ok := b[term]; ok {
			dot += a[term] * wb
		}
	}
	return dot
}

func (v Vector) sortedTerms() []string {
	terms := make([]string, 0, len(v))
	for term := range v {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}
