package analysis

import (
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	a := Vector{"apple": 1, "banana": 2}
	b := Vector{"apple": 2, "banana": 4}
	if got := CosineSimilarity(a, b); math.Abs(got-1.0) > 1e-12 {
		t.Errorf("parallel vectors: got %v, want 1.0", got)
	}
	if got, want := CosineSimilarity(a, b), CosineSimilarity(b, a); got != want {
		t.Errorf("not symmetric: %v vs %v", got, want)
	}
}

func TestCosineSimilarity_disjoint(t *testing.T) {
	a := Vector{"apple": 1}
	b := Vector{"banana": 1}
	if got := CosineSimilarity(a, b); got != 0.0 {
		t.Errorf("disjoint vocabularies: got %v, want 0.0", got)
	}
}

// Identical non-empty documents must score exactly 1.0, not 1.0 minus a
// rounding ulp: downstream classification and the graph edge level depend on
// the exact value.
func TestCosineSimilarity_identicalTextExactlyOne(t *testing.T) {
	texts := []string{
		"alpha beta",
		"the quick brown fox jumps over the lazy dog",
		"one two two three three three",
		"mitochondria are the powerhouse of the cell",
	}
	for _, text := range texts {
		_, vectors := Vectorize([][]string{Tokenize(text), Tokenize(text)})
		if got := CosineSimilarity(vectors[0], vectors[1]); got != 1.0 {
			t.Errorf("identical text %q: score = %v, want exactly 1.0", text, got)
		}
	}
}

func TestCosineSimilarity_zeroNorm(t *testing.T) {
	empty := Vector{}
	full := Vector{"apple": 1}
	for _, got := range []float64{
		CosineSimilarity(empty, full),
		CosineSimilarity(full, empty),
		CosineSimilarity(empty, empty),
	} {
		if got != 0.0 || math.IsNaN(got) {
			t.Errorf("zero-norm similarity must be 0.0, got %v", got)
		}
	}
}

func TestComputePairs(t *testing.T) {
	docs := [][]string{
		Tokenize("the quick brown fox"),
		Tokenize("the quick brown fox"),
		Tokenize("entirely different words here"),
	}
	_, vectors := Vectorize(docs)
	ids := []int64{10, 20, 30}
	pairs := ComputePairs(ids, vectors, 2)

	if len(pairs) != 3 {
		t.Fatalf("expected 3 pairs, got %d", len(pairs))
	}
	for _, p := range pairs {
		if p.DocA >= p.DocB {
			t.Errorf("pair order violated: %d >= %d", p.DocA, p.DocB)
		}
		if p.Score < 0 || p.Score > 1 {
			t.Errorf("score out of range: %v", p.Score)
		}
	}
	// Identical documents score exactly 1.0.
	if pairs[0].DocA != 10 || pairs[0].DocB != 20 {
		t.Fatalf("unexpected first pair: %+v", pairs[0])
	}
	if pairs[0].Score != 1.0 {
		t.Errorf("identical docs: got %v, want exactly 1.0", pairs[0].Score)
	}
}

func TestComputePairs_smallBatch(t *testing.T) {
	if got := ComputePairs(nil, nil, 0); got != nil {
		t.Errorf("empty batch: got %v", got)
	}
	_, vectors := Vectorize([][]string{{"one"}})
	if got := ComputePairs([]int64{1}, vectors, 0); got != nil {
		t.Errorf("single doc: got %v", got)
	}
}

func TestComputePairs_workerCountsAgree(t *testing.T) {
	docs := make([][]string, 7)
	words := []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta"}
	for i := range docs {
		docs[i] = []string{words[i], words[(i+1)%len(words)], "common"}
	}
	_, vectors := Vectorize(docs)
	ids := []int64{1, 2, 3, 4, 5, 6, 7}

	serial := ComputePairs(ids, vectors, 1)
	parallel := ComputePairs(ids, vectors, 4)
	if len(serial) != len(parallel) {
		t.Fatalf("length mismatch: %d vs %d", len(serial), len(parallel))
	}
	for i := range serial {
		if serial[i] != parallel[i] {
			t.Errorf("pair %d differs: %+v vs %+v", i, serial[i], parallel[i])
		}
	}
}

func TestPairIndex(t *testing.T) {
	n := 5
	k := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			gi, gj := pairIndex(k, n)
			if gi != i || gj != j {
				t.Errorf("pairIndex(%d, %d) = (%d, %d), want (%d, %d)", k, n, gi, gj, i, j)
			}
			k++
		}
	}
}
