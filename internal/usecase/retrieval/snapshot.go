package retrieval

import (
	"math"
	"sort"

	"github.com/kailas-cloud/librarian/internal/domain/book"
	"github.com/kailas-cloud/librarian/internal/domain/search/result"
)

const normEpsilon = 1e-10

// Snapshot is an immutable corpus with a row-major embedding matrix aligned 1:1 with docs.
type Snapshot struct {
	docs   []book.Book
	matrix []float64 // len(docs) * dim
	norms  []float64
	dim    int
}

func newSnapshot(docs []book.Book, vectors [][]float32) *Snapshot {
	s := &Snapshot{docs: docs}
	if len(docs) == 0 {
		return s
	}
	s.dim = len(vectors[0])
	s.matrix = make([]float64, len(docs)*s.dim)
	s.norms = make([]float64, len(docs))
	for i, v := range vectors {
		row := s.matrix[i*s.dim : (i+1)*s.dim]
		var sq float64
		for j, x := range v {
			row[j] = float64(x)
			sq += row[j] * row[j]
		}
		s.norms[i] = math.Sqrt(sq)
	}
	return s
}

// Len returns the number of documents.
func (s *Snapshot) Len() int { return len(s.docs) }

// Dim returns the embedding dimension, 0 for an empty snapshot.
func (s *Snapshot) Dim() int { return s.dim }

// rank scores every row against q by cosine similarity and returns the top k.
// Ties keep corpus order.
func (s *Snapshot) rank(q []float32, k int) []result.Ranked {
	n := len(s.docs)
	if n == 0 || k <= 0 {
		return nil
	}

	qv := make([]float64, len(q))
	var qsq float64
	for i, x := range q {
		qv[i] = float64(x)
		qsq += qv[i] * qv[i]
	}
	qnorm := math.Sqrt(qsq)

	sims := make([]float64, n)
	for i := range n {
		row := s.matrix[i*s.dim : (i+1)*s.dim]
		var dot float64
		for j, x := range row {
			dot += x * qv[j]
		}
		sims[i] = dot / (qnorm*s.norms[i] + normEpsilon)
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return sims[idx[a]] > sims[idx[b]] })

	k = min(k, n)
	out := make([]result.Ranked, k)
	for i := range k {
		out[i] = result.New(s.docs[idx[i]], sims[idx[i]])
	}
	return out
}
