package tfidf

import (
	"context"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Cosine returns the cosine similarity of a and b clamped to [0,1].
// An empty or zero vector is dissimilar to everything.
func Cosine(a, b Vector) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	var dot, na, nb float64
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].Token == b[j].Token:
			dot += a[i].Weight * b[j].Weight
			i++
			j++
		case a[i].Token < b[j].Token:
			i++
		default:
			j++
		}
	}
	for _, t := range a {
		na += t.Weight * t.Weight
	}
	for _, t := range b {
		nb += t.Weight * t.Weight
	}
	if na == 0 || nb == 0 {
		return 0
	}

	sim := dot / math.Sqrt(na*nb)
	switch {
	case math.IsNaN(sim), sim < 0:
		return 0
	case sim > 1:
		return 1
	}
	return sim
}

// Matrix is a dense symmetric similarity matrix with a zero diagonal.
type Matrix struct {
	n     int
	cells []float64
}

// NewMatrix computes pairwise similarities of vectors. Rows are spread over
// at most workers goroutines (GOMAXPROCS when workers <= 0); every cell is
// computed on its own, so the result does not depend on scheduling.
func NewMatrix(ctx context.Context, vectors []Vector, workers int) (*Matrix, error) {
	n := len(vectors)
	m := &Matrix{n: n, cells: make([]float64, n*n)}
	if n < 2 {
		return m, nil
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n-1; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			// строка i пишет только в ячейки (i, j>i) и (j>i, i)
			for j := i + 1; j < n; j++ {
				sim := Cosine(vectors[i], vectors[j])
				m.cells[i*n+j] = sim
				m.cells[j*n+i] = sim
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Matrix) Len() int { return m.n }

func (m *Matrix) At(i, j int) float64 { return m.cells[i*m.n+j] }
