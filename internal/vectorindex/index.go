// Package vectorindex stores section vectors for one run and answers
// nearest-neighbour queries by cosine similarity.
package vectorindex

import (
	"context"
	"errors"
	"math"
	"sort"
)

// ErrDimensionMismatch is returned when a vector's length differs from the
// vectors already in the index.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Metadata travels with a vector and comes back with query results.
type Metadata map[string]string

// Candidate is one query hit.
type Candidate struct {
	ID    string
	Score float64
	Meta  Metadata
}

// Index holds the vectors of one collection. All writes of a run complete
// before its first query.
type Index interface {
	Upsert(ctx context.Context, id string, vec []float32, meta Metadata) error
	// Query returns up to topK candidates by descending cosine similarity,
	// ties broken by insertion order. topK <= 0 returns everything.
	Query(ctx context.Context, vec []float32, topK int) ([]Candidate, error)
	// Len is the number of stored vectors, or -1 when it cannot be read.
	Len() int
}

// Provider hands out a fresh, empty index per collection name.
type Provider interface {
	ForCollection(ctx context.Context, name string) (Index, error)
	Drop(ctx context.Context, name string) error
}

// Cosine returns the cosine similarity of a and b, or 0 when either is
// empty, zero or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := 0; i < len(a); i++ {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

type entry struct {
	id   string
	vec  []float32
	meta Metadata
}

// rank scores entries, given in insertion order, against vec.
func rank(entries []entry, vec []float32, topK int) []Candidate {
	out := make([]Candidate, len(entries))
	for i, e := range entries {
		out[i] = Candidate{ID: e.id, Score: Cosine(vec, e.vec), Meta: e.meta}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}

func copyMeta(m Metadata) Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
