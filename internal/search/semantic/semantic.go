// Package semantic defines the vector-retrieval side of the hybrid
// search pipeline: a small interface any embedding index can satisfy,
// plus a brute-force cosine-similarity reference implementation good
// enough for the message/project/agent corpora this bus handles.
package semantic

import (
	"context"
	"math"
	"sort"
)

// Hit is one ranked semantic match.
type Hit struct {
	DocID string
	Score float64
}

// Index is satisfied by anything that can rank doc_ids by similarity to
// a query vector. A production deployment might back this with an ANN
// index; BruteForceIndex is the reference implementation used when no
// such index is configured.
type Index interface {
	Search(ctx context.Context, queryVector []float64, limit int) ([]Hit, error)
	Upsert(ctx context.Context, docID string, vector []float64) error
	Delete(ctx context.Context, docID string) error
}

// BruteForceIndex ranks by cosine similarity over an in-memory vector
// set. Adequate at the scale a single bus instance's corpus reaches;
// not meant to replace a real ANN index at larger scale.
type BruteForceIndex struct {
	vectors map[string][]float64
}

// NewBruteForceIndex returns an empty BruteForceIndex.
func NewBruteForceIndex() *BruteForceIndex {
	return &BruteForceIndex{vectors: make(map[string][]float64)}
}

func (b *BruteForceIndex) Upsert(_ context.Context, docID string, vector []float64) error {
	cp := make([]float64, len(vector))
	copy(cp, vector)
	b.vectors[docID] = cp
	return nil
}

func (b *BruteForceIndex) Delete(_ context.Context, docID string) error {
	delete(b.vectors, docID)
	return nil
}

// Search ranks every stored vector by cosine similarity to queryVector,
// descending, ties broken by doc_id ascending for determinism, and
// returns at most limit hits (limit <= 0 means unbounded).
func (b *BruteForceIndex) Search(ctx context.Context, queryVector []float64, limit int) ([]Hit, error) {
	hits := make([]Hit, 0, len(b.vectors))
	for docID, v := range b.vectors {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		hits = append(hits, Hit{DocID: docID, Score: cosineSimilarity(queryVector, v)})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DocID < hits[j].DocID
	})
	if limit > 0 && limit < len(hits) {
		hits = hits[:limit]
	}
	return hits, nil
}

func cosineSimilarity(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, magA, magB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
