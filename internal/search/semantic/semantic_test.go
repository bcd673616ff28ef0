package semantic

import (
	"context"
	"testing"
)

func TestBruteForceIndexRanksBySimilarityDescending(t *testing.T) {
	idx := NewBruteForceIndex()
	ctx := context.Background()
	_ = idx.Upsert(ctx, "a", []float64{1, 0})
	_ = idx.Upsert(ctx, "b", []float64{0.7, 0.7})
	_ = idx.Upsert(ctx, "c", []float64{0, 1})

	hits, err := idx.Search(ctx, []float64{1, 0}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hits[0].DocID != "a" {
		t.Fatalf("expected exact match to rank first, got %+v", hits)
	}
	if hits[len(hits)-1].DocID != "c" {
		t.Fatalf("expected orthogonal vector to rank last, got %+v", hits)
	}
}

func TestBruteForceIndexLimitAndDelete(t *testing.T) {
	idx := NewBruteForceIndex()
	ctx := context.Background()
	_ = idx.Upsert(ctx, "a", []float64{1, 0})
	_ = idx.Upsert(ctx, "b", []float64{1, 0})
	_ = idx.Upsert(ctx, "c", []float64{1, 0})

	hits, _ := idx.Search(ctx, []float64{1, 0}, 2)
	if len(hits) != 2 {
		t.Fatalf("expected limit to cap results, got %d", len(hits))
	}

	_ = idx.Delete(ctx, "a")
	hits, _ = idx.Search(ctx, []float64{1, 0}, 0)
	for _, h := range hits {
		if h.DocID == "a" {
			t.Fatalf("expected deleted doc to be absent: %+v", hits)
		}
	}
}

func TestBruteForceIndexTieBreaksByDocIDAscending(t *testing.T) {
	idx := NewBruteForceIndex()
	ctx := context.Background()
	_ = idx.Upsert(ctx, "z", []float64{1, 0})
	_ = idx.Upsert(ctx, "a", []float64{1, 0})

	hits, _ := idx.Search(ctx, []float64{1, 0}, 0)
	if hits[0].DocID != "a" || hits[1].DocID != "z" {
		t.Fatalf("expected tie broken by doc_id asc, got %+v", hits)
	}
}
