package search

import (
	"context"
	"testing"
)

func TestEngineSearchFindsIndexedMessage(t *testing.T) {
	e, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if err := e.IndexMessage(MessageDoc{
		DocID:     "msg:1",
		ProjectID: 1,
		Subject:   "deploy plan",
		Body:      "please review the deploy plan before tomorrow",
	}, nil); err != nil {
		t.Fatalf("IndexMessage: %v", err)
	}
	if err := e.IndexMessage(MessageDoc{
		DocID:     "msg:2",
		ProjectID: 2,
		Subject:   "lunch",
		Body:      "where should we eat",
	}, nil); err != nil {
		t.Fatalf("IndexMessage: %v", err)
	}

	result, err := e.Search(context.Background(), "deploy plan", ModeHybrid, 10, nil, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(result.Hits) != 1 || result.Hits[0].DocID != "msg:1" {
		t.Fatalf("expected msg:1 as the only hit, got %+v", result.Hits)
	}
}

func TestEngineSearchScopesToProject(t *testing.T) {
	e, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	_ = e.IndexMessage(MessageDoc{DocID: "msg:1", ProjectID: 1, Subject: "status update", Body: "all green"}, nil)
	_ = e.IndexMessage(MessageDoc{DocID: "msg:2", ProjectID: 2, Subject: "status update", Body: "all green"}, nil)

	result, err := e.Search(context.Background(), "status update", ModeHybrid, 10, nil, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, h := range result.Hits {
		if h.DocID != "msg:1" {
			t.Fatalf("expected only project 1's message, got %+v", result.Hits)
		}
	}
	if len(result.Hits) != 1 {
		t.Fatalf("expected exactly one scoped hit, got %+v", result.Hits)
	}
}

func TestEngineSearchEmptyQueryReturnsNoHits(t *testing.T) {
	e, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	result, err := e.Search(context.Background(), "   ", ModeHybrid, 10, nil, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(result.Hits) != 0 {
		t.Fatalf("expected no hits for an empty/whitespace query, got %+v", result.Hits)
	}
}

func TestEngineDeleteMessageRemovesFromResults(t *testing.T) {
	e, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	_ = e.IndexMessage(MessageDoc{DocID: "msg:1", ProjectID: 1, Subject: "retro notes", Body: "retro notes"}, nil)
	if err := e.DeleteMessage(context.Background(), "msg:1"); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}
	result, err := e.Search(context.Background(), "retro notes", ModeHybrid, 10, nil, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(result.Hits) != 0 {
		t.Fatalf("expected deleted message to be absent from results, got %+v", result.Hits)
	}
}
