package search

import "testing"

func TestAssembleOrdersByScoreThenDocIDDescending(t *testing.T) {
	hits := []FusedHit{
		{DocID: "a", FusedScore: 0.5},
		{DocID: "b", FusedScore: 0.5},
		{DocID: "c", FusedScore: 0.9},
	}
	sources := map[string]DocSource{
		"a": {DocID: "a", DocKind: DocMessage, Text: "nothing relevant here"},
		"b": {DocID: "b", DocKind: DocMessage, Text: "nothing relevant here"},
		"c": {DocID: "c", DocKind: DocMessage, Text: "nothing relevant here"},
	}
	out := Assemble(hits, sources, nil)
	if out[0].DocID != "c" {
		t.Fatalf("expected highest score first, got %+v", out)
	}
	// a and b tie on score; higher doc_id first (opposite of fusion's
	// own doc_id-asc tie-break).
	if out[1].DocID != "b" || out[2].DocID != "a" {
		t.Fatalf("expected tie broken by higher doc_id first, got %+v", out)
	}
}

func TestAssembleProjectsMetadataAndBuildsSnippet(t *testing.T) {
	hits := []FusedHit{{DocID: "msg1", FusedScore: 1.0}}
	sources := map[string]DocSource{
		"msg1": {
			DocID:   "msg1",
			DocKind: DocMessage,
			Text:    "please review the deploy plan before tomorrow",
			Metadata: map[string]interface{}{
				"sender":       "agent-a",
				"project_slug": "bus",
				"internal_row": 42,
			},
		},
	}
	out := Assemble(hits, sources, []string{"deploy"})
	if len(out) != 1 {
		t.Fatalf("expected one hit")
	}
	h := out[0]
	if !h.HasSnippet || h.Snippet == "" {
		t.Fatalf("expected a snippet")
	}
	if _, ok := h.Metadata["internal_row"]; ok {
		t.Fatalf("unprojected field leaked into metadata: %+v", h.Metadata)
	}
	if h.Metadata["sender"] != "agent-a" {
		t.Fatalf("expected sender to be projected, got %+v", h.Metadata)
	}
}

func TestAssembleMissingSourceStillReturnsHit(t *testing.T) {
	hits := []FusedHit{{DocID: "ghost", FusedScore: 0.1}}
	out := Assemble(hits, map[string]DocSource{}, []string{"x"})
	if len(out) != 1 || out[0].DocID != "ghost" {
		t.Fatalf("expected a hit with no metadata for unknown doc_id: %+v", out)
	}
	if out[0].HasSnippet {
		t.Fatalf("expected no snippet when source is missing")
	}
}
