package s3fifo

import "testing"

func TestCapacityInvariant(t *testing.T) {
	c := New[int, int](20)
	for i := 0; i < 500; i++ {
		c.Put(i, i*i)
		if c.Len() > 20 {
			t.Fatalf("len %d exceeds capacity 20 after inserting %d", c.Len(), i)
		}
		if c.GhostLen() > c.ghostCap {
			t.Fatalf("ghost len %d exceeds ghost capacity %d", c.GhostLen(), c.ghostCap)
		}
	}
}

func TestGetSetsValue(t *testing.T) {
	c := New[string, string](8)
	c.Put("a", "1")
	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Fatalf("expected hit with value 1, got %v %v", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Fatalf("expected miss for absent key")
	}
}

func TestPromotionFromSmallToMain(t *testing.T) {
	c := New[int, int](10) // smallCap=1, mainCap=9
	c.Put(1, 1)
	c.Get(1) // bump freq to 1
	c.Put(2, 2)
	// 1 evicted from small with freq>=1, should now be live in main.
	if !c.Contains(1) {
		t.Fatalf("expected key 1 promoted to main, not evicted")
	}
}

func TestDemotionToGhostThenReinsertToMain(t *testing.T) {
	c := New[int, int](10)
	c.Put(1, 1) // freq 0, no Get
	c.Put(2, 2) // evicts 1 from small (freq 0) -> demoted to ghost
	if c.Contains(1) {
		t.Fatalf("expected key 1 not live after demotion")
	}
	if c.GhostLen() == 0 {
		t.Fatalf("expected key 1 tracked in ghost")
	}
	c.Put(1, 100) // ghost hit -> inserted directly into main
	if !c.Contains(1) {
		t.Fatalf("expected key 1 live again after ghost reinsert into main")
	}
	if v, _ := c.Get(1); v != 100 {
		t.Fatalf("expected updated value 100, got %v", v)
	}
}

func TestZeroCapacityPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on zero capacity")
		}
	}()
	New[int, int](0)
}
