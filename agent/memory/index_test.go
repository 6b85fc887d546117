package memory

import (
	"context"
	"testing"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
)

func TestInMemoryIndexNearestTopK(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	idx := NewInMemoryIndex()
	facts := []contractx.MemoryFact{
		{ID: "a", CustomerID: "c1", Embedding: []float32{0, 1}},
		{ID: "b", CustomerID: "c1", Embedding: []float32{1, 0}},
		{ID: "c", CustomerID: "c1", Embedding: []float32{1, 1}},
		{ID: "d", CustomerID: "c1", Embedding: []float32{-1, 0}},
		{ID: "zero", CustomerID: "c1", Embedding: []float32{0, 0}},
		{ID: "short", CustomerID: "c1", Embedding: []float32{1}},
	}
	for _, f := range facts {
		if err := idx.Insert(ctx, f); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	got, err := idx.Nearest(ctx, "c1", []float32{1, 0}, 2, 2)
	if err != nil {
		t.Fatalf("Nearest() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "c" {
		t.Fatalf("Nearest() = %+v, want [b c]", got)
	}
	if got[0].Distance > 1e-9 {
		t.Fatalf("Nearest()[0].Distance = %v, want 0", got[0].Distance)
	}

	got, err = idx.Nearest(ctx, "c1", []float32{1, 0}, 10, 1)
	if err != nil {
		t.Fatalf("Nearest() error = %v", err)
	}
	// "d" is opposite (distance 2), "zero" and "short" are incomparable.
	if len(got) != 3 {
		t.Fatalf("len(Nearest(maxDistance=1)) = %d, want 3", len(got))
	}
}

func TestInMemoryIndexInsertCopiesEmbedding(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	idx := NewInMemoryIndex()
	vec := []float32{1, 0}
	if err := idx.Insert(ctx, contractx.MemoryFact{ID: "a", CustomerID: "c1", Embedding: vec}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	vec[0], vec[1] = 0, 1

	got, err := idx.Nearest(ctx, "c1", []float32{1, 0}, 1, 0.1)
	if err != nil {
		t.Fatalf("Nearest() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Nearest() = %+v, want stored copy to be unaffected", got)
	}
}
