package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
)

type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.vectors[text]
	if !ok {
		return nil, fmt.Errorf("no vector for %q", text)
	}
	return v, nil
}

type failingIndex struct {
	*InMemoryIndex
	err error
}

func (f failingIndex) Nearest(context.Context, string, []float32, int, float64) ([]contractx.Neighbor, error) {
	return nil, f.err
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("m%d", n)
	}
}

func newTestStore(t *testing.T, emb contractx.Embedder, index contractx.VectorIndex) *Store {
	t.Helper()

	base := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	tick := 0
	store, err := New(emb, index,
		WithIDGenerator(sequentialIDs()),
		WithClock(func() time.Time {
			tick++
			return base.Add(time.Duration(tick) * time.Minute)
		}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return store
}

func seededEmbedder() *fakeEmbedder {
	return &fakeEmbedder{vectors: map[string][]float32{
		"prefere atendimento à tarde":  {1, 0, 0},
		"tem dois filhos":              {0.5, 0.866, 0},
		"interessado em geladeira":     {0.9, 0.436, 0},
		"já comprou um fogão em março": {0.8, 0.6, 0},
		"qual horário ele prefere?":    {1, 0, 0},
	}}
}

func TestSearchMemoriesReturnsClosestAboveThreshold(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	emb := seededEmbedder()
	store := newTestStore(t, emb, NewInMemoryIndex())

	for _, text := range []string{
		"tem dois filhos",
		"já comprou um fogão em março",
		"prefere atendimento à tarde",
		"interessado em geladeira",
	} {
		if _, err := store.AddMemory(ctx, "c1", text, contractx.SourceConversation, 0.9); err != nil {
			t.Fatalf("AddMemory(%q) error = %v", text, err)
		}
	}
	// Same vector as the query, different customer.
	if _, err := store.AddMemory(ctx, "c2", "prefere atendimento à tarde", contractx.SourceManual, 1); err != nil {
		t.Fatalf("AddMemory(c2) error = %v", err)
	}

	got, err := store.SearchMemories(ctx, "c1", "qual horário ele prefere?", 2, 0.6)
	if err != nil {
		t.Fatalf("SearchMemories() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(SearchMemories()) = %d, want 2 (%+v)", len(got), got)
	}
	if got[0].Text != "prefere atendimento à tarde" || got[1].Text != "interessado em geladeira" {
		t.Fatalf("SearchMemories() order = [%q %q], want afternoon preference then fridge", got[0].Text, got[1].Text)
	}
	for _, n := range got {
		if n.CustomerID != "c1" {
			t.Fatalf("SearchMemories() leaked fact of customer %q", n.CustomerID)
		}
		if n.Similarity() < 0.6 {
			t.Fatalf("similarity = %v, want >= 0.6", n.Similarity())
		}
	}
	if got[0].Distance > got[1].Distance {
		t.Fatalf("distances not ascending: %v > %v", got[0].Distance, got[1].Distance)
	}
}

func TestSearchMemoriesThresholdFiltersEverything(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t, seededEmbedder(), NewInMemoryIndex())
	if _, err := store.AddMemory(ctx, "c1", "tem dois filhos", contractx.SourceFeedback, 0.5); err != nil {
		t.Fatalf("AddMemory() error = %v", err)
	}

	got, err := store.SearchMemories(ctx, "c1", "qual horário ele prefere?", 5, 0.9)
	if err != nil {
		t.Fatalf("SearchMemories() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("SearchMemories() = %+v, want empty", got)
	}
}

func TestSearchMemoriesFailsClosed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("embedder error", func(t *testing.T) {
		t.Parallel()
		store := newTestStore(t, &fakeEmbedder{err: errors.New("provider down")}, NewInMemoryIndex())
		got, err := store.SearchMemories(ctx, "c1", "qualquer coisa", 3, 0.5)
		if err != nil {
			t.Fatalf("SearchMemories() error = %v, want nil", err)
		}
		if got == nil || len(got) != 0 {
			t.Fatalf("SearchMemories() = %#v, want empty non-nil", got)
		}
	})

	t.Run("index error", func(t *testing.T) {
		t.Parallel()
		idx := failingIndex{InMemoryIndex: NewInMemoryIndex(), err: errors.New("db gone")}
		store := newTestStore(t, seededEmbedder(), idx)
		got, err := store.SearchMemories(ctx, "c1", "qual horário ele prefere?", 3, 0.5)
		if err != nil {
			t.Fatalf("SearchMemories() error = %v, want nil", err)
		}
		if len(got) != 0 {
			t.Fatalf("SearchMemories() = %#v, want empty", got)
		}
	})
}

func TestSearchMemoriesNonPositiveLimit(t *testing.T) {
	t.Parallel()

	emb := seededEmbedder()
	store := newTestStore(t, emb, NewInMemoryIndex())
	got, err := store.SearchMemories(context.Background(), "c1", "qual horário ele prefere?", 0, 0.5)
	if err != nil || len(got) != 0 {
		t.Fatalf("SearchMemories(limit=0) = %v, %v; want empty, nil", got, err)
	}
	if emb.calls != 0 {
		t.Fatalf("embedder calls = %d, want 0", emb.calls)
	}
}

func TestAddMemoryValidation(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, seededEmbedder(), NewInMemoryIndex())
	cases := []struct {
		name       string
		customerID string
		text       string
		source     contractx.MemorySource
		confidence float64
	}{
		{name: "missing customer", customerID: " ", text: "tem dois filhos", source: contractx.SourceManual, confidence: 1},
		{name: "empty text", customerID: "c1", text: "  ", source: contractx.SourceManual, confidence: 1},
		{name: "unknown source", customerID: "c1", text: "tem dois filhos", source: "crm", confidence: 1},
		{name: "confidence above one", customerID: "c1", text: "tem dois filhos", source: contractx.SourceManual, confidence: 1.2},
		{name: "negative confidence", customerID: "c1", text: "tem dois filhos", source: contractx.SourceManual, confidence: -0.1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := store.AddMemory(context.Background(), tc.customerID, tc.text, tc.source, tc.confidence)
			if !errors.Is(err, contractx.ErrValidation) {
				t.Fatalf("AddMemory() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestAddMemoryEmbedFailure(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, &fakeEmbedder{err: errors.New("quota")}, NewInMemoryIndex())
	_, err := store.AddMemory(context.Background(), "c1", "tem dois filhos", contractx.SourceManual, 1)
	if !errors.Is(err, contractx.ErrExternalService) {
		t.Fatalf("AddMemory() error = %v, want ErrExternalService", err)
	}
}

func TestAddMemoryKeepsDuplicates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t, seededEmbedder(), NewInMemoryIndex())
	for i := 0; i < 2; i++ {
		if _, err := store.AddMemory(ctx, "c1", "tem dois filhos", contractx.SourceConversation, 0.7); err != nil {
			t.Fatalf("AddMemory() error = %v", err)
		}
	}
	got, err := store.GetRecentMemories(ctx, "c1", 10)
	if err != nil {
		t.Fatalf("GetRecentMemories() error = %v", err)
	}
	if len(got) != 2 || got[0].ID == got[1].ID {
		t.Fatalf("GetRecentMemories() = %+v, want two distinct facts", got)
	}
}

func TestGetRecentMemoriesNewestFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t, seededEmbedder(), NewInMemoryIndex())
	for _, text := range []string{"tem dois filhos", "interessado em geladeira", "prefere atendimento à tarde"} {
		if _, err := store.AddMemory(ctx, "c1", text, contractx.SourceConversation, 0.8); err != nil {
			t.Fatalf("AddMemory() error = %v", err)
		}
	}

	got, err := store.GetRecentMemories(ctx, "c1", 2)
	if err != nil {
		t.Fatalf("GetRecentMemories() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(GetRecentMemories()) = %d, want 2", len(got))
	}
	if got[0].Text != "prefere atendimento à tarde" || got[1].Text != "interessado em geladeira" {
		t.Fatalf("GetRecentMemories() = [%q %q], want newest first", got[0].Text, got[1].Text)
	}

	if _, err := store.GetRecentMemories(ctx, "", 2); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("GetRecentMemories(\"\") error = %v, want ErrValidation", err)
	}
}
