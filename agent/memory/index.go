package memory

import (
	"container/heap"
	"context"
	"math"
	"sort"
	"sync"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
)

var _ contractx.VectorIndex = (*InMemoryIndex)(nil)

// InMemoryIndex is a brute-force cosine index partitioned by customer.
type InMemoryIndex struct {
	mu    sync.RWMutex
	facts map[string][]contractx.MemoryFact
}

func NewInMemoryIndex() *InMemoryIndex {
	return &InMemoryIndex{facts: make(map[string][]contractx.MemoryFact)}
}

func (x *InMemoryIndex) Insert(ctx context.Context, fact contractx.MemoryFact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fact.Embedding = append([]float32(nil), fact.Embedding...)
	x.mu.Lock()
	x.facts[fact.CustomerID] = append(x.facts[fact.CustomerID], fact)
	x.mu.Unlock()
	return nil
}

func (x *InMemoryIndex) Nearest(
	ctx context.Context,
	customerID string,
	query []float32,
	k int,
	maxDistance float64,
) ([]contractx.Neighbor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}
	queryNorm := norm(query)
	if queryNorm == 0 {
		return nil, nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	h := &neighborHeap{}
	for _, f := range x.facts[customerID] {
		sim, ok := cosine(query, f.Embedding, queryNorm)
		if !ok {
			continue
		}
		d := 1 - sim
		if d > maxDistance {
			continue
		}
		if h.Len() < k {
			heap.Push(h, contractx.Neighbor{MemoryFact: f, Distance: d})
		} else if d < (*h)[0].Distance {
			(*h)[0] = contractx.Neighbor{MemoryFact: f, Distance: d}
			heap.Fix(h, 0)
		}
	}

	out := make([]contractx.Neighbor, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(contractx.Neighbor)
	}
	return out, nil
}

func (x *InMemoryIndex) Recent(ctx context.Context, customerID string, limit int) ([]contractx.MemoryFact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	x.mu.RLock()
	facts := append([]contractx.MemoryFact(nil), x.facts[customerID]...)
	x.mu.RUnlock()

	// Insertion order breaks CreatedAt ties: later inserts are newer.
	for i, j := 0, len(facts)-1; i < j; i, j = i+1, j-1 {
		facts[i], facts[j] = facts[j], facts[i]
	}
	sort.SliceStable(facts, func(i, j int) bool { return facts[i].CreatedAt.After(facts[j].CreatedAt) })
	if limit > 0 && len(facts) > limit {
		facts = facts[:limit]
	}
	return facts, nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

// cosine returns the cosine similarity of a and b given a's precomputed norm.
func cosine(a, b []float32, aNorm float64) (float64, bool) {
	if len(a) != len(b) || aNorm == 0 {
		return 0, false
	}
	var dot, bNormSq float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		bNormSq += float64(b[i]) * float64(b[i])
	}
	if bNormSq == 0 {
		return 0, false
	}
	return dot / (aNorm * math.Sqrt(bNormSq)), true
}

// neighborHeap is a max-heap on Distance holding the current best k.
type neighborHeap []contractx.Neighbor

func (h neighborHeap) Len() int           { return len(h) }
func (h neighborHeap) Less(i, j int) bool { return h[i].Distance > h[j].Distance }
func (h neighborHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *neighborHeap) Push(x any)        { *h = append(*h, x.(contractx.Neighbor)) }
func (h *neighborHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
