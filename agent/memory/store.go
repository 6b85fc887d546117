package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
)

// Store keeps customer facts as embeddings. Facts are append-only.
type Store struct {
	embedder contractx.Embedder
	index    contractx.VectorIndex
	now      func() time.Time
	newID    func() string
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Store) {
		if newID != nil {
			s.newID = newID
		}
	}
}

func New(embedder contractx.Embedder, index contractx.VectorIndex, opts ...Option) (*Store, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if index == nil {
		return nil, errors.New("vector index is required")
	}
	s := &Store{
		embedder: embedder,
		index:    index,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// AddMemory embeds text and appends it as a new fact. Duplicates are kept.
func (s *Store) AddMemory(
	ctx context.Context,
	customerID string,
	text string,
	source contractx.MemorySource,
	confidence float64,
) (contractx.MemoryFact, error) {
	customerID = strings.TrimSpace(customerID)
	text = strings.TrimSpace(text)
	if customerID == "" {
		return contractx.MemoryFact{}, fmt.Errorf("%w: customer id is required", contractx.ErrValidation)
	}
	if text == "" {
		return contractx.MemoryFact{}, fmt.Errorf("%w: fact text is required", contractx.ErrValidation)
	}
	if !source.Valid() {
		return contractx.MemoryFact{}, fmt.Errorf("%w: unknown source %q", contractx.ErrValidation, source)
	}
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return contractx.MemoryFact{}, fmt.Errorf("%w: confidence %v outside [0,1]", contractx.ErrValidation, confidence)
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return contractx.MemoryFact{}, fmt.Errorf("%w: embed fact: %v", contractx.ErrExternalService, err)
	}

	fact := contractx.MemoryFact{
		ID:         s.newID(),
		CustomerID: customerID,
		Text:       text,
		Source:     source,
		Confidence: confidence,
		Embedding:  vec,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.index.Insert(ctx, fact); err != nil {
		return contractx.MemoryFact{}, fmt.Errorf("%w: insert fact: %v", contractx.ErrExternalService, err)
	}

	log.Debug().
		Str("customer_id", customerID).
		Str("memory_id", fact.ID).
		Str("source", string(source)).
		Msg("memory added")
	return fact, nil
}

// SearchMemories returns up to limit of the customer's facts whose cosine
// similarity to query is at least threshold, most similar first. Embedding
// or index failures yield an empty result, never an error.
func (s *Store) SearchMemories(
	ctx context.Context,
	customerID string,
	query string,
	limit int,
	threshold float64,
) ([]contractx.Neighbor, error) {
	customerID = strings.TrimSpace(customerID)
	query = strings.TrimSpace(query)
	if customerID == "" || query == "" || limit <= 0 {
		return []contractx.Neighbor{}, nil
	}
	if math.IsNaN(threshold) {
		return []contractx.Neighbor{}, nil
	}
	threshold = math.Max(-1, math.Min(1, threshold))
	maxDistance := 1 - threshold

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		log.Warn().Err(err).Str("customer_id", customerID).Msg("memory search: embedding failed, returning no results")
		return []contractx.Neighbor{}, nil
	}

	found, err := s.index.Nearest(ctx, customerID, vec, limit, maxDistance)
	if err != nil {
		log.Warn().Err(err).Str("customer_id", customerID).Msg("memory search: index query failed, returning no results")
		return []contractx.Neighbor{}, nil
	}

	out := make([]contractx.Neighbor, 0, len(found))
	for _, n := range found {
		if n.CustomerID != customerID || math.IsNaN(n.Distance) || n.Distance > maxDistance {
			continue
		}
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetRecentMemories lists the customer's newest facts first, without ranking.
func (s *Store) GetRecentMemories(ctx context.Context, customerID string, limit int) ([]contractx.MemoryFact, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, fmt.Errorf("%w: customer id is required", contractx.ErrValidation)
	}
	if limit <= 0 {
		return []contractx.MemoryFact{}, nil
	}
	facts, err := s.index.Recent(ctx, customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: recent memories: %v", contractx.ErrExternalService, err)
	}
	return facts, nil
}
