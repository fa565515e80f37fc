package semantic

import (
	"context"
	"sort"
	"sync"

	"github.com/Ramdan0505/radlab-preinvest/internal/model"
)

// SearchResult is one raw nearest-neighbor hit. The service applies the
// distance threshold; stores return their top-k unfiltered.
type SearchResult struct {
	ID       string            `json:"id"`
	Distance float64           `json:"distance"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// VectorStore persists index entries and serves brute-force nearest
// neighbors per case.
type VectorStore interface {
	Add(ctx context.Context, entries []model.IndexEntry) error
	Query(ctx context.Context, caseID string, vector []float32, topK int) ([]SearchResult, error)
	Close() error
}

// MemoryStore is the in-process VectorStore, used for tests and for
// single-shot CLI runs that do not need persistence.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]model.IndexEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string][]model.IndexEntry{}}
}

func (m *MemoryStore) Add(_ context.Context, entries []model.IndexEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, entry := range entries {
		m.entries[entry.CaseID] = append(m.entries[entry.CaseID], entry)
	}
	return nil
}

func (m *MemoryStore) Query(_ context.Context, caseID string, vector []float32, topK int) ([]SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]SearchResult, 0, len(m.entries[caseID]))
	for _, entry := range m.entries[caseID] {
		results = append(results, SearchResult{
			ID:       entry.DocID,
			Distance: cosineDistance(vector, entry.Vector),
			Text:     entry.Text,
			Metadata: entry.Metadata,
		})
	}
	return nearest(results, topK), nil
}

func (m *MemoryStore) Close() error { return nil }

// nearest sorts ascending by distance (stable, so insertion order breaks
// ties) and truncates to k.
func nearest(results []SearchResult, k int) []SearchResult {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results
}
