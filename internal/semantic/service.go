// Package semantic embeds normalized corpus text and serves
// threshold-filtered nearest-neighbor retrieval over it.
package semantic

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Ramdan0505/radlab-preinvest/internal/logging"
	"github.com/Ramdan0505/radlab-preinvest/internal/metrics"
	"github.com/Ramdan0505/radlab-preinvest/internal/model"
	"github.com/Ramdan0505/radlab-preinvest/pkg/errkind"
)

// Service owns the semantic index for all cases. The embedder is shared and
// built lazily on first use: constructing a Service is free, and callers
// that never ingest or query never touch the embedding backend.
//
// Ingest and Query on the same case may run concurrently; text from an
// ingest still in flight is not guaranteed visible to a concurrent query.
type Service struct {
	factory     EmbedderFactory
	store       VectorStore
	maxDistance float64
	defaultTopK int
	log         *logging.Logger

	initOnce sync.Once
	embedder Embedder
	initErr  error
}

func NewService(factory EmbedderFactory, store VectorStore, maxDistance float64, defaultTopK int, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if maxDistance <= 0 {
		maxDistance = 0.70
	}
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	return &Service{
		factory:     factory,
		store:       store,
		maxDistance: maxDistance,
		defaultTopK: defaultTopK,
		log:         logger,
	}
}

func (s *Service) getEmbedder() (Embedder, error) {
	s.initOnce.Do(func() {
		s.embedder, s.initErr = s.factory()
		if s.initErr != nil {
			s.initErr = errkind.E(errkind.KindExternalService, "semantic.Service", "initialize embedder", s.initErr)
		}
	})
	return s.embedder, s.initErr
}

// Ingest embeds the texts and stores one entry per text. Returned document
// ids are freshly generated, so repeated ingests of identical text never
// collide. An empty batch is a no-op.
func (s *Service) Ingest(ctx context.Context, caseID string, texts []string, metadatas []map[string]string) ([]string, error) {
	const op = "semantic.Service.Ingest"

	if len(texts) == 0 {
		return nil, nil
	}
	if metadatas != nil && len(metadatas) != len(texts) {
		return nil, errkind.E(errkind.KindInternal, op,
			fmt.Sprintf("%d texts but %d metadata records", len(texts), len(metadatas)))
	}

	embedder, err := s.getEmbedder()
	if err != nil {
		metrics.IndexErrors.Inc()
		return nil, err
	}

	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		metrics.IndexErrors.Inc()
		return nil, err
	}
	if len(vectors) != len(texts) {
		metrics.IndexErrors.Inc()
		return nil, errkind.E(errkind.KindExternalService, op,
			fmt.Sprintf("embedder returned %d vectors for %d texts", len(vectors), len(texts)))
	}

	entries := make([]model.IndexEntry, len(texts))
	ids := make([]string, len(texts))
	for i, text := range texts {
		l2Normalize(vectors[i])
		var metadata map[string]string
		if metadatas != nil {
			metadata = metadatas[i]
		}
		ids[i] = fmt.Sprintf("case_%s_%s", caseID, uuid.New().String())
		entries[i] = model.IndexEntry{
			CaseID:   caseID,
			DocID:    ids[i],
			Text:     text,
			Metadata: metadata,
			Vector:   vectors[i],
		}
	}

	if err := s.store.Add(ctx, entries); err != nil {
		metrics.IndexErrors.Inc()
		return nil, err
	}
	s.log.WithCase(caseID).Info("ingested documents", "count", len(entries))
	return ids, nil
}

// Query embeds the query text and returns the nearest stored documents
// whose distance does not exceed the configured threshold. An empty or
// whitespace-only query returns zero results and no error.
func (s *Service) Query(ctx context.Context, caseID, query string, topK int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []SearchResult{}, nil
	}
	if topK <= 0 {
		topK = s.defaultTopK
	}

	embedder, err := s.getEmbedder()
	if err != nil {
		metrics.IndexErrors.Inc()
		return nil, err
	}

	vectors, err := embedder.Embed(ctx, []string{query})
	if err != nil {
		metrics.IndexErrors.Inc()
		return nil, err
	}
	if len(vectors) != 1 {
		metrics.IndexErrors.Inc()
		return nil, errkind.E(errkind.KindExternalService, "semantic.Service.Query", "embedder returned no query vector")
	}
	l2Normalize(vectors[0])

	raw, err := s.store.Query(ctx, caseID, vectors[0], topK)
	if err != nil {
		metrics.IndexErrors.Inc()
		return nil, err
	}

	results := make([]SearchResult, 0, len(raw))
	for _, hit := range raw {
		if hit.Distance > s.maxDistance {
			continue
		}
		results = append(results, hit)
	}
	return results, nil
}
