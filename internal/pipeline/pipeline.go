// Package pipeline orchestrates the triage core over one case: per-file
// normalization into the case store, scoring + playbook generation over the
// frozen store, and semantic indexing of the flattened corpora. The outer
// API/worker layer calls these three phases; nothing here serves HTTP.
package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Ramdan0505/radlab-preinvest/internal/evtx"
	"github.com/Ramdan0505/radlab-preinvest/internal/logging"
	"github.com/Ramdan0505/radlab-preinvest/internal/model"
	"github.com/Ramdan0505/radlab-preinvest/internal/playbook"
	"github.com/Ramdan0505/radlab-preinvest/internal/registry"
	"github.com/Ramdan0505/radlab-preinvest/internal/semantic"
	"github.com/Ramdan0505/radlab-preinvest/internal/store"
	"github.com/Ramdan0505/radlab-preinvest/internal/triage"
)

// Pipeline wires the normalizers, the scoring engine, the playbook renderer
// and the semantic service together for one case store.
type Pipeline struct {
	events   *evtx.Normalizer
	reg      *registry.Normalizer
	engine   *triage.Engine
	renderer *playbook.Renderer
	semantic *semantic.Service
	workers  int
	log      *logging.Logger
}

type Options struct {
	Events   *evtx.Normalizer
	Registry *registry.Normalizer
	Engine   *triage.Engine
	Renderer *playbook.Renderer
	Semantic *semantic.Service
	Workers  int
	Logger   *logging.Logger
}

func New(opts Options) (*Pipeline, error) {
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.Events == nil {
		opts.Events = evtx.New(nil, opts.Logger)
	}
	if opts.Registry == nil {
		opts.Registry = registry.New(opts.Logger)
	}
	if opts.Engine == nil {
		rules, err := triage.DefaultRules()
		if err != nil {
			return nil, err
		}
		opts.Engine = triage.NewEngine(rules, 0, opts.Logger)
	}
	if opts.Renderer == nil {
		opts.Renderer = playbook.New()
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &Pipeline{
		events:   opts.Events,
		reg:      opts.Registry,
		engine:   opts.Engine,
		renderer: opts.Renderer,
		semantic: opts.Semantic,
		workers:  opts.Workers,
		log:      opts.Logger,
	}, nil
}

// ArtifactKind classifies a bundle file by name.
type ArtifactKind int

const (
	ArtifactUnknown ArtifactKind = iota
	ArtifactEventLog
	ArtifactRegistry
)

// ClassifyArtifact decides which normalizer handles a file. Event logs by
// .evtx extension; registry artifacts by .reg extension or well-known hive
// filename prefixes.
func ClassifyArtifact(path string) ArtifactKind {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".evtx":
		return ArtifactEventLog
	case ".reg":
		return ArtifactRegistry
	}
	if registry.DetectHiveKind(path) != registry.HiveUnknown {
		return ArtifactRegistry
	}
	return ArtifactUnknown
}

// FileFailure records one artifact that could not be decoded at all.
type FileFailure struct {
	Path string
	Err  error
}

// NormalizeResult is the explicit outcome of a normalization pass. A bundle
// with no parseable artifact yields zero counts here, never silent success.
type NormalizeResult struct {
	EventsAppended  int
	EntriesAppended int
	FilesProcessed  int
	FilesSkipped    int
	Failures        []FileFailure
}

// NormalizeFiles runs every recognized artifact through its normalizer with
// a bounded worker pool and appends the results to the case store. A file
// that fails to decode is recorded and the rest of the bundle continues.
func (p *Pipeline) NormalizeFiles(ctx context.Context, st *store.Store, paths []string) (NormalizeResult, error) {
	var (
		mu     sync.Mutex
		result NormalizeResult
		wg     sync.WaitGroup
	)
	sem := make(chan struct{}, p.workers)

	for _, path := range paths {
		kind := ClassifyArtifact(path)
		if kind == ArtifactUnknown {
			p.log.WithFile(path).Debug("skipping unrecognized artifact")
			result.FilesSkipped++
			continue
		}

		wg.Add(1)
		go func(path string, kind ArtifactKind) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			events, entries, err := p.normalizeOne(ctx, path, kind)

			mu.Lock()
			defer mu.Unlock()
			result.FilesProcessed++
			if err != nil {
				p.log.WithFile(path).Warn("artifact failed to decode", "error", err)
				result.Failures = append(result.Failures, FileFailure{Path: path, Err: err})
			}
			// Partial output before a failure is still kept.
			if len(events) > 0 {
				n, appendErr := st.AppendEvents(events)
				if appendErr != nil {
					result.Failures = append(result.Failures, FileFailure{Path: path, Err: appendErr})
				}
				result.EventsAppended += n
			}
			if len(entries) > 0 {
				n, appendErr := st.AppendRegistryEntries(entries)
				if appendErr != nil {
					result.Failures = append(result.Failures, FileFailure{Path: path, Err: appendErr})
				}
				result.EntriesAppended += n
			}
		}(path, kind)
	}

	wg.Wait()
	if err := ctx.Err(); err != nil {
		return result, err
	}

	p.log.Info("normalization pass complete",
		"files", result.FilesProcessed,
		"events", result.EventsAppended,
		"registry_entries", result.EntriesAppended,
		"failures", len(result.Failures))
	return result, nil
}

func (p *Pipeline) normalizeOne(ctx context.Context, path string, kind ArtifactKind) ([]model.CanonicalEvent, []model.RegistryEntry, error) {
	switch kind {
	case ArtifactEventLog:
		events, err := p.events.NormalizeFile(ctx, path)
		return events, nil, err
	case ArtifactRegistry:
		entries, err := p.reg.NormalizeFile(ctx, path)
		return nil, entries, err
	}
	return nil, nil, nil
}

// Score reruns triage over the frozen store: findings document, Top-N
// document and the rendered playbook, all rewritten in place. Scoring reads
// only the store, so repeated runs over unchanged corpora are reproducible.
func (p *Pipeline) Score(st *store.Store) (model.FindingsDocument, model.TopNDocument, error) {
	events, err := st.Events()
	if err != nil {
		return model.FindingsDocument{}, model.TopNDocument{}, err
	}
	entries, err := st.RegistryEntries()
	if err != nil {
		return model.FindingsDocument{}, model.TopNDocument{}, err
	}

	findings := p.engine.Findings(entries, len(events))
	topN := p.engine.Rank(entries, events)

	if err := st.WriteFindings(findings); err != nil {
		return findings, topN, err
	}
	if err := st.WriteTopN(topN); err != nil {
		return findings, topN, err
	}
	if err := st.WritePlaybook(p.renderer.Render(topN)); err != nil {
		return findings, topN, err
	}
	return findings, topN, nil
}

// IndexCase feeds the flattened text corpora into the semantic index.
// Returns the number of documents ingested.
func (p *Pipeline) IndexCase(ctx context.Context, st *store.Store, caseID string) (int, error) {
	corpus, err := st.Corpus()
	if err != nil {
		return 0, err
	}
	if len(corpus) == 0 {
		return 0, nil
	}

	texts := make([]string, len(corpus))
	metadatas := make([]map[string]string, len(corpus))
	for i, line := range corpus {
		texts[i] = line.Text
		metadatas[i] = map[string]string{"type": line.Source}
	}

	ids, err := p.semantic.Ingest(ctx, caseID, texts, metadatas)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}
