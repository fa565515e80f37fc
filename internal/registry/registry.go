// Package registry extracts DFIR-relevant entries from Windows registry
// hives and textual registry exports into canonical RegistryEntry records.
//
// Binary hives are walked against a fixed target table of persistence,
// installed-software, service and user-activity keys; .reg exports are
// scanned line by line and filtered to the same key prefixes so both
// strategies produce attribute-comparable output.
package registry

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/Ramdan0505/radlab-preinvest/internal/logging"
	"github.com/Ramdan0505/radlab-preinvest/internal/metrics"
	"github.com/Ramdan0505/radlab-preinvest/internal/model"
)

// Normalizer turns registry artifacts into RegistryEntry records.
type Normalizer struct {
	log *logging.Logger
}

func New(logger *logging.Logger) *Normalizer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Normalizer{log: logger}
}

// NormalizeFile parses one registry artifact. The file extension selects the
// strategy: .reg exports go through the text scanner, everything else is
// treated as a binary hive.
func (n *Normalizer) NormalizeFile(ctx context.Context, path string) ([]model.RegistryEntry, error) {
	start := time.Now()
	defer func() {
		metrics.NormalizationDuration.Observe(time.Since(start).Seconds())
	}()

	var (
		entries []model.RegistryEntry
		err     error
	)
	if strings.EqualFold(filepath.Ext(path), ".reg") {
		entries, err = n.normalizeExport(ctx, path)
	} else {
		entries, err = n.normalizeHive(ctx, path)
	}
	if err != nil {
		return entries, err
	}

	metrics.EventsNormalized.WithLabelValues("registry").Add(float64(len(entries)))
	n.log.WithFile(path).Info("normalized registry artifact", "entries", len(entries))
	return entries, nil
}
