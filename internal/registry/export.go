package registry

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/Ramdan0505/radlab-preinvest/internal/metrics"
	"github.com/Ramdan0505/radlab-preinvest/internal/model"
	"github.com/Ramdan0505/radlab-preinvest/pkg/errkind"
)

// normalizeExport parses a textual registry export produced by `reg export`.
// Modern Windows writes these as UTF-16 LE with a BOM; older tools and test
// fixtures use plain UTF-8, so the decoder follows the BOM when present.
//
// Only sections under the high-value key prefixes are kept, so binary-hive
// and export parsing produce attribute-comparable output.
func (n *Normalizer) normalizeExport(ctx context.Context, path string) ([]model.RegistryEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		metrics.FilesFailed.WithLabelValues("registry").Inc()
		return nil, errkind.E(errkind.KindFormat, "registry.normalizeExport", "open export", err)
	}
	defer f.Close()

	hiveName := strings.ToUpper(filepath.Base(path))
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	scanner := bufio.NewScanner(transform.NewReader(f, decoder))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		entries     []model.RegistryEntry
		currentKey  string
		currentCat  string
		skippedLine int
	)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return entries, err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		// File signature, e.g. "Windows Registry Editor Version 5.00".
		if strings.HasPrefix(line, "Windows Registry Editor") || strings.HasPrefix(line, "REGEDIT") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			currentKey = line[1 : len(line)-1]
			currentCat = classifyExportPath(currentKey)
			continue
		}

		if currentKey == "" || currentCat == "" {
			continue
		}

		// Continuations of multi-line hex values carry no name of their own.
		if !strings.Contains(line, "=") && strings.HasSuffix(line, `\`) {
			continue
		}

		name, value, ok := splitExportLine(line)
		if !ok {
			skippedLine++
			continue
		}
		if currentCat == CategoryInstalledSW && !allowedValueName(installedSoftwareValues, name) {
			continue
		}

		entries = append(entries, model.RegistryEntry{
			Hive:      hiveName,
			KeyPath:   currentKey,
			Category:  currentCat,
			ValueName: name,
			Value:     value,
			ValueType: "raw",
		})
	}
	if err := scanner.Err(); err != nil {
		metrics.FilesFailed.WithLabelValues("registry").Inc()
		return entries, errkind.E(errkind.KindFormat, "registry.normalizeExport", "read export", err)
	}

	if skippedLine > 0 {
		metrics.RecordsSkipped.WithLabelValues("registry", "unparseable_line").Add(float64(skippedLine))
	}
	return entries, nil
}

// splitExportLine parses one `name=value` export line. The name is either
// `@` for the default value or a quoted string; the value is kept raw
// (quoted string, dword:..., hex:..., ...).
func splitExportLine(line string) (string, string, bool) {
	idx := strings.Index(line, "=")
	if idx < 0 {
		return "", "", false
	}
	name := strings.TrimSpace(line[:idx])
	value := strings.TrimSpace(line[idx+1:])

	switch {
	case name == "@":
		name = "(Default)"
	case len(name) >= 2 && strings.HasPrefix(name, `"`) && strings.HasSuffix(name, `"`):
		name = strings.ReplaceAll(name[1:len(name)-1], `\"`, `"`)
	case name == "":
		return "", "", false
	}
	return name, value, true
}
