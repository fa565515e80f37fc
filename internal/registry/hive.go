package registry

import (
	"context"
	"encoding/hex"
	"os"
	"strconv"
	"strings"
	"time"

	"www.velocidex.com/golang/regparser"

	"github.com/Ramdan0505/radlab-preinvest/internal/metrics"
	"github.com/Ramdan0505/radlab-preinvest/internal/model"
	"github.com/Ramdan0505/radlab-preinvest/pkg/errkind"
)

// Registry value type ids as stored on disk.
const (
	regNone           = 0
	regSZ             = 1
	regExpandSZ       = 2
	regBinary         = 3
	regDword          = 4
	regDwordBigEndian = 5
	regLink           = 6
	regMultiSZ        = 7
	regQword          = 11
)

var valueTypeNames = map[uint32]string{
	regNone:           "REG_NONE",
	regSZ:             "REG_SZ",
	regExpandSZ:       "REG_EXPAND_SZ",
	regBinary:         "REG_BINARY",
	regDword:          "REG_DWORD",
	regDwordBigEndian: "REG_DWORD_BIG_ENDIAN",
	regLink:           "REG_LINK",
	regMultiSZ:        "REG_MULTI_SZ",
	regQword:          "REG_QWORD",
}

// normalizeHive extracts every target key from a binary hive. A corrupt or
// unreadable hive yields zero entries plus a format error; the caller keeps
// going with the rest of the bundle.
func (n *Normalizer) normalizeHive(ctx context.Context, path string) ([]model.RegistryEntry, error) {
	kind := DetectHiveKind(path)
	targets := hiveTargets[kind]
	if len(targets) == 0 {
		n.log.WithFile(path).Warn("no extraction targets for hive", "hive_kind", string(kind))
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		metrics.FilesFailed.WithLabelValues("registry").Inc()
		return nil, errkind.E(errkind.KindFormat, "registry.normalizeHive", "open hive", err)
	}
	defer f.Close()

	reg, err := regparser.NewRegistry(f)
	if err != nil {
		metrics.FilesFailed.WithLabelValues("registry").Inc()
		return nil, errkind.E(errkind.KindFormat, "registry.normalizeHive", "parse hive header", err)
	}

	var entries []model.RegistryEntry
	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			return entries, err
		}
		entries = append(entries, extractTarget(reg, string(kind), target)...)
	}
	return entries, nil
}

func extractTarget(reg *regparser.Registry, hiveName string, target Target) []model.RegistryEntry {
	key := reg.OpenKey(libPath(target.KeyPath))
	if key == nil {
		// Absent target keys are expected, not failures.
		return nil
	}

	if !target.Recurse {
		return keyEntries(key, hiveName, target.KeyPath, target)
	}

	var entries []model.RegistryEntry
	for _, subkey := range key.Subkeys() {
		subPath := target.KeyPath + `\` + subkey.Name()
		entries = append(entries, keyEntries(subkey, hiveName, subPath, target)...)
	}
	return entries
}

func keyEntries(key *regparser.CM_KEY_NODE, hiveName, keyPath string, target Target) []model.RegistryEntry {
	lastWrite := keyLastWrite(key)

	var entries []model.RegistryEntry
	for _, value := range key.Values() {
		name := value.ValueName()
		if name == "" {
			name = "(Default)"
		}
		if !allowedValueName(target.ValueNames, name) {
			continue
		}

		data := value.ValueData()
		if data == nil {
			continue
		}
		text, typeName := stringifyValue(data)

		entries = append(entries, model.RegistryEntry{
			Hive:      hiveName,
			KeyPath:   keyPath,
			Category:  target.Category,
			ValueName: name,
			Value:     text,
			ValueType: typeName,
			LastWrite: lastWrite,
		})
	}
	return entries
}

func keyLastWrite(key *regparser.CM_KEY_NODE) *string {
	ts := key.LastWriteTime().Time
	if ts.IsZero() {
		return nil
	}
	s := ts.UTC().Format(time.RFC3339)
	return &s
}

// stringifyValue renders a raw registry value as text plus its type name.
// Binary and unrecognized types fall back to bounded hex.
func stringifyValue(data *regparser.ValueData) (string, string) {
	typeName, ok := valueTypeNames[data.Type]
	if !ok {
		typeName = "REG_TYPE_" + strconv.FormatUint(uint64(data.Type), 10)
	}

	switch data.Type {
	case regSZ, regExpandSZ, regLink:
		return strings.TrimRight(data.String, "\x00"), typeName
	case regDword, regDwordBigEndian, regQword:
		return strconv.FormatUint(data.Uint64, 10), typeName
	case regMultiSZ:
		return strings.Join(data.MultiSz, " | "), typeName
	}

	raw := data.Data
	if len(raw) > 64 {
		raw = raw[:64]
	}
	return hex.EncodeToString(raw), typeName
}

// libPath converts a canonical backslash key path into the forward-slash
// form the hive parser expects.
func libPath(keyPath string) string {
	return strings.ReplaceAll(keyPath, `\`, "/")
}
