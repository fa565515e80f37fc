// Package evtx decodes binary Windows event-log files into canonical
// events. Only incident-response-relevant event types pass the allow-list;
// everything else is dropped at the source.
package evtx

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/Velocidex/ordereddict"
	evtxlib "www.velocidex.com/golang/evtx"

	"github.com/Ramdan0505/radlab-preinvest/internal/logging"
	"github.com/Ramdan0505/radlab-preinvest/internal/metrics"
	"github.com/Ramdan0505/radlab-preinvest/internal/model"
	"github.com/Ramdan0505/radlab-preinvest/pkg/errkind"
)

// DefaultEventIDs is the core DFIR-relevant allow-list: authentication,
// process lifecycle, account and group changes, service installs, script
// execution and boot/shutdown markers.
var DefaultEventIDs = []int{
	4624, // Logon
	4625, // Failed logon
	4634, // Logoff
	4648, // Logon with explicit credentials
	4672, // Special privileges assigned to new logon
	4688, // Process creation
	4689, // Process exit
	4720, // User account created
	4722, // User account enabled
	4725, // User account disabled
	4728, // User added to global security-enabled group
	4732, // User added to local security-enabled group
	4735, // Security-enabled local group changed
	4740, // Account locked out
	4768, // Kerberos TGT requested
	4769, // Kerberos service ticket requested
	4776, // NTLM authentication
	7045, // Service installed
	4103, // PowerShell operational
	4104, // PowerShell script block
	6005, // Event log service started (boot)
	6006, // Event log service stopped (shutdown)
}

// Normalizer stream-decodes EVTX files into canonical events.
type Normalizer struct {
	allow map[int]struct{}
	log   *logging.Logger
}

// New creates a Normalizer. A nil or empty allow-list selects
// DefaultEventIDs.
func New(allowed []int, logger *logging.Logger) *Normalizer {
	if len(allowed) == 0 {
		allowed = DefaultEventIDs
	}
	if logger == nil {
		logger = logging.Discard()
	}
	allow := make(map[int]struct{}, len(allowed))
	for _, id := range allowed {
		allow[id] = struct{}{}
	}
	return &Normalizer{allow: allow, log: logger}
}

// Allows reports whether the event type passes the allow-list.
func (n *Normalizer) Allows(eventID int) bool {
	_, ok := n.allow[eventID]
	return ok
}

// NormalizeFile decodes one EVTX file and returns the eligible canonical
// events in file order. A single corrupt record or chunk is skipped;
// only a file that cannot be opened or framed at all fails, with a
// format-kind error.
func (n *Normalizer) NormalizeFile(ctx context.Context, path string) ([]model.CanonicalEvent, error) {
	start := time.Now()
	defer func() {
		metrics.NormalizationDuration.Observe(time.Since(start).Seconds())
	}()

	f, err := os.Open(path)
	if err != nil {
		return nil, errkind.E(errkind.KindFormat, "evtx.NormalizeFile", "cannot open event log", err)
	}
	defer f.Close()

	chunks, err := evtxlib.GetChunks(f)
	if err != nil {
		metrics.FilesFailed.WithLabelValues("evtx").Inc()
		return nil, errkind.E(errkind.KindFormat, "evtx.NormalizeFile", "invalid event log container", err)
	}

	sourceFile := filepath.Base(path)
	log := n.log.WithFile(sourceFile)

	var events []model.CanonicalEvent
	seen := make(map[uint64]struct{})
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		records, err := chunk.Parse(0)
		if err != nil {
			// A corrupt chunk loses its records but never the file.
			log.Debug("skipping corrupt chunk", "error", err)
			metrics.RecordsSkipped.WithLabelValues("evtx", "corrupt_chunk").Inc()
			continue
		}

		for _, record := range records {
			dict, ok := record.Event.(*ordereddict.Dict)
			if !ok {
				metrics.RecordsSkipped.WithLabelValues("evtx", "unparseable_record").Inc()
				continue
			}

			event, err := n.normalizeRecord(sourceFile, dict)
			if err != nil {
				if !errkind.IsFormat(err) {
					return nil, err
				}
				log.Debug("skipping record", "error", err)
				metrics.RecordsSkipped.WithLabelValues("evtx", "malformed").Inc()
				continue
			}
			if event == nil {
				// Filtered by the allow-list.
				metrics.RecordsSkipped.WithLabelValues("evtx", "filtered").Inc()
				continue
			}
			if event.RecordID != nil {
				// Record ids repeat only in a damaged or tampered log;
				// the first occurrence wins.
				if _, dup := seen[*event.RecordID]; dup {
					log.Warn("duplicate record id", "record", *event.RecordID,
						"kind", errkind.KindDataIntegrity.String())
					metrics.RecordsSkipped.WithLabelValues("evtx", "duplicate_record").Inc()
					continue
				}
				seen[*event.RecordID] = struct{}{}
			}

			events = append(events, *event)
		}
	}

	metrics.EventsNormalized.WithLabelValues("evtx").Add(float64(len(events)))
	log.Info("event log normalized", "events", len(events))
	return events, nil
}
