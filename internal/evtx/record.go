package evtx

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Velocidex/ordereddict"

	"github.com/Ramdan0505/radlab-preinvest/internal/model"
	"github.com/Ramdan0505/radlab-preinvest/pkg/errkind"
)

// normalizeRecord reduces one parsed record tree to a CanonicalEvent.
// Returns (nil, nil) when the event type is filtered by the allow-list.
// Shape problems yield format-kind errors so the caller can skip the
// record and keep decoding.
func (n *Normalizer) normalizeRecord(sourceFile string, record *ordereddict.Dict) (*model.CanonicalEvent, error) {
	event, ok := getDict(record, "Event")
	if !ok {
		// Some chunks hand the inner Event dict straight through.
		event = record
	}

	system, ok := getDict(event, "System")
	if !ok {
		return nil, errkind.E(errkind.KindFormat, "evtx.normalizeRecord", "record has no System section")
	}

	eventID, ok := resolveEventID(system)
	if !ok {
		return nil, errkind.E(errkind.KindFormat, "evtx.normalizeRecord", "record has no event id")
	}

	if !n.Allows(eventID) {
		return nil, nil
	}

	out := &model.CanonicalEvent{
		SourceFile: sourceFile,
		EventID:    eventID,
		RecordID:   resolveRecordID(system),
		Timestamp:  resolveTimestamp(system),
		Computer:   optionalString(system, "Computer"),
		Channel:    optionalString(system, "Channel"),
		Data:       flattenEventData(event),
	}
	out.Tags = deriveTags(eventID, deref(out.Channel))
	return out, nil
}

// resolveEventID handles both the plain and the qualified EventID form.
func resolveEventID(system *ordereddict.Dict) (int, bool) {
	raw, ok := system.Get("EventID")
	if !ok {
		return 0, false
	}
	if qualified, ok := raw.(*ordereddict.Dict); ok {
		raw, ok = qualified.Get("Value")
		if !ok {
			return 0, false
		}
	}
	return asInt(raw)
}

// resolveRecordID returns the record identifier, or nil when it cannot be
// resolved. A missing id never aborts normalization.
func resolveRecordID(system *ordereddict.Dict) *uint64 {
	raw, ok := system.Get("EventRecordID")
	if !ok {
		return nil
	}
	id, ok := asUint64(raw)
	if !ok {
		return nil
	}
	return &id
}

// resolveTimestamp extracts TimeCreated/SystemTime as an RFC 3339 string,
// or nil when absent or unreadable.
func resolveTimestamp(system *ordereddict.Dict) *string {
	created, ok := getDict(system, "TimeCreated")
	if !ok {
		return nil
	}
	raw, ok := created.Get("SystemTime")
	if !ok {
		return nil
	}

	switch v := raw.(type) {
	case time.Time:
		s := v.UTC().Format(time.RFC3339Nano)
		return &s
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		return &s
	default:
		if epoch, ok := asFloat64(raw); ok {
			sec, frac := math.Modf(epoch)
			s := time.Unix(int64(sec), int64(frac*1e9)).UTC().Format(time.RFC3339Nano)
			return &s
		}
	}
	return nil
}

func optionalString(dict *ordereddict.Dict, key string) *string {
	raw, ok := dict.Get(key)
	if !ok {
		return nil
	}
	s := strings.TrimSpace(asString(raw))
	if s == "" {
		return nil
	}
	return &s
}

// flattenEventData turns the free-form EventData section into an ordered
// name→string list. Both the collapsed form (attribute names as keys) and
// the raw Data-element list are accepted.
func flattenEventData(event *ordereddict.Dict) model.Attributes {
	data, ok := getDict(event, "EventData")
	if !ok {
		return nil
	}

	var attrs model.Attributes
	for _, key := range data.Keys() {
		raw, _ := data.Get(key)

		if key == "Data" {
			if list, ok := raw.([]interface{}); ok {
				attrs = append(attrs, flattenDataList(list)...)
				continue
			}
		}

		if nested, ok := raw.(*ordereddict.Dict); ok {
			// e.g. {"Name": "...", "Value": "..."} element kept as a dict.
			if name, value, ok := namedValue(nested); ok {
				attrs = append(attrs, model.Attribute{Name: name, Value: value})
				continue
			}
		}

		attrs = append(attrs, model.Attribute{Name: key, Value: asString(raw)})
	}
	return attrs
}

func flattenDataList(list []interface{}) model.Attributes {
	var attrs model.Attributes
	for _, element := range list {
		if nested, ok := element.(*ordereddict.Dict); ok {
			if name, value, ok := namedValue(nested); ok {
				attrs = append(attrs, model.Attribute{Name: name, Value: value})
				continue
			}
		}
		attrs = append(attrs, model.Attribute{Name: "data", Value: asString(element)})
	}
	return attrs
}

func namedValue(dict *ordereddict.Dict) (string, string, bool) {
	rawName, ok := dict.Get("Name")
	if !ok {
		return "", "", false
	}
	name := asString(rawName)
	if name == "" {
		name = "data"
	}
	rawValue, ok := dict.Get("Value")
	if !ok {
		return name, "", true
	}
	return name, asString(rawValue), true
}

func getDict(dict *ordereddict.Dict, key string) (*ordereddict.Dict, bool) {
	raw, ok := dict.Get(key)
	if !ok {
		return nil, false
	}
	nested, ok := raw.(*ordereddict.Dict)
	return nested, ok
}

func asString(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case []byte:
		return strings.TrimSpace(string(s))
	case bool:
		return strconv.FormatBool(s)
	case float64:
		if s == math.Trunc(s) && math.Abs(s) < 1e15 {
			return strconv.FormatInt(int64(s), 10)
		}
		return strconv.FormatFloat(s, 'g', -1, 64)
	case time.Time:
		return s.UTC().Format(time.RFC3339Nano)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case uint32:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	default:
		return 0, false
	}
}

func asUint64(v interface{}) (uint64, bool) {
	switch n := v.(type) {
	case uint64:
		return n, true
	case int:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case int64:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case uint32:
		return uint64(n), true
	case float64:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case string:
		u, err := strconv.ParseUint(strings.TrimSpace(n), 10, 64)
		return u, err == nil
	default:
		return 0, false
	}
}

func asFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
