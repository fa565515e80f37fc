package model_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramdan0505/radlab-preinvest/internal/model"
)

func strptr(s string) *string { return &s }

func u64ptr(u uint64) *uint64 { return &u }

func TestCanonicalEventTextLine(t *testing.T) {
	t.Run("full event", func(t *testing.T) {
		event := model.CanonicalEvent{
			SourceFile: "Security.evtx",
			RecordID:   u64ptr(4711),
			EventID:    4688,
			Timestamp:  strptr("2024-03-01T10:22:31Z"),
			Computer:   strptr("WS01"),
			Channel:    strptr("Security"),
			Data: model.Attributes{
				{Name: "NewProcessName", Value: "C:\\Windows\\System32\\cmd.exe"},
				{Name: "CommandLine", Value: "cmd.exe /c whoami\r\n"},
			},
		}

		line := event.TextLine()
		assert.Equal(t,
			"[2024-03-01T10:22:31Z] EventID=4688 Record=4711 Computer=WS01 Channel=Security "+
				"NewProcessName=C:\\Windows\\System32\\cmd.exe CommandLine=cmd.exe /c whoami",
			line)
	})

	t.Run("missing record id and timestamp", func(t *testing.T) {
		event := model.CanonicalEvent{EventID: 4624}
		line := event.TextLine()
		assert.Contains(t, line, "UNKNOWN_TIME")
		assert.Contains(t, line, "Record=?")
	})

	t.Run("empty attribute values are dropped", func(t *testing.T) {
		event := model.CanonicalEvent{
			EventID: 4624,
			Data:    model.Attributes{{Name: "LogonGuid", Value: ""}},
		}
		assert.NotContains(t, event.TextLine(), "LogonGuid")
	})
}

func TestRegistryEntryTextLine(t *testing.T) {
	entry := model.RegistryEntry{
		Hive:      "SOFTWARE",
		KeyPath:   `Microsoft\Windows\CurrentVersion\Run`,
		Category:  "autostart_run",
		ValueName: "Updater",
		Value:     "C:\\Users\\bob\\AppData\\Roaming\\up.exe",
		ValueType: "REG_SZ",
		LastWrite: strptr("2024-02-11T08:00:00Z"),
	}

	line := entry.TextLine()
	assert.Equal(t,
		`[2024-02-11T08:00:00Z] HIVE=SOFTWARE Category=autostart_run `+
			`Key=Microsoft\Windows\CurrentVersion\Run ValueName=Updater `+
			`Value=C:\Users\bob\AppData\Roaming\up.exe`,
		line)
}

func TestAttributesJSONRoundTrip(t *testing.T) {
	attrs := model.Attributes{
		{Name: "SubjectUserName", Value: "bob"},
		{Name: "TargetUserName", Value: "admin"},
		{Name: "IpAddress", Value: "10.0.0.5"},
	}

	data, err := json.Marshal(attrs)
	require.NoError(t, err)
	assert.Equal(t,
		`{"SubjectUserName":"bob","TargetUserName":"admin","IpAddress":"10.0.0.5"}`,
		string(data))

	var decoded model.Attributes
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, attrs, decoded)
}

func TestAttributesMarshalIsDeterministic(t *testing.T) {
	attrs := model.Attributes{
		{Name: "b", Value: "2"},
		{Name: "a", Value: "1"},
	}

	first, err := json.Marshal(attrs)
	require.NoError(t, err)
	second, err := json.Marshal(attrs)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	// Insertion order, not lexical order.
	assert.Equal(t, `{"b":"2","a":"1"}`, string(first))
}

func TestAttributesUnmarshalRejectsNonObject(t *testing.T) {
	var attrs model.Attributes
	assert.Error(t, json.Unmarshal([]byte(`["a","b"]`), &attrs))
}

func TestEventJSONShape(t *testing.T) {
	event := model.CanonicalEvent{
		SourceFile: "System.evtx",
		EventID:    7045,
		Data:       model.Attributes{{Name: "ServiceName", Value: "badsvc"}},
	}

	data, err := json.Marshal(&event)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "null", string(raw["record_number"]))
	assert.Equal(t, "null", string(raw["timestamp"]))
	assert.Equal(t, "null", string(raw["computer"]))
	assert.Equal(t, "null", string(raw["channel"]))
	assert.Contains(t, string(raw["data"]), "badsvc")
}
