package evtx

import (
	"testing"

	"github.com/Velocidex/ordereddict"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramdan0505/radlab-preinvest/pkg/errkind"
)

func systemSection(eventID interface{}, recordID interface{}) *ordereddict.Dict {
	system := ordereddict.NewDict().
		Set("Provider", ordereddict.NewDict().Set("Name", "Microsoft-Windows-Security-Auditing")).
		Set("EventID", eventID).
		Set("TimeCreated", ordereddict.NewDict().Set("SystemTime", float64(1709287351))).
		Set("Computer", "WS01").
		Set("Channel", "Security")
	if recordID != nil {
		system.Set("EventRecordID", recordID)
	}
	return system
}

func wrap(system *ordereddict.Dict, eventData *ordereddict.Dict) *ordereddict.Dict {
	event := ordereddict.NewDict().Set("System", system)
	if eventData != nil {
		event.Set("EventData", eventData)
	}
	return ordereddict.NewDict().Set("Event", event)
}

func TestNormalizeRecord(t *testing.T) {
	n := New(nil, nil)

	t.Run("eligible record is fully extracted", func(t *testing.T) {
		data := ordereddict.NewDict().
			Set("TargetUserName", "admin").
			Set("IpAddress", "10.0.0.5")
		record := wrap(systemSection(uint64(4625), uint64(1203)), data)

		event, err := n.normalizeRecord("Security.evtx", record)
		require.NoError(t, err)
		require.NotNil(t, event)

		assert.Equal(t, "Security.evtx", event.SourceFile)
		assert.Equal(t, 4625, event.EventID)
		require.NotNil(t, event.RecordID)
		assert.Equal(t, uint64(1203), *event.RecordID)
		require.NotNil(t, event.Timestamp)
		assert.Equal(t, "2024-03-01T10:02:31Z", *event.Timestamp)
		require.NotNil(t, event.Computer)
		assert.Equal(t, "WS01", *event.Computer)
		require.NotNil(t, event.Channel)
		assert.Equal(t, "Security", *event.Channel)

		user, ok := event.Data.Get("TargetUserName")
		require.True(t, ok)
		assert.Equal(t, "admin", user)
		assert.Contains(t, event.Tags, "authentication")
		assert.Contains(t, event.Tags, "failed_logon")
	})

	t.Run("event id outside allow-list is filtered", func(t *testing.T) {
		record := wrap(systemSection(uint64(5156), uint64(1)), nil)
		event, err := n.normalizeRecord("Security.evtx", record)
		require.NoError(t, err)
		assert.Nil(t, event)
	})

	t.Run("qualified event id form", func(t *testing.T) {
		qualified := ordereddict.NewDict().Set("Value", uint64(7045)).Set("Qualifiers", uint64(16384))
		record := wrap(systemSection(qualified, uint64(9)), nil)

		event, err := n.normalizeRecord("System.evtx", record)
		require.NoError(t, err)
		require.NotNil(t, event)
		assert.Equal(t, 7045, event.EventID)
	})

	t.Run("missing record id yields nil not error", func(t *testing.T) {
		record := wrap(systemSection(uint64(4624), nil), nil)
		event, err := n.normalizeRecord("Security.evtx", record)
		require.NoError(t, err)
		require.NotNil(t, event)
		assert.Nil(t, event.RecordID)
	})

	t.Run("unparseable record id yields nil not error", func(t *testing.T) {
		record := wrap(systemSection(uint64(4624), "not-a-number"), nil)
		event, err := n.normalizeRecord("Security.evtx", record)
		require.NoError(t, err)
		require.NotNil(t, event)
		assert.Nil(t, event.RecordID)
	})

	t.Run("record without System section is a format error", func(t *testing.T) {
		record := ordereddict.NewDict().Set("Event", ordereddict.NewDict())
		_, err := n.normalizeRecord("Security.evtx", record)
		require.Error(t, err)
		assert.True(t, errkind.IsFormat(err))
	})

	t.Run("record without event id is a format error", func(t *testing.T) {
		system := ordereddict.NewDict().Set("Channel", "Security")
		record := ordereddict.NewDict().Set("Event", ordereddict.NewDict().Set("System", system))
		_, err := n.normalizeRecord("Security.evtx", record)
		require.Error(t, err)
		assert.True(t, errkind.IsFormat(err))
	})
}

func TestAllowListBoundary(t *testing.T) {
	// N records, M eligible: only allow-listed ids survive.
	n := New([]int{4624}, nil)

	ids := []uint64{4624, 4625, 4688, 4624}
	var kept int
	for i, id := range ids {
		record := wrap(systemSection(id, uint64(i+1)), nil)
		event, err := n.normalizeRecord("Security.evtx", record)
		require.NoError(t, err)
		if event != nil {
			kept++
		}
	}
	assert.Equal(t, 2, kept)
}

func TestFlattenEventData(t *testing.T) {
	t.Run("data element list", func(t *testing.T) {
		data := ordereddict.NewDict().Set("Data", []interface{}{
			ordereddict.NewDict().Set("Name", "ServiceName").Set("Value", "badsvc"),
			ordereddict.NewDict().Set("Name", "ImagePath").Set("Value", `C:\Temp\bad.exe`),
		})
		record := wrap(systemSection(uint64(7045), uint64(3)), data)

		n := New(nil, nil)
		event, err := n.normalizeRecord("System.evtx", record)
		require.NoError(t, err)
		require.NotNil(t, event)

		require.Len(t, event.Data, 2)
		assert.Equal(t, "ServiceName", event.Data[0].Name)
		assert.Equal(t, "badsvc", event.Data[0].Value)
		assert.Equal(t, `C:\Temp\bad.exe`, event.Data[1].Value)
	})

	t.Run("unnamed data element", func(t *testing.T) {
		data := ordereddict.NewDict().Set("Data", []interface{}{"loose value"})
		record := wrap(systemSection(uint64(4104), uint64(4)), data)

		n := New(nil, nil)
		event, err := n.normalizeRecord("PowerShell.evtx", record)
		require.NoError(t, err)
		require.NotNil(t, event)

		require.Len(t, event.Data, 1)
		assert.Equal(t, "data", event.Data[0].Name)
		assert.Equal(t, "loose value", event.Data[0].Value)
	})

	t.Run("numeric values are stringified", func(t *testing.T) {
		data := ordereddict.NewDict().Set("LogonType", uint64(3))
		record := wrap(systemSection(uint64(4624), uint64(5)), data)

		n := New(nil, nil)
		event, err := n.normalizeRecord("Security.evtx", record)
		require.NoError(t, err)
		require.NotNil(t, event)

		v, ok := event.Data.Get("LogonType")
		require.True(t, ok)
		assert.Equal(t, "3", v)
	})
}

func TestDeriveTags(t *testing.T) {
	testCases := []struct {
		name     string
		eventID  int
		channel  string
		expected []string
	}{
		{"security channel logon", 4624, "Security", []string{"authentication", "successful_logon"}},
		{"failed logon", 4625, "Security", []string{"authentication", "failed_logon"}},
		{"service install", 7045, "System", []string{"service_install"}},
		{"script block", 4104, "Microsoft-Windows-PowerShell/Operational", []string{"script_execution"}},
		{"process creation", 4688, "Security", []string{"authentication", "process_lifecycle"}},
		{"account created", 4720, "Security", []string{"authentication", "account_change"}},
		{"boot marker", 6005, "System", []string{"boot_shutdown"}},
		{"no tags", 1234, "Application", nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, deriveTags(tc.eventID, tc.channel))
		})
	}
}
