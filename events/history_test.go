package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusRecordsDispatchedEmissions(t *testing.T) {
	h := NewHistory(10)
	b := newTestBus(WithHistory(h))
	defer b.Close()
	require.Same(t, h, b.History())

	b.Use(func(name Name, args []any) bool { return name != ThemeChanged })
	require.NoError(t, b.Emit(InstanceCreated, "inst-1", "clock"))
	require.NoError(t, b.Emit(ThemeChanged, "dark"))
	require.NoError(t, b.Emit(InstanceData, "inst-1", 3))

	recs := h.Records()
	require.Len(t, recs, 2, "vetoed emissions are not recorded")
	assert.Equal(t, InstanceCreated, recs[0].Name)
	assert.Equal(t, "inst-1", recs[0].Subject)
	assert.Equal(t, []any{"inst-1", 3}, recs[1].Args)
}

func TestHistoryEvictsOldest(t *testing.T) {
	h := NewHistory(3)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		h.Add(InstanceRecovered, []any{id})
	}
	assert.Equal(t, 3, h.Size())
	var subjects []string
	for _, r := range h.Records() {
		subjects = append(subjects, r.Subject)
	}
	assert.Equal(t, []string{"c", "d", "e"}, subjects)

	h.Clear()
	assert.Zero(t, h.Size())
	assert.Equal(t, 3, h.MaxSize())
}

func TestHistoryExpiresByAge(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	h := NewHistoryWithAge(10, time.Minute)
	h.now = func() time.Time { return now }

	h.Add(PluginRegistered, []any{"clock"})
	now = now.Add(30 * time.Second)
	h.Add(PluginRegistered, []any{"notes"})
	now = now.Add(45 * time.Second)

	recs := h.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, "notes", recs[0].Subject)
}

func TestHistoryQuery(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	now := start
	h := NewHistoryWithAge(10, 0)
	h.now = func() time.Time { return now }

	h.Add(PluginRegistered, []any{"clock"})
	now = now.Add(time.Second)
	h.Add(InstanceCreated, []any{"inst-1", "clock"})
	now = now.Add(time.Second)
	h.Add(InstanceError, []any{"inst-1", assert.AnError})
	now = now.Add(time.Second)
	h.Add(InstanceCreated, []any{"inst-2", "notes"})

	assert.Len(t, h.Query(NewFilter().WithPrefix("instance:")), 3)
	assert.Len(t, h.Query(NewFilter().WithSubject("inst-1")), 2)
	assert.Len(t, h.Query(NewFilter().WithName(InstanceCreated).WithSubject("inst-2")), 1)
	assert.Len(t, h.Query(NewFilter().WithTimeRange(start.Add(time.Second), start.Add(2*time.Second))), 2)
	assert.Len(t, h.Query(nil), 4)

	f := NewFilter().WithName(InstanceError)
	c := f.Clone()
	c.Names[0] = InstanceData
	assert.Equal(t, InstanceError, f.Names[0])
	assert.True(t, NewFilter().IsEmpty())
	assert.False(t, f.IsEmpty())
}
