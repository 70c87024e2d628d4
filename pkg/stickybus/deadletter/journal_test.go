package deadletter

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournal_Record(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	j := NewJournal(Config{MaxSize: 10})
	j.nowFunc = func() time.Time { return fixed }

	e := j.RecordDeadEvent("x", "hello")

	_, err := uuid.Parse(e.ID)
	require.NoError(t, err, "entries get uuid identifiers")
	assert.Equal(t, KindDeadEvent, e.Kind)
	assert.Equal(t, "x", e.Tag)
	assert.Equal(t, reflect.TypeOf(""), e.PayloadType)
	assert.Equal(t, fixed, e.At)
	assert.Nil(t, e.Err)

	got, ok := j.Get(e.ID)
	require.True(t, ok)
	assert.Equal(t, e, got)

	_, ok = j.Get("missing")
	assert.False(t, ok)
}

func TestJournal_RecordFailure(t *testing.T) {
	j := NewJournal(Config{})
	assert.Equal(t, DefaultConfig.MaxSize, j.Cap())

	boom := errors.New("boom")
	e := j.RecordFailure("", nil, boom)
	assert.Equal(t, KindFailedDelivery, e.Kind)
	assert.Nil(t, e.PayloadType)
	assert.ErrorIs(t, e.Err, boom)
}

func TestJournal_Eviction(t *testing.T) {
	j := NewJournal(Config{MaxSize: 3})
	for i := 0; i < 5; i++ {
		j.RecordDeadEvent("", i)
	}

	entries := j.Entries(0)
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, i+2, e.Event, "oldest entries are evicted first")
	}

	last := j.Entries(2)
	require.Len(t, last, 2)
	assert.Equal(t, 3, last[0].Event)
	assert.Equal(t, 4, last[1].Event)

	stats := j.Stats()
	assert.Equal(t, 3, stats.Size)
	assert.Equal(t, int64(5), stats.Recorded)
	assert.Equal(t, int64(2), stats.Evicted)
	assert.Equal(t, int64(5), stats.DeadEvents)
}

func TestJournal_EntriesOf(t *testing.T) {
	j := NewJournal(Config{MaxSize: 10})
	j.RecordDeadEvent("", 1)
	j.RecordFailure("", 2, errors.New("x"))
	j.RecordDeadEvent("", 3)

	dead := j.EntriesOf(KindDeadEvent)
	require.Len(t, dead, 2)
	assert.Equal(t, 1, dead[0].Event)
	assert.Equal(t, 3, dead[1].Event)

	failed := j.EntriesOf(KindFailedDelivery)
	require.Len(t, failed, 1)
	assert.Equal(t, int64(1), j.Stats().FailedDeliveries)
}

func TestJournal_Clear(t *testing.T) {
	j := NewJournal(Config{MaxSize: 2})
	j.RecordDeadEvent("", 1)
	j.RecordDeadEvent("", 2)
	j.RecordDeadEvent("", 3)

	j.Clear()
	assert.Equal(t, 0, j.Len())
	assert.Empty(t, j.Entries(0))
	assert.Equal(t, Stats{}, j.Stats())

	j.RecordDeadEvent("", 4)
	assert.Equal(t, 4, j.Entries(0)[0].Event)
}

func TestJournal_OnRecord(t *testing.T) {
	var seen []Entry
	j := NewJournal(Config{
		MaxSize: 5,
		OnRecord: func(e Entry) {
			seen = append(seen, e)
		},
	})

	e := j.RecordDeadEvent("tag", 1)
	require.Len(t, seen, 1)
	assert.Equal(t, e.ID, seen[0].ID)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "dead_event", KindDeadEvent.String())
	assert.Equal(t, "failed_delivery", KindFailedDelivery.String())
	assert.Equal(t, "kind(7)", Kind(7).String())
}

func TestJournal_Concurrent(t *testing.T) {
	j := NewJournal(Config{MaxSize: 50})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 100; n++ {
				j.RecordDeadEvent(fmt.Sprint(i), n)
				_ = j.Entries(5)
			}
		}()
	}
	wg.Wait()

	stats := j.Stats()
	assert.Equal(t, int64(1000), stats.Recorded)
	assert.Equal(t, 50, stats.Size)
	assert.Equal(t, int64(950), stats.Evicted)
}
