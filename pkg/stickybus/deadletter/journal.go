// Package deadletter keeps a bounded in-memory record of events the bus
// could not deliver.
//
// Two things land in a Journal: dead events, posted when nothing
// subscribes to an event's key or any of its ancestors, and failed
// deliveries, where a subscriber or producer returned an error or
// panicked. The journal is a diagnostic aid. It does not retry, persist,
// or re-post anything.
//
//	j := deadletter.NewJournal(deadletter.Config{MaxSize: 500})
//	bus := stickybus.New(stickybus.WithJournal(j))
//	...
//	for _, e := range j.Entries(10) {
//	    log.Printf("%s %s %v", e.Kind, e.PayloadType, e.Err)
//	}
package deadletter

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a journal entry.
type Kind int

const (
	// KindDeadEvent records an event no subscriber matched.
	KindDeadEvent Kind = iota
	// KindFailedDelivery records a handler invocation that failed.
	KindFailedDelivery
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindDeadEvent:
		return "dead_event"
	case KindFailedDelivery:
		return "failed_delivery"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Entry is one journal record.
type Entry struct {
	// ID uniquely identifies the entry.
	ID string
	// Kind says why the entry was recorded.
	Kind Kind
	// Tag is the tag the event was posted under, if known.
	Tag string
	// PayloadType is the dynamic type of Event.
	PayloadType reflect.Type
	// Event is the undelivered event, nil for producer failures.
	Event any
	// Err is the failure, nil for dead events.
	Err error
	// At is when the entry was recorded.
	At time.Time
}

// Config configures a Journal.
type Config struct {
	// MaxSize bounds the number of retained entries. Once full, the
	// oldest entry is evicted.
	// Default: 1000
	MaxSize int

	// OnRecord is called after every Record, outside the journal lock.
	OnRecord func(Entry)
}

// DefaultConfig provides reasonable defaults.
var DefaultConfig = Config{
	MaxSize: 1000,
}

// Stats summarizes journal activity since creation or the last Clear.
type Stats struct {
	Size             int   // Current number of entries
	Recorded         int64 // Total entries recorded
	DeadEvents       int64 // Total dead events recorded
	FailedDeliveries int64 // Total failed deliveries recorded
	Evicted          int64 // Total entries dropped to stay within MaxSize
}

// Journal is a bounded ring of entries, safe for concurrent use.
type Journal struct {
	mu      sync.RWMutex
	cfg     Config
	ring    []Entry
	head    int // index of the oldest entry
	size    int
	stats   Stats
	nowFunc func() time.Time
}

// NewJournal creates an empty journal.
func NewJournal(cfg Config) *Journal {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultConfig.MaxSize
	}
	return &Journal{
		cfg:     cfg,
		ring:    make([]Entry, cfg.MaxSize),
		nowFunc: time.Now,
	}
}

// Record appends an entry, filling in ID, PayloadType and At when unset,
// and returns the stored entry.
func (j *Journal) Record(e Entry) Entry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.PayloadType == nil && e.Event != nil {
		e.PayloadType = reflect.TypeOf(e.Event)
	}

	j.mu.Lock()
	if e.At.IsZero() {
		e.At = j.nowFunc()
	}
	if j.size == len(j.ring) {
		j.ring[j.head] = e
		j.head = (j.head + 1) % len(j.ring)
		j.stats.Evicted++
	} else {
		j.ring[(j.head+j.size)%len(j.ring)] = e
		j.size++
	}
	j.stats.Recorded++
	switch e.Kind {
	case KindDeadEvent:
		j.stats.DeadEvents++
	case KindFailedDelivery:
		j.stats.FailedDeliveries++
	}
	onRecord := j.cfg.OnRecord
	j.mu.Unlock()

	if onRecord != nil {
		onRecord(e)
	}
	return e
}

// RecordDeadEvent records an event nothing subscribed to.
func (j *Journal) RecordDeadEvent(tag string, event any) Entry {
	return j.Record(Entry{Kind: KindDeadEvent, Tag: tag, Event: event})
}

// RecordFailure records a failed delivery of event, which may be nil.
func (j *Journal) RecordFailure(tag string, event any, err error) Entry {
	return j.Record(Entry{Kind: KindFailedDelivery, Tag: tag, Event: event, Err: err})
}

// Entries returns up to limit of the most recent entries, oldest first.
// A limit of zero or less returns everything.
func (j *Journal) Entries(limit int) []Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if limit <= 0 || limit > j.size {
		limit = j.size
	}
	out := make([]Entry, 0, limit)
	for i := j.size - limit; i < j.size; i++ {
		out = append(out, j.ring[(j.head+i)%len(j.ring)])
	}
	return out
}

// EntriesOf returns every retained entry of kind k, oldest first.
func (j *Journal) EntriesOf(k Kind) []Entry {
	all := j.Entries(0)
	out := all[:0]
	for _, e := range all {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

// Get returns the retained entry with the given ID.
func (j *Journal) Get(id string) (Entry, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	for i := 0; i < j.size; i++ {
		e := j.ring[(j.head+i)%len(j.ring)]
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Len returns the number of retained entries.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.size
}

// Cap returns MaxSize.
func (j *Journal) Cap() int {
	return len(j.ring)
}

// Stats returns journal statistics.
func (j *Journal) Stats() Stats {
	j.mu.RLock()
	defer j.mu.RUnlock()

	s := j.stats
	s.Size = j.size
	return s
}

// Clear drops every entry and resets statistics.
func (j *Journal) Clear() {
	j.mu.Lock()
	defer j.mu.Unlock()

	clear(j.ring)
	j.head = 0
	j.size = 0
	j.stats = Stats{}
}
