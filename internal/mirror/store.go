// Package mirror keeps an in-memory copy of the remote relations, with secondary indices
// maintained in the same critical section as the primary rows.
package mirror

import (
	"reflect"
	"sync"
	"time"

	"hotspot/internal/domain/entity"

	"github.com/google/uuid"
)

// Outcome reports what a write did to the mirror.
type Outcome int

const (
	// Unchanged means the write was a no-op (value-equal upsert, remove of an absent id).
	Unchanged Outcome = iota
	// Applied means the mirror changed.
	Applied
	// Stale means the write was rejected because the mirror holds a newer version.
	Stale
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Stale:
		return "stale"
	default:
		return "unchanged"
	}
}

// Change describes one row transition. Before is nil for inserts, After is nil for removals.
type Change struct {
	Kind   entity.Kind
	ID     uuid.UUID
	Before entity.Record
	After  entity.Record
}

// Listener observes committed changes. It runs on the writer's goroutine after the lock is released.
type Listener func(changes []Change)

// Reader is the read side of the mirror.
type Reader interface {
	Get(kind entity.Kind, id uuid.UUID) (entity.Record, bool)
	List(kind entity.Kind) []entity.Record
	ListByIndex(kind entity.Kind, key entity.IndexKey, value uuid.UUID) []entity.Record
}

// DefaultTombstoneRetention bounds how long a removal keeps rejecting redelivered inserts.
const DefaultTombstoneRetention = 24 * time.Hour

// Option configures a Store.
type Option func(*Store)

// WithTombstoneRetention overrides DefaultTombstoneRetention.
func WithTombstoneRetention(retention time.Duration) Option {
	return func(s *Store) {
		if retention > 0 {
			s.retention = retention
		}
	}
}

// WithClock replaces time.Now for tombstone bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithUniqueIndex declares that at most one row of kind may hold a given value of key.
// An upsert evicts older rows sharing the value; an upsert older than the holder is rejected.
func WithUniqueIndex(kind entity.Kind, key entity.IndexKey) Option {
	return func(s *Store) {
		s.unique[kind] = key
	}
}

// Store is the mirror. Reads run concurrently; each write holds the lock for one entity mutation.
type Store struct {
	mu        sync.RWMutex
	tables    map[entity.Kind]*table
	unique    map[entity.Kind]entity.IndexKey
	retention time.Duration
	now       func() time.Time

	listenersMu sync.RWMutex
	listeners   []Listener
}

type table struct {
	rows        map[uuid.UUID]entity.Record
	index       map[entity.IndexKey]map[uuid.UUID]map[uuid.UUID]struct{}
	tombstones  map[uuid.UUID]tombstone
	unconfirmed map[uuid.UUID]struct{}
	sweptAt     time.Time
}

// tombstone remembers the version of a removed row and when it was removed.
type tombstone struct {
	version  time.Time
	buriedAt time.Time
}

func newTable() *table {
	return &table{
		rows:        make(map[uuid.UUID]entity.Record),
		index:       make(map[entity.IndexKey]map[uuid.UUID]map[uuid.UUID]struct{}),
		tombstones:  make(map[uuid.UUID]tombstone),
		unconfirmed: make(map[uuid.UUID]struct{}),
	}
}

// NewStore creates an empty mirror.
func NewStore(opts ...Option) *Store {
	s := &Store{
		tables:    make(map[entity.Kind]*table),
		unique:    make(map[entity.Kind]entity.IndexKey),
		retention: DefaultTombstoneRetention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// OnChange registers a listener for committed changes.
func (s *Store) OnChange(listener Listener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()

	s.listeners = append(s.listeners, listener)
}

// Upsert inserts or replaces a row, last writer wins by row version.
// Rows without a version are ordered by arrival.
func (s *Store) Upsert(record entity.Record) Outcome {
	changes, outcome := s.upsert(record, false)
	s.notify(changes)

	return outcome
}

// UpsertLocal is Upsert for rows this process just wrote to the remote store.
// A row it applies stays unconfirmed until Confirm observes its feed insert; a row the feed
// already delivered is left as is.
func (s *Store) UpsertLocal(record entity.Record) Outcome {
	changes, outcome := s.upsert(record, true)
	s.notify(changes)

	return outcome
}

// Confirm clears the unconfirmed mark of a locally written row and reports whether it was set.
func (s *Store) Confirm(kind entity.Kind, id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[kind]
	if !ok {
		return false
	}
	if _, ok := t.unconfirmed[id]; !ok {
		return false
	}
	delete(t.unconfirmed, id)

	return true
}

func (s *Store) upsert(record entity.Record, local bool) ([]Change, Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kind := record.Kind()
	id := record.RecordID()
	t := s.table(kind)

	if tomb, ok := t.tombstones[id]; ok && !tomb.version.IsZero() && !record.Version().IsZero() && !record.Version().After(tomb.version) {
		return nil, Stale
	}

	current, exists := t.rows[id]
	if exists {
		if reflect.DeepEqual(current, record) {
			return nil, Unchanged
		}
		if olderThan(record, current) {
			return nil, Stale
		}
	}

	var changes []Change
	if key, ok := s.unique[kind]; ok {
		holders := t.conflicts(record, key)
		for _, holder := range holders {
			if olderThan(record, holder) {
				return nil, Stale
			}
		}
		for _, holder := range holders {
			t.delete(holder)
			s.bury(t, holder)
			changes = append(changes, Change{Kind: kind, ID: holder.RecordID(), Before: holder})
		}
	}

	t.put(record)
	delete(t.tombstones, id)
	if local {
		t.unconfirmed[id] = struct{}{}
	}
	changes = append(changes, Change{Kind: kind, ID: id, Before: current, After: record})

	return changes, Applied
}

// Remove deletes a row. A later redelivery of the same or an older version is rejected.
func (s *Store) Remove(kind entity.Kind, id uuid.UUID) Outcome {
	change, outcome := s.remove(kind, id)
	if outcome == Applied {
		s.notify([]Change{change})
	}

	return outcome
}

func (s *Store) remove(kind entity.Kind, id uuid.UUID) (Change, Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.table(kind)
	current, ok := t.rows[id]
	if !ok {
		return Change{}, Unchanged
	}

	t.delete(current)
	s.bury(t, current)

	return Change{Kind: kind, ID: id, Before: current}, Applied
}

// CompareAndRestore puts snapshot back (nil removes the row) only if the row still equals expected
// (nil meaning absent). It bypasses version ordering and clears any tombstone for the id.
// It reports whether the restore happened.
func (s *Store) CompareAndRestore(kind entity.Kind, id uuid.UUID, expected, snapshot entity.Record) bool {
	change, restored := s.compareAndRestore(kind, id, expected, snapshot)
	if restored {
		s.notify([]Change{change})
	}

	return restored
}

func (s *Store) compareAndRestore(kind entity.Kind, id uuid.UUID, expected, snapshot entity.Record) (Change, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.table(kind)
	current, exists := t.rows[id]
	switch {
	case expected == nil && exists:
		return Change{}, false
	case expected != nil && (!exists || !reflect.DeepEqual(current, expected)):
		return Change{}, false
	}

	if exists {
		t.delete(current)
	}
	if snapshot != nil {
		t.put(snapshot)
	}
	delete(t.tombstones, id)

	return Change{Kind: kind, ID: id, Before: current, After: snapshot}, true
}

// Swap writes next (nil removes the row) unconditionally and returns the previous row.
// Versions and unique indices are ignored; a removal leaves a tombstone at the previous version.
// It is meant for optimistic local writes that the remote store confirms later.
func (s *Store) Swap(kind entity.Kind, id uuid.UUID, next entity.Record) entity.Record {
	s.mu.Lock()
	t := s.table(kind)
	previous := t.rows[id]
	if previous != nil {
		t.delete(previous)
	}
	if next != nil {
		t.put(next)
		delete(t.tombstones, id)
	} else if previous != nil {
		s.bury(t, previous)
	}
	s.mu.Unlock()

	if previous != nil || next != nil {
		s.notify([]Change{{Kind: kind, ID: id, Before: previous, After: next}})
	}

	return previous
}

// ReplaceRelation swaps the whole relation for a freshly fetched snapshot,
// rebuilding every index bucket in the same critical section.
// Tombstones of ids the snapshot does not contain survive; unconfirmed marks survive for ids it does.
func (s *Store) ReplaceRelation(kind entity.Kind, records []entity.Record) []Change {
	s.mu.Lock()
	old := s.tables[kind]
	fresh := newTable()
	for _, record := range records {
		if record == nil || record.Kind() != kind {
			continue
		}
		if current, ok := fresh.rows[record.RecordID()]; ok {
			fresh.delete(current)
		}
		fresh.put(record)
	}
	if old != nil {
		for id, tomb := range old.tombstones {
			if _, ok := fresh.rows[id]; !ok {
				fresh.tombstones[id] = tomb
			}
		}
		for id := range old.unconfirmed {
			if _, ok := fresh.rows[id]; ok {
				fresh.unconfirmed[id] = struct{}{}
			}
		}
		fresh.sweptAt = old.sweptAt
	}
	s.sweep(fresh)
	s.tables[kind] = fresh
	s.mu.Unlock()

	var changes []Change
	if old != nil {
		for id, before := range old.rows {
			after, ok := fresh.rows[id]
			if !ok {
				changes = append(changes, Change{Kind: kind, ID: id, Before: before})
			} else if !reflect.DeepEqual(before, after) {
				changes = append(changes, Change{Kind: kind, ID: id, Before: before, After: after})
			}
		}
	}
	for id, after := range fresh.rows {
		if old == nil || old.rows[id] == nil {
			changes = append(changes, Change{Kind: kind, ID: id, After: after})
		}
	}
	s.notify(changes)

	return changes
}

// Get returns the row with the given id.
func (s *Store) Get(kind entity.Kind, id uuid.UUID) (entity.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[kind]
	if !ok {
		return nil, false
	}
	record, ok := t.rows[id]

	return record, ok
}

// List returns every row of the relation in unspecified order.
func (s *Store) List(kind entity.Kind) []entity.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[kind]
	if !ok {
		return nil
	}
	records := make([]entity.Record, 0, len(t.rows))
	for _, record := range t.rows {
		records = append(records, record)
	}

	return records
}

// ListByIndex returns the rows whose index key holds value, in unspecified order.
func (s *Store) ListByIndex(kind entity.Kind, key entity.IndexKey, value uuid.UUID) []entity.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[kind]
	if !ok {
		return nil
	}
	bucket := t.index[key][value]
	records := make([]entity.Record, 0, len(bucket))
	for id := range bucket {
		records = append(records, t.rows[id])
	}

	return records
}

// Count returns the number of rows of the relation.
func (s *Store) Count(kind entity.Kind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if t, ok := s.tables[kind]; ok {
		return len(t.rows)
	}

	return 0
}

func (s *Store) table(kind entity.Kind) *table {
	t, ok := s.tables[kind]
	if !ok {
		t = newTable()
		s.tables[kind] = t
	}

	return t
}

// bury records the removal of record and drops tombstones older than the retention.
func (s *Store) bury(t *table, record entity.Record) {
	id := record.RecordID()
	t.tombstones[id] = tombstone{version: record.Version(), buriedAt: s.now()}
	delete(t.unconfirmed, id)
	s.sweep(t)
}

// sweep runs at most twice per retention period.
func (s *Store) sweep(t *table) {
	now := s.now()
	if t.sweptAt.IsZero() {
		t.sweptAt = now
	}
	if now.Sub(t.sweptAt) < s.retention/2 {
		return
	}
	for id, tomb := range t.tombstones {
		if now.Sub(tomb.buriedAt) >= s.retention {
			delete(t.tombstones, id)
		}
	}
	t.sweptAt = now
}

func (s *Store) notify(changes []Change) {
	if len(changes) == 0 {
		return
	}

	s.listenersMu.RLock()
	listeners := s.listeners
	s.listenersMu.RUnlock()

	for _, listener := range listeners {
		listener(changes)
	}
}

func (t *table) put(record entity.Record) {
	id := record.RecordID()
	t.rows[id] = record
	for _, entry := range record.Indexes() {
		buckets, ok := t.index[entry.Key]
		if !ok {
			buckets = make(map[uuid.UUID]map[uuid.UUID]struct{})
			t.index[entry.Key] = buckets
		}
		bucket, ok := buckets[entry.Value]
		if !ok {
			bucket = make(map[uuid.UUID]struct{})
			buckets[entry.Value] = bucket
		}
		bucket[id] = struct{}{}
	}
}

func (t *table) delete(record entity.Record) {
	id := record.RecordID()
	delete(t.rows, id)
	for _, entry := range record.Indexes() {
		bucket := t.index[entry.Key][entry.Value]
		delete(bucket, id)
		if len(bucket) == 0 {
			delete(t.index[entry.Key], entry.Value)
		}
	}
}

// conflicts returns the other rows sharing a value of key with record.
func (t *table) conflicts(record entity.Record, key entity.IndexKey) []entity.Record {
	var holders []entity.Record
	for _, entry := range record.Indexes() {
		if entry.Key != key {
			continue
		}
		for id := range t.index[key][entry.Value] {
			if id != record.RecordID() {
				holders = append(holders, t.rows[id])
			}
		}
	}

	return holders
}

// olderThan reports whether a carries a version strictly before b's. Missing versions never lose.
func olderThan(a, b entity.Record) bool {
	av, bv := a.Version(), b.Version()
	if av.IsZero() || bv.IsZero() {
		return false
	}

	return av.Before(bv)
}
