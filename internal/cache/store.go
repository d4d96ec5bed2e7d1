// Package cache holds the client's authoritative local view of copy jobs.
//
// The store is written from two sides: poller refreshes carrying server
// truth, and optimistic mutation writes that run ahead of it. Every write
// bumps a store-wide sequence number; a poller records the sequence before
// issuing its request and reconciles its result against it, so a response
// that was in flight while an optimistic write landed can never clobber
// that write. Post-mutation refreshes bypass the check entirely and are
// applied as authoritative.
package cache

import (
	"slices"
	"sync"

	"telecopy/internal/model"
)

type EventType int

const (
	EventUpsert EventType = iota
	EventInvalidate
)

// Event describes a store change delivered to subscribers. Owner is the
// collection partition the change belongs to; IDs lists the records
// written (empty for invalidations).
type Event struct {
	Type  EventType
	Owner string
	IDs   []string
}

type entry struct {
	job model.Job
	seq uint64
}

type Store struct {
	mu          sync.RWMutex
	seq         uint64
	entries     map[string]entry
	collections map[string][]string
	subs        map[int]chan Event
	nextSub     int
}

func NewStore() *Store {
	return &Store{
		entries:     make(map[string]entry),
		collections: make(map[string][]string),
		subs:        make(map[int]chan Event),
	}
}

// Seq returns the current write sequence. Pollers read it immediately
// before issuing a request and pass it to Reconcile.
func (s *Store) Seq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}

func (s *Store) Job(id string) (model.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	return e.job, ok
}

// Jobs returns the owner's collection in server order. Records the server
// has stopped listing are not included.
func (s *Store) Jobs(owner string) []model.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.collections[owner]
	jobs := make([]model.Job, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.entries[id]; ok {
			jobs = append(jobs, e.job)
		}
	}

	return jobs
}

// HasActive reports whether any cached job of the owner is pending or
// running; the list poller derives its cadence from it.
func (s *Store) HasActive(owner string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.collections[owner] {
		if e, ok := s.entries[id]; ok && e.job.Status.Active() {
			return true
		}
	}

	return false
}

// Apply writes records unconditionally, replacing any cached version.
// Optimistic writes, rollbacks and authoritative refreshes go through
// here; each record gets a fresh sequence stamp.
func (s *Store) Apply(jobs ...model.Job) {
	if len(jobs) == 0 {
		return
	}

	s.mu.Lock()
	byOwner := make(map[string][]string)
	for _, job := range jobs {
		s.seq++
		s.entries[job.ID] = entry{job: job, seq: s.seq}
		byOwner[job.Owner] = append(byOwner[job.Owner], job.ID)
	}
	s.mu.Unlock()

	for owner, ids := range byOwner {
		s.publish(Event{Type: EventUpsert, Owner: owner, IDs: ids})
	}
}

// ApplyList replaces the owner's collection with an authoritative server
// listing, applying every record unconditionally.
func (s *Store) ApplyList(owner string, jobs []model.Job) {
	s.mu.Lock()
	ids := make([]string, 0, len(jobs))
	for _, job := range jobs {
		s.seq++
		s.entries[job.ID] = entry{job: job, seq: s.seq}
		ids = append(ids, job.ID)
	}
	s.collections[owner] = ids
	s.mu.Unlock()

	s.publish(Event{Type: EventUpsert, Owner: owner, IDs: ids})
}

// Reconcile merges a poll result observed at sequence `at`. Records that
// received a local write after the poll was issued keep their cached
// version; collection membership and order still follow the server.
func (s *Store) Reconcile(owner string, jobs []model.Job, at uint64) {
	s.mu.Lock()
	ids := make([]string, 0, len(jobs))
	written := make([]string, 0, len(jobs))
	for _, job := range jobs {
		ids = append(ids, job.ID)
		if e, ok := s.entries[job.ID]; ok && e.seq > at {
			continue
		}
		s.seq++
		s.entries[job.ID] = entry{job: job, seq: s.seq}
		written = append(written, job.ID)
	}
	s.collections[owner] = ids
	s.mu.Unlock()

	s.publish(Event{Type: EventUpsert, Owner: owner, IDs: written})
}

// ReconcileJob is the single-record variant used by the detail poller.
func (s *Store) ReconcileJob(job model.Job, at uint64) {
	s.mu.Lock()
	if e, ok := s.entries[job.ID]; ok && e.seq > at {
		s.mu.Unlock()
		return
	}
	s.seq++
	s.entries[job.ID] = entry{job: job, seq: s.seq}
	if !slices.Contains(s.collections[job.Owner], job.ID) {
		s.collections[job.Owner] = append(s.collections[job.Owner], job.ID)
	}
	s.mu.Unlock()

	s.publish(Event{Type: EventUpsert, Owner: job.Owner, IDs: []string{job.ID}})
}

// Invalidate marks the owner's collection stale after a settled mutation.
// The list poller reacts with an immediate authoritative refresh.
func (s *Store) Invalidate(owner string) {
	s.publish(Event{Type: EventInvalidate, Owner: owner})
}

// Subscribe returns a channel of store events and a cancel function.
// Delivery is best-effort: a subscriber that stops draining loses events,
// it never blocks writers.
func (s *Store) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan Event, 64)
	s.subs[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}

	return ch, cancel
}

func (s *Store) publish(ev Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
