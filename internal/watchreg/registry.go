/*

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package watchreg implements the WatchRegistry (spec §4.2): minting
// monotonic WatchKeys and owning the live WatcherRecords they name.
//
// Like internal/topology, Registry is not self-locking: internal/dispatch
// holds the single core mutex across every call into it, per spec §5.
package watchreg

import (
	"sync/atomic"

	"github.com/fxbox/devicemux/adapter"
	"github.com/fxbox/devicemux/internal/ids"
)

// EventKind discriminates the events delivered to a watch sink.
type EventKind int

const (
	EventEnterRange EventKind = iota
	EventExitRange
	EventInitializationError
)

// Event is what the delivery thread hands to a client sink (spec §4.5).
type Event struct {
	Kind   EventKind
	From   ids.GetterId
	Value  adapter.Value
	Err    error // populated for EventInitializationError
}

// Sink is the client-supplied callback a WatcherRecord delivers events to.
// It runs on the dedicated delivery thread (spec §5), never under the core
// mutex.
type Sink func(Event)

// Record is a live subscription (spec §3 WatcherRecord). The registry
// holds the *Record; every GetterRecord that currently covers it
// (internal/topology's back-reference) and the WatchGuard returned to the
// client refer to it by its WatchKey instead of by pointer, with isDropped
// as the atomic cancellation flag spec §9 calls for instead of a true
// reference cycle.
type Record struct {
	Key     ids.WatchKey
	Clauses []Clause
	Sink    Sink

	// isDropped is read without the core mutex from adapter callback
	// goroutines (spec §5: "accessed without locks"), so it is a plain
	// atomic int32 rather than a field guarded by Coverage/Guards' mutex
	// discipline. Grounded on pkg/syncutil/syncbool.go's SyncBool.
	isDropped int32

	// Coverage and Guards are mutated only while the caller holds the
	// core mutex (internal/dispatch), matching spec §5's "mutable fields
	// ... are protected by the core mutex since all accesses go through
	// Dispatcher methods". Guards is keyed by getter so that removing a
	// single getter (spec §4.3 remove_getter) can drop exactly the guards
	// tied to it while leaving guards for other covered getters intact.
	Coverage map[ids.GetterId]struct{}
	Guards   map[ids.GetterId][]adapter.GuardHandle

	// Filters records which clause's RangeFilter applies to each covered
	// getter, so the delivery thread can re-check a value client-side
	// without having to rematch the getter against every clause. When a
	// getter satisfies more than one clause, the first match wins (spec
	// §4.5 step 3 treats clauses as an ordered list of refinements).
	Filters map[ids.GetterId]RangeFilter
}

// MarkDropped flips the cancellation flag (WatcherRecord state transition
// Armed -> Cancelling, spec §4.5 state machine). Safe to call without the
// core mutex.
func (r *Record) MarkDropped() { atomic.StoreInt32(&r.isDropped, 1) }

// Dropped reports the cancellation flag. Safe to call without the core
// mutex; adapter callback goroutines use this to skip delivering events
// for a watcher mid-teardown.
func (r *Record) Dropped() bool { return atomic.LoadInt32(&r.isDropped) == 1 }

// Registry mints keys and owns WatcherRecords.
type Registry struct {
	counter ids.KeyCounter
	records map[ids.WatchKey]*Record
}

func New() *Registry {
	return &Registry{records: make(map[ids.WatchKey]*Record)}
}

// Create allocates the next WatchKey and stores a new, empty-coverage
// Record for it (spec §4.2 create).
func (r *Registry) Create(clauses []Clause, sink Sink) *Record {
	key := r.counter.Next()
	rec := &Record{
		Key:      key,
		Clauses:  clauses,
		Sink:     sink,
		Coverage: make(map[ids.GetterId]struct{}),
		Guards:   make(map[ids.GetterId][]adapter.GuardHandle),
		Filters:  make(map[ids.GetterId]RangeFilter),
	}
	r.records[key] = rec
	return rec
}

// Get looks up a live record by key.
func (r *Registry) Get(key ids.WatchKey) (*Record, bool) {
	rec, ok := r.records[key]
	return rec, ok
}

// Remove deletes a record from the registry. It does not touch the
// record's coverage set or guards: internal/dispatch's WatchGuard release
// algorithm (spec §4.5) is responsible for detaching those in the right
// order relative to this call.
func (r *Registry) Remove(key ids.WatchKey) {
	delete(r.records, key)
}

// All returns the live record set for iteration (e.g. scanning for clauses
// matching a newly added getter). Callers under the core mutex must not
// retain the map past the call.
func (r *Registry) All() map[ids.WatchKey]*Record {
	return r.records
}
