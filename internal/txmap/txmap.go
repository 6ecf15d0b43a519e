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

// Package txmap implements TransactionalMapInsert (spec §4.1): extend a
// mapping with N new (key, value) pairs such that either all pairs are
// present afterwards or none are.
//
// The Rust original expresses "release without commit" via Drop. Go has no
// destructors, so the idiom here is defer: callers must `defer tx.Rollback()`
// immediately after a successful Start and call tx.Commit() on every
// success path; Rollback after Commit is a no-op, matching the "disarmed
// handle" semantics of the Rust guard.
package txmap

// Tx is a handle returned by Start. It is armed until Commit is called.
type Tx[K comparable, V any] struct {
	target    map[K]V
	inserted  []K
	committed bool
}

// KeyExistsError reports that Start found the given key already present.
type KeyExistsError[K comparable] struct {
	Key K
}

func (e *KeyExistsError[K]) Error() string {
	return "key already exists"
}

// Start inserts all pairs into target if and only if none of their keys
// are already present. On collision it returns the offending key and
// leaves target untouched. On success it returns an armed handle: the
// inserts are live immediately (so concurrent readers under the same lock
// see them), but the caller must Commit to keep them or Rollback to
// restore the prior state.
func Start[K comparable, V any](target map[K]V, pairs map[K]V) (*Tx[K, V], *KeyExistsError[K]) {
	for k := range pairs {
		if _, exists := target[k]; exists {
			return nil, &KeyExistsError[K]{Key: k}
		}
	}
	inserted := make([]K, 0, len(pairs))
	for k, v := range pairs {
		target[k] = v
		inserted = append(inserted, k)
	}
	return &Tx[K, V]{target: target, inserted: inserted}, nil
}

// Commit disarms the handle; the inserts stay.
func (t *Tx[K, V]) Commit() {
	if t == nil {
		return
	}
	t.committed = true
}

// Rollback removes exactly the keys this handle inserted, restoring the
// prior state. It is a no-op if the handle was already committed or is nil,
// so `defer tx.Rollback()` is always safe to write right after Start.
func (t *Tx[K, V]) Rollback() {
	if t == nil || t.committed {
		return
	}
	for _, k := range t.inserted {
		delete(t.target, k)
	}
	t.committed = true // idempotent: a second Rollback call does nothing
}

// Transaction is the narrow interface Group composes over, so a single
// rollback/commit pass can span several differently-typed maps (e.g. the
// global channel table and a service's child table in add_getter).
type Transaction interface {
	Commit()
	Rollback()
}

// Group composes several transactions so they commit or roll back
// together. Call order is preserved for both Commit and Rollback.
type Group struct {
	txs []Transaction
}

// NewGroup builds a Group from zero or more transactions, skipping nil
// interface values. A nil *Tx from a Start that failed is not skipped (it
// is a non-nil Transaction), but its Commit and Rollback are no-ops, so it
// is still safe to pass.
func NewGroup(txs ...Transaction) *Group {
	g := &Group{}
	for _, t := range txs {
		if t == nil {
			continue
		}
		g.txs = append(g.txs, t)
	}
	return g
}

func (g *Group) Commit() {
	for _, t := range g.txs {
		t.Commit()
	}
}

func (g *Group) Rollback() {
	for _, t := range g.txs {
		t.Rollback()
	}
}
