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

// Package ids defines the identifier types shared across the taxonomy:
// adapters, services, channels, tags and watch keys.
package ids

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// AdapterId identifies a registered adapter plugin.
type AdapterId string

// ServiceId identifies a logical device owned by exactly one adapter.
type ServiceId string

// GetterId identifies a readable/watchable channel.
type GetterId string

// SetterId identifies a writable channel.
type SetterId string

// Tag is an interned string attached to services and channels.
type Tag string

// WatchKey is the monotonic, never-reused identifier of a live watch
// subscription (I1: unique at any instant).
type WatchKey uint64

// NewAdapterId returns a fresh, process-unique adapter id. Adapters are
// expected to persist their own ids across restarts (spec §6); this
// constructor only serves the bundled fake adapter and CLI demos.
func NewAdapterId() AdapterId {
	return AdapterId(uuid.NewString())
}

// NewServiceId returns a fresh, process-unique service id.
func NewServiceId() ServiceId {
	return ServiceId(uuid.NewString())
}

// NewGetterId returns a fresh, process-unique getter id.
func NewGetterId() GetterId {
	return GetterId(uuid.NewString())
}

// NewSetterId returns a fresh, process-unique setter id.
func NewSetterId() SetterId {
	return SetterId(uuid.NewString())
}

// KeyCounter mints monotonically increasing WatchKeys. Unlike the other
// identifiers above, WatchKey must never be reused (I1) within a single
// registry's lifetime, so a random UUID would satisfy uniqueness but not the
// monotonicity watchers rely on; a plain atomic counter gives both.
type KeyCounter struct {
	next uint64
}

// Next returns the next WatchKey, starting at 1 so the zero value can mean
// "no key".
func (c *KeyCounter) Next() WatchKey {
	return WatchKey(atomic.AddUint64(&c.next, 1))
}

func (a AdapterId) String() string { return string(a) }
func (s ServiceId) String() string { return string(s) }
func (g GetterId) String() string  { return string(g) }
func (s SetterId) String() string  { return string(s) }
func (t Tag) String() string       { return string(t) }
func (k WatchKey) String() string  { return fmt.Sprintf("watch-%d", uint64(k)) }
