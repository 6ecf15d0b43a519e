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

// Package topology holds the four indexed tables of spec §4.3 (adapters,
// services, getters, setters) and the mutators that keep their
// cross-references coherent under TransactionalMapInsert.
//
// Store is deliberately not self-locking: spec §5 calls for a single
// long-lived mutex over the entire core, which internal/dispatch owns and
// holds for the duration of every Store call.
package topology

import (
	"time"

	"github.com/fxbox/devicemux/adapter"
	"github.com/fxbox/devicemux/internal/ids"
)

// AdapterRecord is the registry's view of a registered adapter plugin.
type AdapterRecord struct {
	ID       ids.AdapterId
	Name     string
	Vendor   string
	Version  [4]uint32
	Services map[ids.ServiceId]struct{}
}

func newAdapterRecord(id ids.AdapterId, name, vendor string, version [4]uint32) *AdapterRecord {
	return &AdapterRecord{
		ID:       id,
		Name:     name,
		Vendor:   vendor,
		Version:  version,
		Services: make(map[ids.ServiceId]struct{}),
	}
}

// Clone returns a snapshot copy safe to hand to a caller outside the core
// mutex (spec §5: selector results are "the union of per-adapter
// responses", never live references).
func (a *AdapterRecord) Clone() *AdapterRecord {
	cp := *a
	cp.Services = make(map[ids.ServiceId]struct{}, len(a.Services))
	for k := range a.Services {
		cp.Services[k] = struct{}{}
	}
	return &cp
}

// ServiceRecord is a logical device owned by exactly one adapter.
type ServiceRecord struct {
	ID        ids.ServiceId
	AdapterID ids.AdapterId
	Tags      map[ids.Tag]struct{}
	Getters   map[ids.GetterId]struct{}
	Setters   map[ids.SetterId]struct{}
}

// NewService constructs a service with the given tags and no channels.
// add_service (spec §4.3) rejects any service submitted with pre-populated
// getters/setters, so this constructor does not accept them.
func NewService(id ids.ServiceId, adapterID ids.AdapterId, tags ...ids.Tag) *ServiceRecord {
	s := &ServiceRecord{
		ID:        id,
		AdapterID: adapterID,
		Tags:      make(map[ids.Tag]struct{}, len(tags)),
		Getters:   make(map[ids.GetterId]struct{}),
		Setters:   make(map[ids.SetterId]struct{}),
	}
	for _, t := range tags {
		s.Tags[t] = struct{}{}
	}
	return s
}

func (s *ServiceRecord) Clone() *ServiceRecord {
	cp := *s
	cp.Tags = cloneSet(s.Tags)
	cp.Getters = make(map[ids.GetterId]struct{}, len(s.Getters))
	for k := range s.Getters {
		cp.Getters[k] = struct{}{}
	}
	cp.Setters = make(map[ids.SetterId]struct{}, len(s.Setters))
	for k := range s.Setters {
		cp.Setters[k] = struct{}{}
	}
	return &cp
}

// GetterRecord is a readable, optionally watchable channel.
type GetterRecord struct {
	ID          ids.GetterId
	ServiceID   ids.ServiceId
	AdapterID   ids.AdapterId
	Kind        adapter.ChannelKind
	Tags        map[ids.Tag]struct{}
	LastSeen    time.Time
	PollPeriod  *time.Duration
	TriggerKind string // empty means "no trigger kind declared"
	Watchable   bool

	// Watchers is the back half of the symmetric getter<->watcher
	// relation (I3): every WatchKey here must also list this getter in
	// its own coverage set.
	Watchers map[ids.WatchKey]struct{}
}

func NewGetter(id ids.GetterId, serviceID ids.ServiceId, adapterID ids.AdapterId, kind adapter.ChannelKind, watchable bool, tags ...ids.Tag) *GetterRecord {
	g := &GetterRecord{
		ID:        id,
		ServiceID: serviceID,
		AdapterID: adapterID,
		Kind:      kind,
		Watchable: watchable,
		Tags:      make(map[ids.Tag]struct{}, len(tags)),
		LastSeen:  time.Now(),
		Watchers:  make(map[ids.WatchKey]struct{}),
	}
	for _, t := range tags {
		g.Tags[t] = struct{}{}
	}
	return g
}

func (g *GetterRecord) Clone() *GetterRecord {
	cp := *g
	cp.Tags = cloneSet(g.Tags)
	cp.Watchers = make(map[ids.WatchKey]struct{}, len(g.Watchers))
	for k := range g.Watchers {
		cp.Watchers[k] = struct{}{}
	}
	return &cp
}

// SetterRecord is a writable channel.
type SetterRecord struct {
	ID        ids.SetterId
	ServiceID ids.ServiceId
	AdapterID ids.AdapterId
	Kind      adapter.ChannelKind
	Tags      map[ids.Tag]struct{}
	LastSeen  time.Time
	Push      bool
}

func NewSetter(id ids.SetterId, serviceID ids.ServiceId, adapterID ids.AdapterId, kind adapter.ChannelKind, push bool, tags ...ids.Tag) *SetterRecord {
	s := &SetterRecord{
		ID:        id,
		ServiceID: serviceID,
		AdapterID: adapterID,
		Kind:      kind,
		Push:      push,
		Tags:      make(map[ids.Tag]struct{}, len(tags)),
		LastSeen:  time.Now(),
	}
	for _, t := range tags {
		s.Tags[t] = struct{}{}
	}
	return s
}

func (s *SetterRecord) Clone() *SetterRecord {
	cp := *s
	cp.Tags = cloneSet(s.Tags)
	return &cp
}

func cloneSet(s map[ids.Tag]struct{}) map[ids.Tag]struct{} {
	cp := make(map[ids.Tag]struct{}, len(s))
	for k := range s {
		cp[k] = struct{}{}
	}
	return cp
}
