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

// Package selector implements the SelectorEngine (spec §4.4): conjunctive
// selectors over entity attributes, with a query (list of selectors)
// matching by disjunction.
//
// Selectors are deliberately decoupled from internal/topology's concrete
// record types: they match against small "View" structs built on demand by
// the topology Store, so this package has no dependency on topology and
// can be reused by internal/dispatch and internal/watchreg alike.
package selector

import (
	"github.com/fxbox/devicemux/adapter"
	"github.com/fxbox/devicemux/internal/ids"
)

// ServiceView is the subset of a ServiceRecord a ServiceSelector matches
// against.
type ServiceView struct {
	ID        ids.ServiceId
	AdapterID ids.AdapterId
	Tags      map[ids.Tag]struct{}
}

// ServiceSelector is a conjunction over: optional id, optional parent
// adapter id, required tag subset. Absent fields match everything.
type ServiceSelector struct {
	id      *ids.ServiceId
	adapter *ids.AdapterId
	tags    []ids.Tag
}

func NewServiceSelector() ServiceSelector { return ServiceSelector{} }

func (s ServiceSelector) WithID(id ids.ServiceId) ServiceSelector {
	s.id = &id
	return s
}

func (s ServiceSelector) WithParent(a ids.AdapterId) ServiceSelector {
	s.adapter = &a
	return s
}

func (s ServiceSelector) WithTags(tags ...ids.Tag) ServiceSelector {
	s.tags = append(append([]ids.Tag{}, s.tags...), tags...)
	return s
}

// Matches reports whether v satisfies every present clause of s.
func (s ServiceSelector) Matches(v ServiceView) bool {
	if s.id != nil && *s.id != v.ID {
		return false
	}
	if s.adapter != nil && *s.adapter != v.AdapterID {
		return false
	}
	return hasAllTags(v.Tags, s.tags)
}

// ServiceQuery is a list of selectors, matching any entity that satisfies
// at least one of them (OR of ANDs).
type ServiceQuery []ServiceSelector

func (q ServiceQuery) Matches(v ServiceView) bool {
	if len(q) == 0 {
		return true
	}
	for _, s := range q {
		if s.Matches(v) {
			return true
		}
	}
	return false
}

// ChannelView is the subset of a getter/setter record a ChannelSelector
// matches against. id is generic over GetterId/SetterId.
type ChannelView[ID comparable] struct {
	ID        ID
	ServiceID ids.ServiceId
	AdapterID ids.AdapterId
	Kind      adapter.ChannelKind
	Tags      map[ids.Tag]struct{}
	// Watchable and Push are read by the getter- and setter-specific
	// selector flavors respectively; zero value ("don't care") is only
	// meaningful when the corresponding selector field is nil.
	Watchable bool
	Push      bool
}

// ChannelSelector is the common shape behind GetterSelector and
// SetterSelector: id, parent service, parent adapter, kind, and tags, plus
// one direction-specific attribute set via WithWatchable/WithPush.
type ChannelSelector[ID comparable] struct {
	id        *ID
	service   *ids.ServiceId
	adapter   *ids.AdapterId
	kind      *adapter.ChannelKind
	tags      []ids.Tag
	watchable *bool
	push      *bool
}

func NewChannelSelector[ID comparable]() ChannelSelector[ID] { return ChannelSelector[ID]{} }

func (c ChannelSelector[ID]) WithID(id ID) ChannelSelector[ID] {
	c.id = &id
	return c
}

func (c ChannelSelector[ID]) WithParent(s ids.ServiceId) ChannelSelector[ID] {
	c.service = &s
	return c
}

func (c ChannelSelector[ID]) WithAdapter(a ids.AdapterId) ChannelSelector[ID] {
	c.adapter = &a
	return c
}

func (c ChannelSelector[ID]) WithKind(k adapter.ChannelKind) ChannelSelector[ID] {
	c.kind = &k
	return c
}

func (c ChannelSelector[ID]) WithTags(tags ...ids.Tag) ChannelSelector[ID] {
	c.tags = append(append([]ids.Tag{}, c.tags...), tags...)
	return c
}

// WithWatchable is meaningful only for GetterSelector.
func (c ChannelSelector[ID]) WithWatchable(w bool) ChannelSelector[ID] {
	c.watchable = &w
	return c
}

// WithPush is meaningful only for SetterSelector.
func (c ChannelSelector[ID]) WithPush(p bool) ChannelSelector[ID] {
	c.push = &p
	return c
}

func (c ChannelSelector[ID]) Matches(v ChannelView[ID]) bool {
	if c.id != nil && *c.id != v.ID {
		return false
	}
	if c.service != nil && *c.service != v.ServiceID {
		return false
	}
	if c.adapter != nil && *c.adapter != v.AdapterID {
		return false
	}
	if c.kind != nil && *c.kind != v.Kind {
		return false
	}
	if c.watchable != nil && *c.watchable != v.Watchable {
		return false
	}
	if c.push != nil && *c.push != v.Push {
		return false
	}
	return hasAllTags(v.Tags, c.tags)
}

// GetterSelector and SetterSelector are the two channel-direction flavors
// named in spec §4.4.
type (
	GetterSelector = ChannelSelector[ids.GetterId]
	SetterSelector = ChannelSelector[ids.SetterId]
)

func NewGetterSelector() GetterSelector { return NewChannelSelector[ids.GetterId]() }
func NewSetterSelector() SetterSelector { return NewChannelSelector[ids.SetterId]() }

// ChannelQuery is a list of channel selectors, ORed together.
type ChannelQuery[ID comparable] []ChannelSelector[ID]

func (q ChannelQuery[ID]) Matches(v ChannelView[ID]) bool {
	if len(q) == 0 {
		return true
	}
	for _, s := range q {
		if s.Matches(v) {
			return true
		}
	}
	return false
}

type (
	GetterQuery = ChannelQuery[ids.GetterId]
	SetterQuery = ChannelQuery[ids.SetterId]
)

func hasAllTags(have map[ids.Tag]struct{}, want []ids.Tag) bool {
	for _, t := range want {
		if _, ok := have[t]; !ok {
			return false
		}
	}
	return true
}
