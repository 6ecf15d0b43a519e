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

package topology

import (
	"github.com/fxbox/devicemux/internal/ids"
	"github.com/fxbox/devicemux/internal/selector"
)

// The Collect* methods implement SelectorEngine.collect (spec §4.4) for
// each of the three tables: O(N*M) scan of every selector against every
// entity, acceptable at the "tens of services, hundreds of channels"
// cardinality spec.md notes. They always return owned snapshots, never
// live map references (spec.md §5 supplement: get_services and friends
// return owned copies in the original Rust source).

func (s *Store) CollectServices(q selector.ServiceQuery) []*ServiceRecord {
	var out []*ServiceRecord
	for _, svc := range s.services {
		if q.Matches(serviceView(svc)) {
			out = append(out, svc.Clone())
		}
	}
	return out
}

func (s *Store) CollectGetters(q selector.GetterQuery) []*GetterRecord {
	var out []*GetterRecord
	for _, g := range s.getters {
		if q.Matches(getterView(g)) {
			out = append(out, g.Clone())
		}
	}
	return out
}

func (s *Store) CollectSetters(q selector.SetterQuery) []*SetterRecord {
	var out []*SetterRecord
	for _, c := range s.setters {
		if q.Matches(setterView(c)) {
			out = append(out, c.Clone())
		}
	}
	return out
}

// MatchingGetterIDs returns the ids (not snapshots) of getters matching q,
// for callers that need to mutate or reference the live records while
// still holding the core mutex.
func (s *Store) MatchingGetterIDs(q selector.GetterQuery) []ids.GetterId {
	var out []ids.GetterId
	for id, g := range s.getters {
		if q.Matches(getterView(g)) {
			out = append(out, id)
		}
	}
	return out
}

func (s *Store) MatchingSetterIDs(q selector.SetterQuery) []ids.SetterId {
	var out []ids.SetterId
	for id, c := range s.setters {
		if q.Matches(setterView(c)) {
			out = append(out, id)
		}
	}
	return out
}

// AddServiceTags, AddGetterTags and AddSetterTags apply tags to every
// service/getter/setter matched by the
// corresponding query, returning the number of entities matched (not the
// number of tag changes: re-adding an existing tag is a no-op but the
// entity still counts, spec P6).
func (s *Store) AddServiceTags(q selector.ServiceQuery, tags []ids.Tag) int {
	n := 0
	for _, svc := range s.services {
		if !q.Matches(serviceView(svc)) {
			continue
		}
		n++
		for _, t := range tags {
			svc.Tags[t] = struct{}{}
		}
	}
	return n
}

func (s *Store) RemoveServiceTags(q selector.ServiceQuery, tags []ids.Tag) int {
	n := 0
	for _, svc := range s.services {
		if !q.Matches(serviceView(svc)) {
			continue
		}
		n++
		for _, t := range tags {
			delete(svc.Tags, t)
		}
	}
	return n
}

func (s *Store) AddGetterTags(q selector.GetterQuery, tags []ids.Tag) int {
	n := 0
	for _, g := range s.getters {
		if !q.Matches(getterView(g)) {
			continue
		}
		n++
		for _, t := range tags {
			g.Tags[t] = struct{}{}
		}
	}
	return n
}

func (s *Store) RemoveGetterTags(q selector.GetterQuery, tags []ids.Tag) int {
	n := 0
	for _, g := range s.getters {
		if !q.Matches(getterView(g)) {
			continue
		}
		n++
		for _, t := range tags {
			delete(g.Tags, t)
		}
	}
	return n
}

func (s *Store) AddSetterTags(q selector.SetterQuery, tags []ids.Tag) int {
	n := 0
	for _, c := range s.setters {
		if !q.Matches(setterView(c)) {
			continue
		}
		n++
		for _, t := range tags {
			c.Tags[t] = struct{}{}
		}
	}
	return n
}

func (s *Store) RemoveSetterTags(q selector.SetterQuery, tags []ids.Tag) int {
	n := 0
	for _, c := range s.setters {
		if !q.Matches(setterView(c)) {
			continue
		}
		n++
		for _, t := range tags {
			delete(c.Tags, t)
		}
	}
	return n
}

func serviceView(s *ServiceRecord) selector.ServiceView {
	return selector.ServiceView{ID: s.ID, AdapterID: s.AdapterID, Tags: s.Tags}
}

func getterView(g *GetterRecord) selector.ChannelView[ids.GetterId] {
	return selector.ChannelView[ids.GetterId]{
		ID: g.ID, ServiceID: g.ServiceID, AdapterID: g.AdapterID,
		Kind: g.Kind, Tags: g.Tags, Watchable: g.Watchable,
	}
}

func setterView(c *SetterRecord) selector.ChannelView[ids.SetterId] {
	return selector.ChannelView[ids.SetterId]{
		ID: c.ID, ServiceID: c.ServiceID, AdapterID: c.AdapterID,
		Kind: c.Kind, Tags: c.Tags, Push: c.Push,
	}
}
