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

package dispatch

import (
	"github.com/fxbox/devicemux/internal/ids"
	"github.com/fxbox/devicemux/internal/selector"
	"github.com/fxbox/devicemux/internal/topology"
)

// GetServices returns every service matching q (spec §4.5 get_services).
func (d *Dispatcher) GetServices(q selector.ServiceQuery) []*topology.ServiceRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.store.CollectServices(q)
}

// GetGetterChannels returns every getter matching q (spec §4.5
// get_getter_channels).
func (d *Dispatcher) GetGetterChannels(q selector.GetterQuery) []*topology.GetterRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.store.CollectGetters(q)
}

// GetSetterChannels returns every setter matching q (spec §4.5
// get_setter_channels).
func (d *Dispatcher) GetSetterChannels(q selector.SetterQuery) []*topology.SetterRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.store.CollectSetters(q)
}

// AddGetterTags tags every getter matched by q (spec §4.5 add_tags).
func (d *Dispatcher) AddGetterTags(q selector.GetterQuery, tags []ids.Tag) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.store.AddGetterTags(q, tags)
}

// RemoveGetterTags untags every getter matched by q (spec §4.5 remove_tags).
func (d *Dispatcher) RemoveGetterTags(q selector.GetterQuery, tags []ids.Tag) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.store.RemoveGetterTags(q, tags)
}

// AddSetterTags tags every setter matched by q.
func (d *Dispatcher) AddSetterTags(q selector.SetterQuery, tags []ids.Tag) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.store.AddSetterTags(q, tags)
}

// RemoveSetterTags untags every setter matched by q.
func (d *Dispatcher) RemoveSetterTags(q selector.SetterQuery, tags []ids.Tag) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.store.RemoveSetterTags(q, tags)
}

// AddServiceTags tags every service matched by q.
func (d *Dispatcher) AddServiceTags(q selector.ServiceQuery, tags []ids.Tag) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.store.AddServiceTags(q, tags)
}

// RemoveServiceTags untags every service matched by q.
func (d *Dispatcher) RemoveServiceTags(q selector.ServiceQuery, tags []ids.Tag) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.store.RemoveServiceTags(q, tags)
}

// Stats returns a point-in-time snapshot of the core tables, for callers
// that want it outside the otel gauges (e.g. a status CLI command).
func (d *Dispatcher) Stats() topology.Counts {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.store.Stats()
}

// DescribeAdapters returns a deep-copied snapshot of every registered
// adapter's identity (SPEC_FULL.md §5 item 2, grounded on backend.rs's
// AdapterManagerState keeping name/vendor/version per adapter purely for
// diagnostics).
func (d *Dispatcher) DescribeAdapters() []*topology.AdapterRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*topology.AdapterRecord, 0, len(d.store.Adapters()))
	for _, a := range d.store.Adapters() {
		out = append(out, a.Clone())
	}
	return out
}
