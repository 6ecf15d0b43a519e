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
	"context"

	"github.com/pkg/errors"

	"github.com/fxbox/devicemux/adapter"
	"github.com/fxbox/devicemux/internal/ids"
	"github.com/fxbox/devicemux/internal/logging"
	"github.com/fxbox/devicemux/internal/muxerr"
	"github.com/fxbox/devicemux/internal/selector"
	"github.com/fxbox/devicemux/internal/topology"
	"github.com/fxbox/devicemux/internal/watchreg"
)

// RegisterWatch implements spec §4.5 register_channel_watch: mint a
// WatcherRecord, link it to every getter currently satisfying one of its
// clauses, and install the downstream adapter subscriptions those clauses'
// range filters compile to. Per-getter initialization failures are reported
// asynchronously as EventInitializationError rather than failing the whole
// call, since a watch spans many getters that may belong to different,
// independently fallible adapters.
func (d *Dispatcher) RegisterWatch(clauses []watchreg.Clause, sink watchreg.Sink) *WatchGuard {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec := d.registry.Create(clauses, sink)
	for _, g := range d.store.Getters() {
		d.linkIfMatching(g, rec)
	}
	d.store.RefreshStats()
	return &WatchGuard{d: d, key: rec.Key}
}

// linkNewGetterToWatchers is add_getter's watcher-linking step (spec §4.3):
// called with the core mutex already held, it scans every live watcher for
// a clause matching the getter just admitted and links it.
func (d *Dispatcher) linkNewGetterToWatchers(c *topology.GetterRecord) {
	for _, rec := range d.registry.All() {
		d.linkIfMatching(c, rec)
	}
}

// linkIfMatching links getter g to rec if one of rec's clauses matches it,
// stopping at the first match: a getter covered by a record only ever gets
// one set of downstream subscriptions, even if it would satisfy more than
// one of the record's clauses.
func (d *Dispatcher) linkIfMatching(g *topology.GetterRecord, rec *watchreg.Record) {
	if _, already := rec.Coverage[g.ID]; already {
		return
	}
	for _, clause := range rec.Clauses {
		if clauseMatchesGetter(clause, g) {
			d.linkGetterAndRecord(g, rec, clause.Filter)
			return
		}
	}
}

func clauseMatchesGetter(clause watchreg.Clause, g *topology.GetterRecord) bool {
	view := selector.ChannelView[ids.GetterId]{
		ID: g.ID, ServiceID: g.ServiceID, AdapterID: g.AdapterID,
		Kind: g.Kind, Tags: g.Tags, Watchable: g.Watchable,
	}
	return clause.Selectors.Matches(view)
}

// linkGetterAndRecord installs the symmetric getter<->watcher back-reference
// (I3) and, unless filter is topology-only, asks the owning adapter for one
// downstream subscription per threshold the filter compiles to (spec §4.5
// step 4). Must be called with the core mutex held.
func (d *Dispatcher) linkGetterAndRecord(g *topology.GetterRecord, rec *watchreg.Record, filter watchreg.RangeFilter) {
	d.store.LinkWatcher(g.ID, rec.Key)
	rec.Coverage[g.ID] = struct{}{}
	rec.Filters[g.ID] = filter

	thresholds, ok := filter.Thresholds()
	if !ok {
		return
	}

	a, err := d.adapterFor(g.AdapterID)
	if err != nil {
		d.delivery.push(deliveryMsg{rec: rec, getter: g.ID, initErr: err})
		return
	}

	for _, th := range thresholds {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.AdapterCallTimeout)
		results := a.RegisterWatch(ctx, []adapter.WatchRequest{{Getter: g.ID, Threshold: th}}, d.sinkFor(rec, g.ID))
		cancel()

		res, ok := results[g.ID]
		if !ok || res.Err != nil {
			var err error
			if !ok {
				err = muxerr.Internal("adapter returned no result for getter %s", g.ID)
			} else {
				err = muxerr.AdapterError(string(g.AdapterID), res.Err)
				d.log.V(logging.DebugLevel).Info("adapter rejected watch subscription",
					logging.AdapterID, g.AdapterID, logging.GetterID, g.ID,
					logging.Details, errors.Cause(err))
			}
			d.delivery.push(deliveryMsg{rec: rec, getter: g.ID, initErr: err})
			continue
		}
		rec.Guards[g.ID] = append(rec.Guards[g.ID], res.Guard)
	}
}

// sinkFor builds the adapter.Sink a downstream subscription invokes on
// value changes, forwarding every event to the shared delivery thread
// tagged with which watcher record and getter it belongs to. Events for a
// record already marked dropped are discarded without being queued.
func (d *Dispatcher) sinkFor(rec *watchreg.Record, getterID ids.GetterId) adapter.Sink {
	return func(ev adapter.Event) {
		if rec.Dropped() {
			return
		}
		d.delivery.push(deliveryMsg{rec: rec, getter: getterID, ev: ev})
	}
}

// WatchGuard is the client-held handle returned by RegisterWatch. Release
// follows spec §4.5's teardown order: mark the record dropped so any event
// already in flight is discarded, remove it from the registry so it can no
// longer be linked to new getters, detach the symmetric back-references,
// then release every downstream adapter guard.
type WatchGuard struct {
	d   *Dispatcher
	key ids.WatchKey
}

// Release is idempotent: releasing an already-released guard is a no-op.
func (g *WatchGuard) Release() {
	g.d.mu.Lock()
	defer g.d.mu.Unlock()

	rec, ok := g.d.registry.Get(g.key)
	if !ok {
		return
	}
	rec.MarkDropped()
	g.d.registry.Remove(g.key)

	for getterID := range rec.Coverage {
		g.d.store.UnlinkWatcher(getterID, g.key)
	}
	for getterID, guards := range rec.Guards {
		for _, gh := range guards {
			gh.Release()
		}
		delete(rec.Guards, getterID)
	}
	g.d.store.RefreshStats()
}
