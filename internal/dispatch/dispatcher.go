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

// Package dispatch implements the Dispatcher (spec §4.5): the public
// contract, cross-component orchestration, and the watch delivery thread.
//
// A single long-lived mutex protects the entire core state (spec §5):
// Dispatcher is the only package that locks the core state;
// internal/topology, internal/watchreg and internal/selector are plain data
// structures operated on while that lock is held (topology's stats
// reporter keeps a separate small lock around its cached counts only).
package dispatch

import (
	"sync"

	"github.com/go-logr/logr"

	"github.com/fxbox/devicemux/adapter"
	"github.com/fxbox/devicemux/internal/config"
	"github.com/fxbox/devicemux/internal/ids"
	"github.com/fxbox/devicemux/internal/logging"
	"github.com/fxbox/devicemux/internal/muxerr"
	"github.com/fxbox/devicemux/internal/topology"
	"github.com/fxbox/devicemux/internal/watchreg"
)

// Dispatcher is the core of the device channel multiplexer.
type Dispatcher struct {
	log logr.Logger
	cfg config.Config

	mu       sync.Mutex
	store    *topology.Store
	registry *watchreg.Registry
	// plugins holds the live Adapter implementations, keyed the same way
	// as topology's AdapterRecord table; the two are kept in lockstep by
	// every method in this file.
	plugins map[ids.AdapterId]adapter.Adapter

	delivery *deliveryThread
}

// New constructs an empty Dispatcher. Multiple independent Dispatchers may
// coexist in the same process (spec §9 "no process-wide globals").
func New(log logr.Logger, cfg config.Config) *Dispatcher {
	d := &Dispatcher{
		log:      log,
		cfg:      cfg,
		store:    topology.New(log),
		registry: watchreg.New(),
		plugins:  make(map[ids.AdapterId]adapter.Adapter),
	}
	d.delivery = newDeliveryThread(log)
	return d
}

// Shutdown stops the delivery thread. It does not release any outstanding
// WatchGuards; callers should release them first if deterministic adapter
// guard teardown matters for the test or process exiting.
func (d *Dispatcher) Shutdown() {
	d.delivery.stop()
}

// RegisterAdapter adds a into the registry, deriving its AdapterRecord from
// the plugin's own identity methods (spec §6 identity: id/name/vendor/
// version).
func (d *Dispatcher) RegisterAdapter(a adapter.Adapter) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := a.ID()
	if err := d.store.AddAdapter(id, a.Name(), a.Vendor(), a.Version()); err != nil {
		return err
	}
	d.plugins[id] = a
	d.store.RefreshStats()
	return nil
}

// UnregisterAdapter removes an adapter, cascading through its services and
// channels (spec §4.3 remove_adapter), and detaches every watcher that was
// covering a getter that disappeared in the cascade (I3, I5).
func (d *Dispatcher) UnregisterAdapter(id ids.AdapterId) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed, err := d.store.RemoveAdapter(id)
	if err != nil {
		return err
	}
	delete(d.plugins, id)
	d.detachRemovedGetters(removed)
	d.store.RefreshStats()
	return nil
}

// detachRemovedGetters implements the getter-removal half of spec §4.3's
// remove_getter contract ("For getters with active watchers, also detach
// the getter from each watcher's coverage set... downstream guards tied to
// this specific getter are dropped") for every getter a cascading removal
// swept away.
func (d *Dispatcher) detachRemovedGetters(removed []topology.RemovedGetter) {
	for _, rg := range removed {
		for _, key := range rg.Watchers {
			rec, ok := d.registry.Get(key)
			if !ok {
				continue
			}
			delete(rec.Coverage, rg.ID)
			for _, g := range rec.Guards[rg.ID] {
				g.Release()
			}
			delete(rec.Guards, rg.ID)
		}
	}
}

// AddService admits svc, requiring it to carry no channels (spec §4.3
// add_service).
func (d *Dispatcher) AddService(id ids.ServiceId, adapterID ids.AdapterId, tags ...ids.Tag) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.store.AddService(topology.NewService(id, adapterID, tags...)); err != nil {
		return err
	}
	d.store.RefreshStats()
	return nil
}

// RemoveService cascades through the service's channels and detaches any
// watchers covering a removed getter.
func (d *Dispatcher) RemoveService(id ids.ServiceId) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed, err := d.store.RemoveService(id)
	if err != nil {
		return err
	}
	d.detachRemovedGetters(removed)
	d.store.RefreshStats()
	return nil
}

// AddGetter admits a new getter and, per spec §4.3 add_getter, synchronously
// links it to every watcher whose clauses already match it — installing a
// downstream adapter subscription for clauses with a value filter.
func (d *Dispatcher) AddGetter(c *topology.GetterRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.store.AddGetter(c); err != nil {
		return err
	}
	d.linkNewGetterToWatchers(c)
	d.store.RefreshStats()
	return nil
}

// AddSetter admits a new setter (no watcher linkage applies to setters).
func (d *Dispatcher) AddSetter(c *topology.SetterRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.store.AddSetter(c); err != nil {
		return err
	}
	d.store.RefreshStats()
	return nil
}

// RemoveGetter removes a getter, detaching it from every watcher that
// covered it and releasing the guards tied specifically to it.
func (d *Dispatcher) RemoveGetter(id ids.GetterId) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	watchers, err := d.store.RemoveGetter(id)
	if err != nil {
		return err
	}
	d.detachRemovedGetters([]topology.RemovedGetter{{ID: id, Watchers: watchers}})
	d.store.RefreshStats()
	return nil
}

// RemoveSetter removes a setter.
func (d *Dispatcher) RemoveSetter(id ids.SetterId) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.store.RemoveSetter(id); err != nil {
		return err
	}
	d.store.RefreshStats()
	return nil
}

// adapterFor returns the live plugin for id, or an Internal error if the
// topology references an adapter no longer present (unreachable in
// principle, spec §7 InternalError).
func (d *Dispatcher) adapterFor(id ids.AdapterId) (adapter.Adapter, error) {
	a, ok := d.plugins[id]
	if !ok {
		err := muxerr.Internal("adapter %s referenced by topology but not registered", id)
		d.log.Error(err, "internal inconsistency", logging.AdapterID, id)
		return nil, err
	}
	return a, nil
}
