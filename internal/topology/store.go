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
	"github.com/go-logr/logr"

	"github.com/fxbox/devicemux/internal/ids"
	"github.com/fxbox/devicemux/internal/logging"
	"github.com/fxbox/devicemux/internal/muxerr"
	"github.com/fxbox/devicemux/internal/txmap"
)

// Store holds the four indexed tables of spec §4.3. It is not safe for
// concurrent use on its own; internal/dispatch serializes all access
// behind the single core mutex (spec §5).
type Store struct {
	log logr.Logger

	adapters map[ids.AdapterId]*AdapterRecord
	services map[ids.ServiceId]*ServiceRecord
	getters  map[ids.GetterId]*GetterRecord
	setters  map[ids.SetterId]*SetterRecord

	stats *reporter
}

// New builds an empty Store.
func New(log logr.Logger) *Store {
	s := &Store{
		log:      log,
		adapters: make(map[ids.AdapterId]*AdapterRecord),
		services: make(map[ids.ServiceId]*ServiceRecord),
		getters:  make(map[ids.GetterId]*GetterRecord),
		setters:  make(map[ids.SetterId]*SetterRecord),
	}
	s.stats, _ = newReporter()
	s.RefreshStats()
	return s
}

// --- adapters ---------------------------------------------------------

// AddAdapter inserts a. Fails DuplicateAdapter if the id is present.
func (s *Store) AddAdapter(id ids.AdapterId, name, vendor string, version [4]uint32) error {
	rec := newAdapterRecord(id, name, vendor, version)
	tx, collision := txmap.Start(s.adapters, map[ids.AdapterId]*AdapterRecord{id: rec})
	if collision != nil {
		return muxerr.DuplicateAdapter(string(id))
	}
	tx.Commit()
	return nil
}

// RemovedGetter reports a getter that disappeared as part of a cascading
// removal, together with the watch keys that were linked to it, so the
// caller (internal/dispatch) can detach the symmetric back-reference (I3)
// and drop the guards tied to it.
type RemovedGetter struct {
	ID       ids.GetterId
	Watchers []ids.WatchKey
}

// RemoveAdapter removes the adapter and cascades into remove_service for
// every service it owned. Per-service errors are logged, not propagated:
// the cascade is best-effort once the top-level adapter is known to exist.
// Returns every getter removed by the cascade.
func (s *Store) RemoveAdapter(id ids.AdapterId) ([]RemovedGetter, error) {
	a, ok := s.adapters[id]
	if !ok {
		return nil, muxerr.NoSuchAdapter(string(id))
	}
	serviceIDs := make([]ids.ServiceId, 0, len(a.Services))
	for sid := range a.Services {
		serviceIDs = append(serviceIDs, sid)
	}
	delete(s.adapters, id)
	var removed []RemovedGetter
	for _, sid := range serviceIDs {
		rg, err := s.RemoveService(sid)
		if err != nil {
			s.log.Error(err, "inconsistent cascade removing service during adapter removal",
				logging.AdapterID, id, logging.ServiceID, sid)
		}
		removed = append(removed, rg...)
	}
	return removed, nil
}

// GetAdapter returns a snapshot of the adapter record, or ok=false.
func (s *Store) GetAdapter(id ids.AdapterId) (*AdapterRecord, bool) {
	a, ok := s.adapters[id]
	if !ok {
		return nil, false
	}
	return a.Clone(), true
}

// Adapters returns the live table for selector iteration. Callers under
// the core mutex must not retain references past the call.
func (s *Store) Adapters() map[ids.AdapterId]*AdapterRecord { return s.adapters }

// --- services -----------------------------------------------------------

// AddService admits s into the global service table and its adapter's
// back-reference table atomically. s must carry no channels yet.
func (s *Store) AddService(svc *ServiceRecord) error {
	if len(svc.Getters) > 0 || len(svc.Setters) > 0 {
		return muxerr.InvalidInitialService(string(svc.ID))
	}
	a, ok := s.adapters[svc.AdapterID]
	if !ok {
		return muxerr.NoSuchAdapter(string(svc.AdapterID))
	}

	globalTx, collision := txmap.Start(s.services, map[ids.ServiceId]*ServiceRecord{svc.ID: svc})
	if collision != nil {
		return muxerr.DuplicateService(string(svc.ID))
	}
	defer globalTx.Rollback()

	backrefTx, collision := txmap.Start(a.Services, map[ids.ServiceId]struct{}{svc.ID: {}})
	if collision != nil {
		// Should be unreachable: the global table would already have
		// rejected a duplicate id, yet the adapter's back-reference table
		// collided without the global one doing so. Logged as an internal
		// inconsistency (spec §7 InternalError) and reported to the caller
		// as DuplicateService rather than as an InternalError; the deferred
		// Rollback undoes the global insert.
		s.log.Info("adapter backref collided without global collision", logging.ServiceID, svc.ID)
		return muxerr.DuplicateService(string(svc.ID))
	}
	defer backrefTx.Rollback()

	globalTx.Commit()
	backrefTx.Commit()
	return nil
}

// RemoveService removes svc, cascade-removing every channel it contained
// and detaching it from its adapter's back-reference table. Always
// attempts best-effort cleanup even when individual steps are inconsistent.
// Returns every getter removed by the cascade.
func (s *Store) RemoveService(id ids.ServiceId) ([]RemovedGetter, error) {
	svc, ok := s.services[id]
	if !ok {
		return nil, muxerr.NoSuchService(string(id))
	}
	getterIDs := make([]ids.GetterId, 0, len(svc.Getters))
	for gid := range svc.Getters {
		getterIDs = append(getterIDs, gid)
	}
	setterIDs := make([]ids.SetterId, 0, len(svc.Setters))
	for sid := range svc.Setters {
		setterIDs = append(setterIDs, sid)
	}

	delete(s.services, id)
	if a, ok := s.adapters[svc.AdapterID]; ok {
		delete(a.Services, id)
	} else {
		s.log.Info("service removed for adapter no longer present", logging.ServiceID, id, logging.AdapterID, svc.AdapterID)
	}

	var removed []RemovedGetter
	for _, gid := range getterIDs {
		watchers, err := s.RemoveGetter(gid)
		if err != nil {
			s.log.Error(err, "inconsistent cascade removing getter during service removal", logging.ServiceID, id, logging.GetterID, gid)
			continue
		}
		removed = append(removed, RemovedGetter{ID: gid, Watchers: watchers})
	}
	for _, sid := range setterIDs {
		if err := s.RemoveSetter(sid); err != nil {
			s.log.Error(err, "inconsistent cascade removing setter during service removal", logging.ServiceID, id, logging.SetterID, sid)
		}
	}
	return removed, nil
}

// GetService returns a snapshot of the service record, or ok=false.
func (s *Store) GetService(id ids.ServiceId) (*ServiceRecord, bool) {
	svc, ok := s.services[id]
	if !ok {
		return nil, false
	}
	return svc.Clone(), true
}

func (s *Store) Services() map[ids.ServiceId]*ServiceRecord { return s.services }

// --- getters --------------------------------------------------------------

// AddGetter admits c into the global channel table and its parent
// service's child table atomically.
func (s *Store) AddGetter(c *GetterRecord) error {
	svc, ok := s.services[c.ServiceID]
	if !ok {
		return muxerr.NoSuchService(string(c.ServiceID))
	}
	if svc.AdapterID != c.AdapterID {
		return muxerr.ConflictingAdapter(string(svc.AdapterID), string(c.AdapterID))
	}

	globalTx, collision := txmap.Start(s.getters, map[ids.GetterId]*GetterRecord{c.ID: c})
	if collision != nil {
		return muxerr.DuplicateGetter(string(c.ID))
	}
	defer globalTx.Rollback()

	childTx, collision := txmap.Start(svc.Getters, map[ids.GetterId]struct{}{c.ID: {}})
	if collision != nil {
		s.log.Info("service child table collided without global collision", logging.GetterID, c.ID)
		return muxerr.DuplicateGetter(string(c.ID))
	}
	defer childTx.Rollback()

	globalTx.Commit()
	childTx.Commit()
	return nil
}

// RemoveGetter removes id from both the global table and the parent
// service's child table. Returns the set of WatchKeys that were linked to
// it so the caller (internal/dispatch) can detach the symmetric
// back-reference (I3) and drop any guards tied to this specific getter.
func (s *Store) RemoveGetter(id ids.GetterId) ([]ids.WatchKey, error) {
	g, ok := s.getters[id]
	if !ok {
		return nil, muxerr.NoSuchGetter(string(id))
	}
	watchers := make([]ids.WatchKey, 0, len(g.Watchers))
	for k := range g.Watchers {
		watchers = append(watchers, k)
	}

	delete(s.getters, id)
	if svc, ok := s.services[g.ServiceID]; ok {
		delete(svc.Getters, id)
	} else {
		s.log.Info("getter removed for service no longer present", logging.GetterID, id, logging.ServiceID, g.ServiceID)
	}
	return watchers, nil
}

// GetGetter returns a snapshot of the getter record, or ok=false.
func (s *Store) GetGetter(id ids.GetterId) (*GetterRecord, bool) {
	g, ok := s.getters[id]
	if !ok {
		return nil, false
	}
	return g.Clone(), true
}

func (s *Store) Getters() map[ids.GetterId]*GetterRecord { return s.getters }

// LinkWatcher records that key covers getter id (the getter side of I3's
// symmetric relation). No-op if the getter is gone.
func (s *Store) LinkWatcher(id ids.GetterId, key ids.WatchKey) {
	if g, ok := s.getters[id]; ok {
		g.Watchers[key] = struct{}{}
	}
}

// UnlinkWatcher is the idempotent inverse of LinkWatcher.
func (s *Store) UnlinkWatcher(id ids.GetterId, key ids.WatchKey) {
	if g, ok := s.getters[id]; ok {
		delete(g.Watchers, key)
	}
}

// --- setters ----------------------------------------------------------

// AddSetter admits c into the global channel table and its parent
// service's child table atomically.
func (s *Store) AddSetter(c *SetterRecord) error {
	svc, ok := s.services[c.ServiceID]
	if !ok {
		return muxerr.NoSuchService(string(c.ServiceID))
	}
	if svc.AdapterID != c.AdapterID {
		return muxerr.ConflictingAdapter(string(svc.AdapterID), string(c.AdapterID))
	}

	globalTx, collision := txmap.Start(s.setters, map[ids.SetterId]*SetterRecord{c.ID: c})
	if collision != nil {
		return muxerr.DuplicateSetter(string(c.ID))
	}
	defer globalTx.Rollback()

	childTx, collision := txmap.Start(svc.Setters, map[ids.SetterId]struct{}{c.ID: {}})
	if collision != nil {
		s.log.Info("service child table collided without global collision", logging.SetterID, c.ID)
		return muxerr.DuplicateSetter(string(c.ID))
	}
	defer childTx.Rollback()

	globalTx.Commit()
	childTx.Commit()
	return nil
}

// RemoveSetter removes id from both the global table and the parent
// service's child table.
func (s *Store) RemoveSetter(id ids.SetterId) error {
	c, ok := s.setters[id]
	if !ok {
		return muxerr.NoSuchSetter(string(id))
	}
	delete(s.setters, id)
	if svc, ok := s.services[c.ServiceID]; ok {
		delete(svc.Setters, id)
	} else {
		s.log.Info("setter removed for service no longer present", logging.SetterID, id, logging.ServiceID, c.ServiceID)
	}
	return nil
}

// GetSetter returns a snapshot of the setter record, or ok=false.
func (s *Store) GetSetter(id ids.SetterId) (*SetterRecord, bool) {
	c, ok := s.setters[id]
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

func (s *Store) Setters() map[ids.SetterId]*SetterRecord { return s.setters }

// Stats computes and returns current table sizes; it does not publish them
// (RefreshStats hands the same snapshot to the otel gauges).
func (s *Store) Stats() Counts {
	watchers := 0
	for _, g := range s.getters {
		watchers += len(g.Watchers)
	}
	return Counts{
		Adapters: len(s.adapters),
		Services: len(s.services),
		Getters:  len(s.getters),
		Setters:  len(s.setters),
		Watchers: watchers,
	}
}

// Counts is a point-in-time snapshot of table sizes.
type Counts struct {
	Adapters, Services, Getters, Setters, Watchers int
}

// RefreshStats recomputes table sizes and publishes them to the otel
// gauges' cached snapshot (see stats_reporter.go). Callers must hold the
// core mutex serializing all topology access (spec §5): this reads the
// same live maps Stats() does, it just also hands the result to the
// reporter instead of only returning it.
func (s *Store) RefreshStats() {
	if s.stats != nil {
		s.stats.update(s.Stats())
	}
}
