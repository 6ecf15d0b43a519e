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

// Package fake implements an in-memory adapter.Adapter for tests and CLI
// demos. It has no relationship to any real device: values are injected
// directly by the test or operator and handed straight back out of
// fetch_values and watch callbacks.
//
// Grounded on the TestAdapter helper used throughout the original
// implementation's manager tests: a mutex-protected value table fed by an
// Inject method, plus a fan-out of live watch subscriptions triggered on
// every injected value. The original relays injections through a
// dedicated per-instance goroutine and a bounded channel; this port applies
// them synchronously under the adapter's own mutex instead, since nothing
// else here needs the decoupling and tests benefit from Inject's effects
// being visible the moment it returns.
package fake

import (
	"context"
	"sync"

	"github.com/fxbox/devicemux/adapter"
	"github.com/fxbox/devicemux/internal/ids"
)

// Adapter is a programmable in-memory device driver.
type Adapter struct {
	id      ids.AdapterId
	name    string
	vendor  string
	version [4]uint32

	closed chan struct{}

	mu       sync.Mutex
	values   map[ids.GetterId]adapter.FetchResult
	watchers map[ids.GetterId][]*subscription
}

type subscription struct {
	threshold adapter.Value
	sink      adapter.Sink
	dropped   bool
}

// New constructs a fake adapter identifying itself with id. name/vendor
// default to values derived from id when empty.
func New(id ids.AdapterId, name, vendor string) *Adapter {
	if name == "" {
		name = string(id)
	}
	if vendor == "" {
		vendor = "fake@devicemux"
	}
	return &Adapter{
		id:       id,
		name:     name,
		vendor:   vendor,
		closed:   make(chan struct{}),
		values:   make(map[ids.GetterId]adapter.FetchResult),
		watchers: make(map[ids.GetterId][]*subscription),
	}
}

// Close marks the adapter closed. Safe to call multiple times.
func (a *Adapter) Close() {
	select {
	case <-a.closed:
	default:
		close(a.closed)
	}
}

// Inject records a new reading for getter id and notifies any watcher of
// it, mirroring a real device pushing a state change up through its
// adapter.
func (a *Adapter) Inject(getter ids.GetterId, v adapter.Value) {
	a.apply(getter, adapter.FetchResult{Value: v})
}

// InjectError records a fetch failure for getter id.
func (a *Adapter) InjectError(getter ids.GetterId, err error) {
	a.apply(getter, adapter.FetchResult{Err: err})
}

func (a *Adapter) apply(getter ids.GetterId, result adapter.FetchResult) {
	a.mu.Lock()
	a.values[getter] = result
	subs := append([]*subscription(nil), a.watchers[getter]...)
	a.mu.Unlock()

	if result.Err != nil || result.Value == nil {
		return
	}
	for _, sub := range subs {
		if sub.dropped {
			continue
		}
		sub.sink(adapter.Event{Getter: getter, Kind: adapter.EventEnter, Value: result.Value})
	}
}

func (a *Adapter) ID() ids.AdapterId  { return a.id }
func (a *Adapter) Name() string       { return a.name }
func (a *Adapter) Vendor() string     { return a.vendor }
func (a *Adapter) Version() [4]uint32 { return a.version }

// FetchValues returns the last injected reading for each requested getter,
// or an absent-value result for one never injected.
func (a *Adapter) FetchValues(_ context.Context, getters []ids.GetterId) map[ids.GetterId]adapter.FetchResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[ids.GetterId]adapter.FetchResult, len(getters))
	for _, id := range getters {
		if r, ok := a.values[id]; ok {
			out[id] = r
		} else {
			out[id] = adapter.FetchResult{}
		}
	}
	return out
}

// SendValues is a no-op sink: there is nothing downstream of a fake
// adapter's setters to actually move. It always reports success.
func (a *Adapter) SendValues(_ context.Context, pairs []adapter.SetterValue) map[ids.SetterId]error {
	out := make(map[ids.SetterId]error, len(pairs))
	for _, p := range pairs {
		out[p.Setter] = nil
	}
	return out
}

// RegisterWatch installs one subscription per request, invoking sink
// whenever Inject later supplies a value for that getter. Threshold
// filtering itself is left to the dispatcher's belt-and-braces re-check;
// the fake adapter notifies on every injected value unconditionally
// (InjectError and nil values notify nobody), the same
// way a real device often can't pre-filter on its own firmware.
func (a *Adapter) RegisterWatch(_ context.Context, reqs []adapter.WatchRequest, sink adapter.Sink) map[ids.GetterId]adapter.WatchResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[ids.GetterId]adapter.WatchResult, len(reqs))
	for _, req := range reqs {
		sub := &subscription{threshold: req.Threshold, sink: sink}
		a.watchers[req.Getter] = append(a.watchers[req.Getter], sub)
		out[req.Getter] = adapter.WatchResult{Guard: &guard{a: a, getter: req.Getter, sub: sub}}
	}
	return out
}

// guard is the adapter.GuardHandle returned by RegisterWatch.
type guard struct {
	a      *Adapter
	getter ids.GetterId
	sub    *subscription
}

func (g *guard) Release() {
	g.a.mu.Lock()
	defer g.a.mu.Unlock()
	g.sub.dropped = true

	subs := g.a.watchers[g.getter]
	for i, s := range subs {
		if s == g.sub {
			g.a.watchers[g.getter] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

var _ adapter.Adapter = (*Adapter)(nil)
