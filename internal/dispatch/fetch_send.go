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

	"github.com/fxbox/devicemux/adapter"
	"github.com/fxbox/devicemux/internal/ids"
	"github.com/fxbox/devicemux/internal/muxerr"
)

// FetchValues implements spec §4.5 fetch_values: group the requested
// getters by owning adapter, fan out one FetchValues call per adapter (each
// bounded by AdapterCallTimeout), and flatten the per-adapter maps back into
// a single per-getter result map. Getters naming an unknown id get a
// NoSuchGetter result rather than being silently dropped. A value an adapter
// returns with the wrong kind for the getter's declared type (spec §4.5's
// belt-and-braces re-check, SPEC_FULL.md §5 item 3) becomes a TypeError
// instead of being handed to the caller as-is.
func (d *Dispatcher) FetchValues(ctx context.Context, getterIDs []ids.GetterId) map[ids.GetterId]adapter.FetchResult {
	groups, kinds, unknown := d.groupGettersByAdapter(getterIDs)

	out := make(map[ids.GetterId]adapter.FetchResult, len(getterIDs))
	for id := range unknown {
		out[id] = adapter.FetchResult{Err: muxerr.NoSuchGetter(string(id))}
	}

	type call struct {
		a       adapter.Adapter
		getters []ids.GetterId
	}
	var calls []call
	d.mu.Lock()
	for adapterID, getterIDs := range groups {
		a, err := d.adapterFor(adapterID)
		if err != nil {
			for _, id := range getterIDs {
				out[id] = adapter.FetchResult{Err: err}
			}
			continue
		}
		calls = append(calls, call{a: a, getters: getterIDs})
	}
	d.mu.Unlock()

	for _, c := range calls {
		cctx, cancel := context.WithTimeout(ctx, d.cfg.AdapterCallTimeout)
		results := c.a.FetchValues(cctx, c.getters)
		cancel()
		for id, r := range results {
			out[id] = validateFetchKind(r, kinds[id])
		}
	}
	return out
}

// validateFetchKind applies the belt-and-braces type check spec §4.5/§7
// call for: an adapter that returns a value of the wrong kind for a
// channel's declared type produces a TypeError instead of a mistyped value
// reaching the caller.
func validateFetchKind(r adapter.FetchResult, want adapter.ChannelKind) adapter.FetchResult {
	if r.Err == nil && r.Value != nil && r.Value.Kind() != want {
		return adapter.FetchResult{Err: muxerr.TypeError(r.Value.Kind().String(), want.String())}
	}
	return r
}

// SendValues implements spec §4.5 send_values: the setter-side mirror of
// FetchValues, grouping by adapter and fanning out one SendValues call per
// adapter.
func (d *Dispatcher) SendValues(ctx context.Context, pairs []adapter.SetterValue) map[ids.SetterId]error {
	type group struct {
		adapterID ids.AdapterId
		pairs     []adapter.SetterValue
	}
	groups := make(map[ids.AdapterId]*group)
	out := make(map[ids.SetterId]error, len(pairs))

	d.mu.Lock()
	for _, p := range pairs {
		c, ok := d.store.GetSetter(p.Setter)
		if !ok {
			out[p.Setter] = muxerr.NoSuchSetter(string(p.Setter))
			continue
		}
		if p.Value.Kind() != c.Kind {
			out[p.Setter] = muxerr.TypeError(p.Value.Kind().String(), c.Kind.String())
			continue
		}
		g, ok := groups[c.AdapterID]
		if !ok {
			g = &group{adapterID: c.AdapterID}
			groups[c.AdapterID] = g
		}
		g.pairs = append(g.pairs, p)
	}

	type call struct {
		a     adapter.Adapter
		pairs []adapter.SetterValue
	}
	var calls []call
	for _, g := range groups {
		a, err := d.adapterFor(g.adapterID)
		if err != nil {
			for _, p := range g.pairs {
				out[p.Setter] = err
			}
			continue
		}
		calls = append(calls, call{a: a, pairs: g.pairs})
	}
	d.mu.Unlock()

	for _, c := range calls {
		cctx, cancel := context.WithTimeout(ctx, d.cfg.AdapterCallTimeout)
		results := c.a.SendValues(cctx, c.pairs)
		cancel()
		for id, err := range results {
			out[id] = err
		}
	}
	return out
}

// groupGettersByAdapter partitions ids into per-adapter batches, reporting
// any id that does not name a live getter separately (unknown), and
// collecting each known getter's declared kind for the post-fetch
// belt-and-braces type check.
func (d *Dispatcher) groupGettersByAdapter(getterIDs []ids.GetterId) (groups map[ids.AdapterId][]ids.GetterId, kinds map[ids.GetterId]adapter.ChannelKind, unknown map[ids.GetterId]struct{}) {
	groups = make(map[ids.AdapterId][]ids.GetterId)
	kinds = make(map[ids.GetterId]adapter.ChannelKind)
	unknown = make(map[ids.GetterId]struct{})

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range getterIDs {
		g, ok := d.store.GetGetter(id)
		if !ok {
			unknown[id] = struct{}{}
			continue
		}
		groups[g.AdapterID] = append(groups[g.AdapterID], id)
		kinds[id] = g.Kind
	}
	return groups, kinds, unknown
}
