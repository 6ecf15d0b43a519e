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
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/require"

	"github.com/fxbox/devicemux/adapter"
	"github.com/fxbox/devicemux/adapter/fake"
	"github.com/fxbox/devicemux/internal/config"
	"github.com/fxbox/devicemux/internal/ids"
	"github.com/fxbox/devicemux/internal/muxerr"
	"github.com/fxbox/devicemux/internal/selector"
	"github.com/fxbox/devicemux/internal/topology"
	"github.com/fxbox/devicemux/internal/watchreg"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	cfg := config.Default()
	cfg.AdapterCallTimeout = time.Second
	d := New(logr.Discard(), cfg)
	t.Cleanup(d.Shutdown)
	return d
}

func TestRegisterAndUnregisterAdapterCascades(t *testing.T) {
	d := newTestDispatcher(t)
	a := fake.New("a1", "", "")
	defer a.Close()

	require.NoError(t, d.RegisterAdapter(a))
	require.NoError(t, d.AddService("s1", "a1"))
	require.NoError(t, d.AddGetter(topology.NewGetter("g1", "s1", "a1", adapter.KindOnOff, true)))

	require.NoError(t, d.UnregisterAdapter("a1"))

	services := d.GetServices(selector.ServiceQuery{selector.NewServiceSelector().WithID("s1")})
	require.Empty(t, services)
}

func TestFetchValuesGroupsByAdapterAndReportsUnknown(t *testing.T) {
	d := newTestDispatcher(t)
	a := fake.New("a1", "", "")
	defer a.Close()

	require.NoError(t, d.RegisterAdapter(a))
	require.NoError(t, d.AddService("s1", "a1"))
	require.NoError(t, d.AddGetter(topology.NewGetter("g1", "s1", "a1", adapter.KindNumber, false)))
	a.Inject("g1", adapter.Number(21))

	results := d.FetchValues(context.Background(), []ids.GetterId{"g1", "missing"})
	require.Equal(t, adapter.Number(21), results["g1"].Value)
	require.True(t, muxerr.Is(results["missing"].Err, muxerr.KindNoSuchGetter))
}

func TestSendValuesReportsUnknownSetter(t *testing.T) {
	d := newTestDispatcher(t)
	a := fake.New("a1", "", "")
	defer a.Close()

	require.NoError(t, d.RegisterAdapter(a))
	require.NoError(t, d.AddService("s1", "a1"))
	require.NoError(t, d.AddSetter(topology.NewSetter("c1", "s1", "a1", adapter.KindOnOff, false)))

	results := d.SendValues(context.Background(), []adapter.SetterValue{
		{Setter: "c1", Value: adapter.OnOff(true)},
		{Setter: "missing", Value: adapter.OnOff(true)},
	})
	require.NoError(t, results["c1"])
	require.True(t, muxerr.Is(results["missing"], muxerr.KindNoSuchSetter))
}

func TestRegisterWatchDeliversMatchingValues(t *testing.T) {
	d := newTestDispatcher(t)
	a := fake.New("a1", "", "")
	defer a.Close()

	require.NoError(t, d.RegisterAdapter(a))
	require.NoError(t, d.AddService("s1", "a1"))
	require.NoError(t, d.AddGetter(topology.NewGetter("g1", "s1", "a1", adapter.KindNumber, true)))

	events := make(chan watchreg.Event, 8)
	clause := watchreg.Clause{
		Selectors: selector.GetterQuery{selector.NewGetterSelector().WithID("g1")},
		Filter:    watchreg.RangeFilter{Kind: watchreg.FilterNone},
	}
	guard := d.RegisterWatch([]watchreg.Clause{clause}, func(ev watchreg.Event) { events <- ev })
	defer guard.Release()

	a.Inject("g1", adapter.Number(7))

	select {
	case ev := <-events:
		require.Equal(t, watchreg.EventEnterRange, ev.Kind)
		require.Equal(t, ids.GetterId("g1"), ev.From)
		require.Equal(t, adapter.Number(7), ev.Value)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for watch event")
	}
}

func TestRegisterWatchLinksGettersAddedLater(t *testing.T) {
	d := newTestDispatcher(t)
	a := fake.New("a1", "", "")
	defer a.Close()
	require.NoError(t, d.RegisterAdapter(a))
	require.NoError(t, d.AddService("s1", "a1"))

	events := make(chan watchreg.Event, 8)
	clause := watchreg.Clause{
		Selectors: selector.GetterQuery{selector.NewGetterSelector().WithParent("s1")},
		Filter:    watchreg.RangeFilter{Kind: watchreg.FilterNone},
	}
	guard := d.RegisterWatch([]watchreg.Clause{clause}, func(ev watchreg.Event) { events <- ev })
	defer guard.Release()

	require.NoError(t, d.AddGetter(topology.NewGetter("g1", "s1", "a1", adapter.KindNumber, true)))
	a.Inject("g1", adapter.Number(3))

	select {
	case ev := <-events:
		require.Equal(t, ids.GetterId("g1"), ev.From)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for watch event after late-added getter")
	}
}

func TestWatchGuardReleaseStopsDelivery(t *testing.T) {
	d := newTestDispatcher(t)
	a := fake.New("a1", "", "")
	defer a.Close()

	require.NoError(t, d.RegisterAdapter(a))
	require.NoError(t, d.AddService("s1", "a1"))
	require.NoError(t, d.AddGetter(topology.NewGetter("g1", "s1", "a1", adapter.KindNumber, true)))

	events := make(chan watchreg.Event, 8)
	clause := watchreg.Clause{
		Selectors: selector.GetterQuery{selector.NewGetterSelector().WithID("g1")},
		Filter:    watchreg.RangeFilter{Kind: watchreg.FilterNone},
	}
	guard := d.RegisterWatch([]watchreg.Clause{clause}, func(ev watchreg.Event) { events <- ev })
	guard.Release()
	guard.Release() // idempotent

	a.Inject("g1", adapter.Number(99))

	select {
	case ev := <-events:
		t.Fatalf("expected no delivery after guard release, got %+v", ev)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestRemoveGetterDetachesWatcher(t *testing.T) {
	d := newTestDispatcher(t)
	a := fake.New("a1", "", "")
	defer a.Close()

	require.NoError(t, d.RegisterAdapter(a))
	require.NoError(t, d.AddService("s1", "a1"))
	require.NoError(t, d.AddGetter(topology.NewGetter("g1", "s1", "a1", adapter.KindNumber, true)))

	clause := watchreg.Clause{
		Selectors: selector.GetterQuery{selector.NewGetterSelector().WithID("g1")},
		Filter:    watchreg.RangeFilter{Kind: watchreg.FilterNone},
	}
	guard := d.RegisterWatch([]watchreg.Clause{clause}, func(watchreg.Event) {})
	defer guard.Release()

	require.NoError(t, d.RemoveGetter("g1"))
	// Re-adding the same id should succeed cleanly: nothing left over-linked.
	require.NoError(t, d.AddGetter(topology.NewGetter("g1", "s1", "a1", adapter.KindNumber, true)))
}
