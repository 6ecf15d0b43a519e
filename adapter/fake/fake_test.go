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

package fake

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fxbox/devicemux/adapter"
	"github.com/fxbox/devicemux/internal/ids"
)

func TestFetchValuesReflectsInjections(t *testing.T) {
	a := New("a1", "", "")
	defer a.Close()

	a.Inject("g1", adapter.Number(10))
	a.InjectError("g2", errors.New("boom"))

	results := a.FetchValues(context.Background(), []ids.GetterId{"g1", "g2", "g3"})
	require.Equal(t, adapter.Number(10), results["g1"].Value)
	require.EqualError(t, results["g2"].Err, "boom")
	require.Nil(t, results["g3"].Value)
	require.NoError(t, results["g3"].Err)
}

func TestSendValuesAlwaysSucceeds(t *testing.T) {
	a := New("a1", "", "")
	defer a.Close()

	results := a.SendValues(context.Background(), []adapter.SetterValue{{Setter: "c1", Value: adapter.OnOff(true)}})
	require.NoError(t, results["c1"])
}

func TestRegisterWatchNotifiesOnInject(t *testing.T) {
	a := New("a1", "", "")
	defer a.Close()

	events := make(chan adapter.Event, 4)
	results := a.RegisterWatch(context.Background(),
		[]adapter.WatchRequest{{Getter: "g1"}},
		func(ev adapter.Event) { events <- ev })
	require.NoError(t, results["g1"].Err)
	require.NotNil(t, results["g1"].Guard)

	a.Inject("g1", adapter.Number(5))
	select {
	case ev := <-events:
		require.Equal(t, ids.GetterId("g1"), ev.Getter)
		require.Equal(t, adapter.Number(5), ev.Value)
	default:
		t.Fatal("expected synchronous delivery of injected event")
	}
}

func TestGuardReleaseStopsNotifications(t *testing.T) {
	a := New("a1", "", "")
	defer a.Close()

	events := make(chan adapter.Event, 4)
	results := a.RegisterWatch(context.Background(),
		[]adapter.WatchRequest{{Getter: "g1"}},
		func(ev adapter.Event) { events <- ev })
	results["g1"].Guard.Release()

	a.Inject("g1", adapter.Number(5))
	select {
	case ev := <-events:
		t.Fatalf("expected no events after guard release, got %+v", ev)
	default:
	}
}

func TestDefaultNameAndVendor(t *testing.T) {
	a := New("my-id", "", "")
	defer a.Close()
	require.Equal(t, "my-id", a.Name())
	require.Equal(t, "fake@devicemux", a.Vendor())
}
