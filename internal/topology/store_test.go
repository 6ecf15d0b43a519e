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
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/require"

	"github.com/fxbox/devicemux/adapter"
	"github.com/fxbox/devicemux/internal/ids"
	"github.com/fxbox/devicemux/internal/muxerr"
	"github.com/fxbox/devicemux/internal/selector"
)

func newStore() *Store {
	return New(logr.Discard())
}

func TestAddThenDuplicateAdapter(t *testing.T) {
	s := newStore()
	require.NoError(t, s.AddAdapter("a1", "n", "v", [4]uint32{}))
	err := s.AddAdapter("a1", "n", "v", [4]uint32{})
	require.True(t, muxerr.Is(err, muxerr.KindDuplicateAdapter))
}

func TestAddServiceWithoutAdapter(t *testing.T) {
	s := newStore()
	svc := NewService("s1", "a1")
	err := s.AddService(svc)
	require.True(t, muxerr.Is(err, muxerr.KindNoSuchAdapter))

	require.NoError(t, s.AddAdapter("a1", "n", "v", [4]uint32{}))
	require.NoError(t, s.AddService(NewService("s1", "a1")))

	err = s.AddService(NewService("s1", "a1"))
	require.True(t, muxerr.Is(err, muxerr.KindDuplicateService))
}

func TestNonEmptyServiceRejected(t *testing.T) {
	s := newStore()
	require.NoError(t, s.AddAdapter("a1", "n", "v", [4]uint32{}))

	bad := NewService("s2", "a1")
	bad.Getters["g1"] = struct{}{}

	err := s.AddService(bad)
	require.True(t, muxerr.Is(err, muxerr.KindInvalidInitialService))
	require.Empty(t, s.CollectGetters(nil))
}

func TestCascadeRemoveService(t *testing.T) {
	s := newStore()
	require.NoError(t, s.AddAdapter("a1", "n", "v", [4]uint32{}))
	require.NoError(t, s.AddService(NewService("s1", "a1")))
	require.NoError(t, s.AddGetter(NewGetter("g1", "s1", "a1", adapter.KindOnOff, true)))
	require.NoError(t, s.AddSetter(NewSetter("c1", "s1", "a1", adapter.KindOnOff, false)))

	_, err := s.RemoveService("s1")
	require.NoError(t, err)

	_, ok := s.GetGetter("g1")
	require.False(t, ok)
	_, ok = s.GetSetter("c1")
	require.False(t, ok)
	_, ok = s.GetAdapter("a1")
	require.True(t, ok)
}

func TestConflictingAdapterOnChannel(t *testing.T) {
	s := newStore()
	require.NoError(t, s.AddAdapter("a1", "n", "v", [4]uint32{}))
	require.NoError(t, s.AddAdapter("a2", "n", "v", [4]uint32{}))
	require.NoError(t, s.AddService(NewService("s1", "a1")))

	err := s.AddGetter(NewGetter("g1", "s1", "a2", adapter.KindOnOff, true))
	require.True(t, muxerr.Is(err, muxerr.KindConflictingAdapter))
}

func TestRoundTripAddRemoveAdapter(t *testing.T) {
	s := newStore()
	require.NoError(t, s.AddAdapter("a1", "n", "v", [4]uint32{}))
	_, err := s.RemoveAdapter("a1")
	require.NoError(t, err)

	_, ok := s.GetAdapter("a1")
	require.False(t, ok)

	_, err = s.RemoveAdapter("a1")
	require.True(t, muxerr.Is(err, muxerr.KindNoSuchAdapter))
}

func TestTagCountingIsByEntityNotByTag(t *testing.T) {
	s := newStore()
	require.NoError(t, s.AddAdapter("a1", "n", "v", [4]uint32{}))
	require.NoError(t, s.AddService(NewService("s1", "a1")))
	require.NoError(t, s.AddService(NewService("s2", "a1")))

	q := selector.ServiceQuery{selector.NewServiceSelector().WithParent("a1")}
	n := s.AddServiceTags(q, []ids.Tag{"t1", "t2", "t3"})
	require.Equal(t, 2, n)

	// Re-adding is idempotent but the entity still counts (P6).
	n = s.AddServiceTags(q, []ids.Tag{"t1"})
	require.Equal(t, 2, n)
}

func TestRemoveGetterReturnsLinkedWatchers(t *testing.T) {
	s := newStore()
	require.NoError(t, s.AddAdapter("a1", "n", "v", [4]uint32{}))
	require.NoError(t, s.AddService(NewService("s1", "a1")))
	require.NoError(t, s.AddGetter(NewGetter("g1", "s1", "a1", adapter.KindOnOff, true)))

	s.LinkWatcher("g1", 42)
	keys, err := s.RemoveGetter("g1")
	require.NoError(t, err)
	require.Equal(t, []ids.WatchKey{42}, keys)

	_, err = s.RemoveGetter("g1")
	require.True(t, muxerr.Is(err, muxerr.KindNoSuchGetter))
}
