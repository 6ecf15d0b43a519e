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

package watchreg

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fxbox/devicemux/adapter"
)

func TestThresholdsNone(t *testing.T) {
	f := RangeFilter{Kind: FilterNone}
	vals, ok := f.Thresholds()
	require.True(t, ok)
	require.Equal(t, []adapter.Value{nil}, vals)
}

func TestThresholdsTopologyOnly(t *testing.T) {
	f := RangeFilter{Kind: FilterTopologyOnly}
	_, ok := f.Thresholds()
	require.False(t, ok)
}

func TestThresholdsEq(t *testing.T) {
	f := RangeFilter{Kind: FilterEq, Value: adapter.Number(42)}
	vals, ok := f.Thresholds()
	require.True(t, ok)
	require.Equal(t, []adapter.Value{adapter.Number(42)}, vals)
}

func TestThresholdsBetween(t *testing.T) {
	f := RangeFilter{Kind: FilterBetweenEq, Min: adapter.Number(1), Max: adapter.Number(9)}
	vals, ok := f.Thresholds()
	require.True(t, ok)
	require.Equal(t, []adapter.Value{adapter.Number(1), adapter.Number(9)}, vals)
}

func TestMatchesEq(t *testing.T) {
	f := RangeFilter{Kind: FilterEq, Value: adapter.Number(42)}
	require.True(t, f.Matches(adapter.Number(42)))
	require.False(t, f.Matches(adapter.Number(43)))
}

func TestMatchesBetweenEq(t *testing.T) {
	f := RangeFilter{Kind: FilterBetweenEq, Min: adapter.Number(1), Max: adapter.Number(9)}
	require.True(t, f.Matches(adapter.Number(1)))
	require.True(t, f.Matches(adapter.Number(5)))
	require.True(t, f.Matches(adapter.Number(9)))
	require.False(t, f.Matches(adapter.Number(10)))
}

func TestMatchesOutOfStrict(t *testing.T) {
	f := RangeFilter{Kind: FilterOutOfStrict, Min: adapter.Number(1), Max: adapter.Number(9)}
	require.False(t, f.Matches(adapter.Number(1)))
	require.False(t, f.Matches(adapter.Number(5)))
	require.True(t, f.Matches(adapter.Number(0)))
	require.True(t, f.Matches(adapter.Number(10)))
}

func TestMatchesTopologyOnlyAlwaysFalse(t *testing.T) {
	f := RangeFilter{Kind: FilterTopologyOnly}
	require.False(t, f.Matches(adapter.Number(1)))
}

func TestMatchesNoneAlwaysTrue(t *testing.T) {
	f := RangeFilter{Kind: FilterNone}
	require.True(t, f.Matches(adapter.OnOff(true)))
}
