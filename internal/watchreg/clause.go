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
	"github.com/fxbox/devicemux/adapter"
	"github.com/fxbox/devicemux/internal/selector"
)

// FilterKind discriminates the shapes a watch clause's range filter can
// take (spec §4.5 register_channel_watch step 4).
type FilterKind int

const (
	// FilterNone means "no filter, notify on every value" - a single
	// subscription with no threshold.
	FilterNone FilterKind = iota
	// FilterTopologyOnly means the clause never matches on value: it only
	// tracks which getters currently satisfy the selector, and installs no
	// downstream adapter subscription.
	FilterTopologyOnly
	FilterEq
	FilterLeq
	FilterGeq
	FilterBetweenEq
	FilterOutOfStrict
)

// RangeFilter is the value-range half of a watch clause.
type RangeFilter struct {
	Kind     FilterKind
	Value    adapter.Value // Eq/Leq/Geq
	Min, Max adapter.Value // BetweenEq/OutOfStrict
}

// Thresholds returns the downstream subscription thresholds this filter
// compiles to (spec §4.5 step 4): zero, one, or two values to subscribe at.
// A topology-only filter returns ok=false: the caller must not install any
// downstream subscription for it.
func (f RangeFilter) Thresholds() (vals []adapter.Value, ok bool) {
	switch f.Kind {
	case FilterTopologyOnly:
		return nil, false
	case FilterNone:
		return []adapter.Value{nil}, true
	case FilterEq, FilterLeq, FilterGeq:
		return []adapter.Value{f.Value}, true
	case FilterBetweenEq, FilterOutOfStrict:
		return []adapter.Value{f.Min, f.Max}, true
	default:
		return nil, false
	}
}

// Clause pairs a disjunctive getter selector set with the range filter
// applied to every getter it matches.
type Clause struct {
	Selectors selector.GetterQuery
	Filter    RangeFilter
}

// Matches reapplies the filter to a value: used both when deciding
// whether an adapter event should be re-checked client-side ("belt and
// braces", spec §4.5 Event delivery path) and in tests.
func (f RangeFilter) Matches(v adapter.Value) bool {
	switch f.Kind {
	case FilterTopologyOnly:
		return false
	case FilterNone:
		return true
	case FilterEq:
		return equalValue(v, f.Value)
	case FilterLeq:
		return allNumbers(v, f.Value) && compareValue(v, f.Value) <= 0
	case FilterGeq:
		return allNumbers(v, f.Value) && compareValue(v, f.Value) >= 0
	case FilterBetweenEq:
		return allNumbers(v, f.Min, f.Max) && compareValue(v, f.Min) >= 0 && compareValue(v, f.Max) <= 0
	case FilterOutOfStrict:
		return compareValue(v, f.Min) < 0 || compareValue(v, f.Max) > 0
	default:
		return false
	}
}

// equalValue compares two Numbers numerically and any other pair with ==.
// compareValue orders Numbers only and reports 0 for any pair that is not
// two Numbers, so Matches checks allNumbers first: `Leq`/`Geq`/between and
// out-of-range all fail for non-numeric values.
func allNumbers(vals ...adapter.Value) bool {
	for _, v := range vals {
		if _, ok := v.(adapter.Number); !ok {
			return false
		}
	}
	return true
}

func equalValue(a, b adapter.Value) bool {
	an, aok := a.(adapter.Number)
	bn, bok := b.(adapter.Number)
	if aok && bok {
		return an == bn
	}
	return a == b
}

func compareValue(a, b adapter.Value) int {
	an, aok := a.(adapter.Number)
	bn, bok := b.(adapter.Number)
	if !aok || !bok {
		return 0
	}
	switch {
	case an < bn:
		return -1
	case an > bn:
		return 1
	default:
		return 0
	}
}
