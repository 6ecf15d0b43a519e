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
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Grounded directly on pkg/watch/stats_reporter.go's gvk-count observable
// gauges: the watch manager reports how many kinds it watches vs. intends
// to watch, using the global otel meter provider so the exporter wired up
// in cmd/muxd (Prometheus) picks it up without this package knowing about
// Prometheus at all.
const (
	adapterCountMetricName = "devicemux_adapter_count"
	serviceCountMetricName = "devicemux_service_count"
	getterCountMetricName  = "devicemux_getter_count"
	setterCountMetricName  = "devicemux_setter_count"
	watcherCountMetricName = "devicemux_watcher_link_count"
)

// reporter publishes a cached Counts snapshot to the gauges below. The
// otel SDK invokes the registered callback from its own metric-reader
// goroutine whenever something scrapes /metrics, concurrently with
// whatever internal/dispatch's core mutex is doing — exactly like
// pkg/watch/stats_reporter.go's manager, which never lets its async
// callback touch live state directly. There the manager pushes a
// pre-computed int64 into the reporter under its own lock and the
// callback only reads that scalar; reporter mirrors it: update is called
// by internal/dispatch while holding the core mutex, and the callback
// below only ever takes reporter's own mu to read the cached snapshot, never
// the Store's live maps.
type reporter struct {
	mu     sync.RWMutex
	cached Counts
}

func newReporter() (*reporter, error) {
	r := &reporter{}
	meter := otel.GetMeterProvider().Meter("devicemux")

	adapterM, err := meter.Int64ObservableGauge(adapterCountMetricName,
		metric.WithDescription("Number of adapters currently registered"))
	if err != nil {
		return nil, err
	}
	serviceM, err := meter.Int64ObservableGauge(serviceCountMetricName,
		metric.WithDescription("Number of services currently registered"))
	if err != nil {
		return nil, err
	}
	getterM, err := meter.Int64ObservableGauge(getterCountMetricName,
		metric.WithDescription("Number of getter channels currently registered"))
	if err != nil {
		return nil, err
	}
	setterM, err := meter.Int64ObservableGauge(setterCountMetricName,
		metric.WithDescription("Number of setter channels currently registered"))
	if err != nil {
		return nil, err
	}
	watcherM, err := meter.Int64ObservableGauge(watcherCountMetricName,
		metric.WithDescription("Number of getter<->watcher links currently active"))
	if err != nil {
		return nil, err
	}

	_, err = meter.RegisterCallback(func(_ context.Context, obs metric.Observer) error {
		r.mu.RLock()
		c := r.cached
		r.mu.RUnlock()
		obs.ObserveInt64(adapterM, int64(c.Adapters))
		obs.ObserveInt64(serviceM, int64(c.Services))
		obs.ObserveInt64(getterM, int64(c.Getters))
		obs.ObserveInt64(setterM, int64(c.Setters))
		obs.ObserveInt64(watcherM, int64(c.Watchers))
		return nil
	}, adapterM, serviceM, getterM, setterM, watcherM)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// update replaces the cached snapshot the callback above reports. Callers
// must already hold the core mutex that serializes all topology mutation
// (internal/dispatch.Dispatcher.mu) — the same discipline
// pkg/watch/stats_reporter.go's push-under-lock relies on.
func (r *reporter) update(c Counts) {
	r.mu.Lock()
	r.cached = c
	r.mu.Unlock()
}
