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

// Package config holds the process-lifetime configuration of the
// multiplexer daemon. None of it is persisted to disk (spec §6): on
// restart it is re-derived from flags and adapters re-register themselves.
package config

import "time"

// Config is populated from CLI flags in cmd/muxd and passed to the
// Dispatcher at construction time.
type Config struct {
	// AdapterCallTimeout is the deadline of the context the Dispatcher
	// hands to each adapter call. The Dispatcher still waits for the call
	// to return; it does not abandon a call that ignores the deadline.
	// Adapters are expected to "return quickly or be internally
	// concurrent" (spec §5).
	AdapterCallTimeout time.Duration
	// MetricsAddr is the address the Prometheus exporter listens on, empty
	// disables it.
	MetricsAddr string
}

// Default returns the configuration used when no flags override it.
func Default() Config {
	return Config{
		AdapterCallTimeout: 5 * time.Second,
		MetricsAddr:        ":9090",
	}
}
