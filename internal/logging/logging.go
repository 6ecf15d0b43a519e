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

// Package logging holds the structured log keys used across the
// multiplexer, so every package logs the same attribute names instead of
// inventing its own.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
)

// Log keys.
const (
	Operation  = "operation"
	AdapterID  = "adapter_id"
	ServiceID  = "service_id"
	GetterID   = "getter_id"
	SetterID   = "setter_id"
	WatchKey   = "watch_key"
	Selector   = "selector"
	Details    = "details"
	Count      = "count"
	DebugLevel = 1 // log.V(logging.DebugLevel).Info(...)
)

// NewZap returns a logr.Logger backed by a production zap logger, matching
// the teacher's zapr.NewLogger(zap...) wiring in main.go.
func NewZap(name string) logr.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	z, err := cfg.Build()
	if err != nil {
		// Fall back to a no-op logger rather than panicking; logging must
		// never be a reason the multiplexer fails to start.
		return logr.Discard()
	}
	return zapr.NewLogger(z).WithName(name)
}
