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
	"sync"

	"github.com/go-logr/logr"

	"github.com/fxbox/devicemux/adapter"
	"github.com/fxbox/devicemux/internal/ids"
	"github.com/fxbox/devicemux/internal/watchreg"
)

// deliveryMsg is one unit of work for the delivery thread: either a value
// change reported by an adapter, or a synthesized initialization failure
// raised while installing a downstream subscription.
type deliveryMsg struct {
	rec     *watchreg.Record
	getter  ids.GetterId
	ev      adapter.Event
	initErr error
}

// deliveryThread is the single dedicated goroutine spec §5 requires to
// drain the watch event channel: "Exactly one dedicated thread drains the
// watch event channel, invoking each Record's Sink outside the core mutex."
// Grounded on pkg/watch/manager.go's buffered events channel, with a
// sync.Once over close(done) as the one-shot shutdown signal, adapted from a
// per-watcher thread (as in the original Rust backend) to one shared
// goroutine per Dispatcher, matching the multiplexed intent of spec §5.
//
// Unlike pkg/watch/manager.go's fixed-capacity events channel, spec §4.5
// step 2 calls for an unbounded event channel to the delivery thread: a
// producer goroutine invoking a downstream adapter's Sink callback must
// never suspend because the delivery side is backed up. queue is therefore
// a plain growing slice behind mu rather than a buffered chan deliveryMsg;
// wake only ever carries a presence signal, never the payload itself, so
// push can always append and return without blocking on anything but
// goroutine scheduling.
type deliveryThread struct {
	log logr.Logger

	mu    sync.Mutex
	queue []deliveryMsg

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

func newDeliveryThread(log logr.Logger) *deliveryThread {
	dt := &deliveryThread{
		log:  log,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go dt.run()
	return dt
}

func (dt *deliveryThread) run() {
	for {
		dt.mu.Lock()
		for len(dt.queue) == 0 {
			dt.mu.Unlock()
			select {
			case <-dt.wake:
			case <-dt.done:
				return
			}
			dt.mu.Lock()
		}
		msg := dt.queue[0]
		dt.queue = dt.queue[1:]
		dt.mu.Unlock()

		dt.deliver(msg)
	}
}

// push enqueues msg, or drops it silently if the thread has already been
// stopped (a Dispatcher that is shutting down has no sink left to call).
// The queue has no capacity limit, so this never blocks the calling
// goroutine — often an adapter's own callback goroutine — on a full buffer.
func (dt *deliveryThread) push(msg deliveryMsg) {
	select {
	case <-dt.done:
		return
	default:
	}

	dt.mu.Lock()
	dt.queue = append(dt.queue, msg)
	dt.mu.Unlock()

	select {
	case dt.wake <- struct{}{}:
	default:
	}
}

func (dt *deliveryThread) stop() {
	dt.once.Do(func() { close(dt.done) })
}

// deliver applies the "belt and braces" client-side filter re-check (spec
// §4.5) before invoking a watcher's Sink, and skips delivery entirely for a
// watcher mid-teardown (Record.Dropped).
func (dt *deliveryThread) deliver(msg deliveryMsg) {
	if msg.rec.Dropped() {
		return
	}
	if msg.initErr != nil {
		msg.rec.Sink(watchreg.Event{Kind: watchreg.EventInitializationError, From: msg.getter, Err: msg.initErr})
		return
	}

	filter := msg.rec.Filters[msg.getter]
	if !filter.Matches(msg.ev.Value) {
		return
	}
	kind := watchreg.EventEnterRange
	if msg.ev.Kind == adapter.EventExit {
		kind = watchreg.EventExitRange
	}
	msg.rec.Sink(watchreg.Event{Kind: kind, From: msg.getter, Value: msg.ev.Value})
}
