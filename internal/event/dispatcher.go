package event

import (
	"fmt"
	"reflect"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/Iron-Ham/image2video/internal/logging"
)

// Handler observes an event. A returned error is logged and never reaches
// the dispatching code.
type Handler func(Event) error

type subscription struct {
	id        string
	eventType string
	name      string // handler function name, for logs
	handler   Handler
}

// Dispatcher is a synchronous pub-sub dispatcher over the fixed event set.
// Subscribers run in subscription order on the dispatching goroutine.
type Dispatcher struct {
	mu            sync.RWMutex
	subscriptions map[string][]subscription // eventType -> subscriptions
	nextID        atomic.Uint64
	logger        *logging.Logger
}

// NewDispatcher creates a Dispatcher with no subscribers.
func NewDispatcher(logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Dispatcher{
		subscriptions: make(map[string][]subscription),
		logger:        logger.WithComponent("event"),
	}
}

// Subscribe registers handler for eventType and returns a subscription ID.
// Unknown event names and nil handlers are ignored: the returned ok is false
// and nothing is registered.
func (d *Dispatcher) Subscribe(eventType string, handler Handler) (string, bool) {
	if !IsKnown(eventType) || handler == nil {
		return "", false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	sub := subscription{
		id:        fmt.Sprintf("sub-%d", d.nextID.Add(1)),
		eventType: eventType,
		name:      handlerName(handler),
		handler:   handler,
	}
	d.subscriptions[eventType] = append(d.subscriptions[eventType], sub)
	return sub.id, true
}

// Unsubscribe removes a subscription by ID.
// Returns true if the subscription was found and removed.
func (d *Dispatcher) Unsubscribe(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for eventType, subs := range d.subscriptions {
		for i, sub := range subs {
			if sub.id == id {
				d.subscriptions[eventType] = append(subs[:i:i], subs[i+1:]...)
				return true
			}
		}
	}
	return false
}

// Dispatch delivers ev to every subscriber of its event type, in
// subscription order. Events with an unknown type are dropped. A subscriber
// that fails or panics is logged and skipped; the rest still run.
func (d *Dispatcher) Dispatch(ev Event) {
	if ev == nil || !IsKnown(ev.EventType()) {
		return
	}

	d.mu.RLock()
	subs := make([]subscription, len(d.subscriptions[ev.EventType()]))
	copy(subs, d.subscriptions[ev.EventType()])
	d.mu.RUnlock()

	for _, sub := range subs {
		d.safeCall(sub, ev)
	}
}

func (d *Dispatcher) safeCall(sub subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event subscriber panicked",
				"event", ev.EventType(),
				"subscription", sub.id,
				"subscriber", sub.name,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
		}
	}()

	if err := sub.handler(ev); err != nil {
		d.logger.Error("event subscriber failed",
			"event", ev.EventType(),
			"subscription", sub.id,
			"subscriber", sub.name,
			"error", err.Error(),
		)
	}
}

// Clear removes all subscriptions.
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscriptions = make(map[string][]subscription)
}

// SubscriptionCount returns the total number of active subscriptions.
func (d *Dispatcher) SubscriptionCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	count := 0
	for _, subs := range d.subscriptions {
		count += len(subs)
	}
	return count
}

func handlerName(h Handler) string {
	fn := runtime.FuncForPC(reflect.ValueOf(h).Pointer())
	if fn == nil {
		return "unknown"
	}
	return fn.Name()
}
