package notify

import (
	"sync"

	"github.com/datatrails/go-datatrails-common/logger"
)

// Notifier reacts to a Notification. It receives the Bus by borrow so it
// may cascade further publishes (e.g. an escrow observer that re-submits a
// held event and, on success, publishes KeyEventAdded itself) without ever
// owning the bus.
type Notifier interface {
	Notify(n Notification, bus *Bus) error
}

// NotifierFunc adapts a plain function to the Notifier interface.
type NotifierFunc func(n Notification, bus *Bus) error

func (f NotifierFunc) Notify(n Notification, bus *Bus) error { return f(n, bus) }

// Dispatch is the swappable delivery strategy behind a Bus — the in-process
// default here, or an out-of-process queue/durable dispatcher elsewhere,
// without the Processor or escrow observers needing to change.
type Dispatch interface {
	Publish(n Notification) error
	Register(kind Kind, observer Notifier)
}

// inProcessDispatch delivers notifications synchronously, in registration
// order, on the publishing goroutine. A failing observer is logged and does
// not stop delivery to the remaining observers registered for the same
// kind; the first such error is returned to the publisher once dispatch for
// that notification completes.
type inProcessDispatch struct {
	mu        sync.RWMutex
	observers map[Kind][]Notifier
	log       logger.Logger

	// busOnce and bus implement the write-once back-reference: the bus is
	// constructed, handed to the dispatch exactly once, and never
	// reassigned. Observers receive *Bus by borrow on every Notify call —
	// they never hold their own copy.
	busOnce sync.Once
	bus     *Bus
}

func newInProcessDispatch(log logger.Logger) *inProcessDispatch {
	return &inProcessDispatch{
		observers: make(map[Kind][]Notifier),
		log:       log,
	}
}

func (d *inProcessDispatch) setBus(b *Bus) {
	d.busOnce.Do(func() { d.bus = b })
}

func (d *inProcessDispatch) Register(kind Kind, observer Notifier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers[kind] = append(d.observers[kind], observer)
}

func (d *inProcessDispatch) Publish(n Notification) error {
	d.mu.RLock()
	observers := append([]Notifier(nil), d.observers[n.Kind]...)
	d.mu.RUnlock()

	var first error
	for _, obs := range observers {
		if err := obs.Notify(n, d.bus); err != nil {
			if d.log != nil {
				d.log.Infof("notify: observer for %s failed: %v", n.Kind, err)
			}
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// Bus is a cloneable handle onto a shared dispatcher: every clone observes
// and publishes through the same observer registry.
type Bus struct {
	dispatch Dispatch
}

// NewBus creates a Bus backed by the default in-process, synchronous
// dispatch strategy.
func NewBus(log logger.Logger) *Bus {
	d := newInProcessDispatch(log)
	b := &Bus{dispatch: d}
	d.setBus(b)
	return b
}

// NewBusFromDispatch creates a Bus backed by a caller-supplied Dispatch
// (e.g. a durable-queue implementation), per the "pluggable dispatch"
// design note.
func NewBusFromDispatch(d Dispatch) *Bus {
	return &Bus{dispatch: d}
}

// Register subscribes observer to be invoked whenever a notification of
// kind is published.
func (b *Bus) Register(kind Kind, observer Notifier) {
	b.dispatch.Register(kind, observer)
}

// Publish delivers n to every observer registered for n.Kind, in
// registration order, synchronously on the calling goroutine.
func (b *Bus) Publish(n Notification) error {
	return b.dispatch.Publish(n)
}
