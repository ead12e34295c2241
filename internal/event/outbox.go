package event

import (
	"sync"
	"time"
)

// Emitted is a notification stamped with the call that produced it.
type Emitted struct {
	Sequence  int64            `json:"sequence"`
	CallID    string           `json:"call_id"`
	Type      NotificationType `json:"-"`
	Payload   Notification     `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
}

// Outbox is the append-only notification queue between the engine and the
// relay layer. Append never blocks on the consumer; Drain hands over
// everything queued so far in emission order.
type Outbox struct {
	mu      sync.Mutex
	pending []Emitted
	total   int64
	ready   chan struct{}
}

func NewOutbox() *Outbox {
	return &Outbox{
		ready: make(chan struct{}, 1),
	}
}

// Append queues notifications and signals Ready without blocking.
func (o *Outbox) Append(items ...Emitted) {
	if len(items) == 0 {
		return
	}

	o.mu.Lock()
	o.pending = append(o.pending, items...)
	o.total += int64(len(items))
	o.mu.Unlock()

	select {
	case o.ready <- struct{}{}:
	default:
	}
}

// Drain removes and returns all queued notifications.
func (o *Outbox) Drain() []Emitted {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := o.pending
	o.pending = nil
	return out
}

// Ready fires at least once after each Append.
func (o *Outbox) Ready() <-chan struct{} {
	return o.ready
}

// Len returns the number of queued notifications.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}

// Total returns how many notifications were ever appended.
func (o *Outbox) Total() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.total
}
