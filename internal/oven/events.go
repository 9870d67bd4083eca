package oven

import (
	"context"
	"sync"

	"github.com/sweeney/oven-controller/internal/logic"
)

// eventQueue holds emitted events until the Events consumer takes them.
// push never blocks. Past limit, the oldest TEMPERATURE reading is
// discarded first, then the oldest heater transition. Selection and cycle
// events are always kept.
type eventQueue struct {
	mu       sync.Mutex
	pending  []logic.Event
	limit    int
	dropped  int
	dropping bool
	wake     chan struct{}
}

func newEventQueue(limit int) *eventQueue {
	return &eventQueue{limit: limit, wake: make(chan struct{}, 1)}
}

// push queues e. It returns true for the first discard since the queue
// last ran empty.
func (q *eventQueue) push(e logic.Event) bool {
	q.mu.Lock()
	q.pending = append(q.pending, e)
	discarded := false
	for len(q.pending) > q.limit {
		i := q.victim()
		if i < 0 {
			break
		}
		q.pending = append(q.pending[:i], q.pending[i+1:]...)
		q.dropped++
		discarded = true
	}
	first := discarded && !q.dropping
	if discarded {
		q.dropping = true
	}
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return first
}

func (q *eventQueue) victim() int {
	for _, droppable := range []func(logic.EventType) bool{isReading, isHeaterTransition} {
		for i, e := range q.pending {
			if droppable(e.Type) {
				return i
			}
		}
	}
	return -1
}

func isReading(t logic.EventType) bool { return t == logic.EventTemperature }

func isHeaterTransition(t logic.EventType) bool {
	return t == logic.EventHeaterOn || t == logic.EventHeaterOff
}

func (q *eventQueue) pop() (logic.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return logic.Event{}, false
	}
	e := q.pending[0]
	q.pending[0] = logic.Event{}
	q.pending = q.pending[1:]
	if len(q.pending) == 0 {
		q.dropping = false
	}
	return e, true
}

func (q *eventQueue) stats() (queued, dropped int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending), q.dropped
}

// forwardEvents hands queued events to the Events channel in emission order.
func (o *Oven) forwardEvents(ctx context.Context) error {
	for {
		e, ok := o.queue.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-o.queue.wake:
			}
			continue
		}
		select {
		case o.events <- e:
		case <-ctx.Done():
			return nil
		}
	}
}
