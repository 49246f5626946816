package application

import (
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const listenerBufferSize = 16

type listener[T any] struct {
	id string
	ch chan T
}

// broker fans out values to every subscribed listener. Sends never block:
// a listener that does not keep up misses values. Once closed, new
// subscriptions get an already closed channel.
type broker[T any] struct {
	lock      *sync.Mutex
	listeners []*listener[T]
	closed    bool
}

func newBroker[T any]() *broker[T] {
	return &broker[T]{
		lock:      &sync.Mutex{},
		listeners: make([]*listener[T], 0),
	}
}

func (h *broker[T]) subscribe() (string, <-chan T) {
	h.lock.Lock()
	defer h.lock.Unlock()

	l := &listener[T]{
		id: uuid.New().String(),
		ch: make(chan T, listenerBufferSize),
	}
	if h.closed {
		close(l.ch)
		return l.id, l.ch
	}
	h.listeners = append(h.listeners, l)
	return l.id, l.ch
}

func (h *broker[T]) unsubscribe(id string) {
	h.lock.Lock()
	defer h.lock.Unlock()

	for i, l := range h.listeners {
		if l.id == id {
			close(l.ch)
			h.listeners = append(h.listeners[:i], h.listeners[i+1:]...)
			return
		}
	}
}

func (h *broker[T]) publish(value T) {
	h.lock.Lock()
	defer h.lock.Unlock()

	for _, l := range h.listeners {
		select {
		case l.ch <- value:
		default:
			log.WithField("listener", l.id).Warn("listener is lagging behind, dropping update")
		}
	}
}

func (h *broker[T]) count() int {
	h.lock.Lock()
	defer h.lock.Unlock()

	return len(h.listeners)
}

func (h *broker[T]) close() {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.closed = true
	for _, l := range h.listeners {
		close(l.ch)
	}
	h.listeners = make([]*listener[T], 0)
}
