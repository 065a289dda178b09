package manager

import (
	"sync"

	"github.com/google/uuid"
	"github.com/vitebski/dbsight/pkg/models"
)

// Event is delivered to subscribers when shared state changes
type Event interface {
	event()
}

// ActiveConnectionsChanged carries the resolved active profiles in order
type ActiveConnectionsChanged struct {
	ActiveConfigs []models.ConnectionConfig
}

// SelectedConnectionChanged carries the new selection; nil means none
type SelectedConnectionChanged struct {
	ID *uuid.UUID
}

func (ActiveConnectionsChanged) event()  {}
func (SelectedConnectionChanged) event() {}

const eventBuffer = 16

// notifier broadcasts events to every subscribed channel
type notifier struct {
	mu        sync.RWMutex
	listeners map[chan Event]struct{}
}

func newNotifier() *notifier {
	return &notifier{listeners: make(map[chan Event]struct{})}
}

func (n *notifier) subscribe() chan Event {
	ch := make(chan Event, eventBuffer)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

func (n *notifier) unsubscribe(ch chan Event) {
	n.mu.Lock()
	_, ok := n.listeners[ch]
	delete(n.listeners, ch)
	n.mu.Unlock()
	if ok {
		close(ch)
	}
}

// broadcast never blocks. A listener whose buffer is full misses the event
// and is expected to re-read state from the manager.
func (n *notifier) broadcast(e Event) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.listeners {
		select {
		case ch <- e:
		default:
		}
	}
}
