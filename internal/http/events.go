package http

import (
	"sync"

	"github.com/sirupsen/logrus"

	"playlist-downloader/internal/domain"
)

// eventBroker fans orchestrator events out to event-stream clients.
// A client whose buffer is full is disconnected so it resyncs from a fresh state snapshot.
type eventBroker struct {
	buffer int
	logger *logrus.Logger

	mu      sync.Mutex
	clients map[chan domain.Event]struct{}
	closed  bool
}

func newEventBroker(buffer int, logger *logrus.Logger) *eventBroker {
	return &eventBroker{
		buffer:  buffer,
		logger:  logger,
		clients: make(map[chan domain.Event]struct{}),
	}
}

func (b *eventBroker) subscribe() (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, b.buffer)

	b.mu.Lock()
	if b.closed {
		close(ch)
		b.mu.Unlock()
		return ch, func() {}
	}
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.clients[ch]; ok {
			delete(b.clients, ch)
			close(ch)
		}
	}
}

func (b *eventBroker) publish(e domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.clients {
		select {
		case ch <- e:
		default:
			delete(b.clients, ch)
			close(ch)
			b.logger.WithFields(logrus.Fields{
				"batch_id": e.BatchID,
				"event":    e.Type,
			}).Warn("event stream client is lagging, disconnecting it")
		}
	}
}

func (b *eventBroker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for ch := range b.clients {
		delete(b.clients, ch)
		close(ch)
	}
}
