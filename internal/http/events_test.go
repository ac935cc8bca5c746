package http

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playlist-downloader/internal/domain"
)

func newQuietBroker(buffer int) *eventBroker {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return newEventBroker(buffer, logger)
}

func TestEventBrokerDisconnectsLaggingClient(t *testing.T) {
	b := newQuietBroker(1)
	slow, cancelSlow := b.subscribe()
	defer cancelSlow()
	fast, cancelFast := b.subscribe()
	defer cancelFast()

	b.publish(domain.Event{Type: domain.EventTaskProgress, BatchID: "b1", Progress: 10})
	<-fast
	b.publish(domain.Event{Type: domain.EventBatchCompleted, BatchID: "b1"})

	first, ok := <-slow
	require.True(t, ok)
	assert.Equal(t, domain.EventTaskProgress, first.Type)
	_, ok = <-slow
	assert.False(t, ok, "lagging client must be closed, not left open with a gap")

	e, ok := <-fast
	require.True(t, ok)
	assert.Equal(t, domain.EventBatchCompleted, e.Type)

	assert.NotPanics(t, func() {
		b.publish(domain.Event{Type: domain.EventBatchStarted, BatchID: "b2"})
		cancelSlow()
	})
}

func TestEventBrokerClose(t *testing.T) {
	b := newQuietBroker(4)
	ch, cancel := b.subscribe()
	b.close()

	_, ok := <-ch
	assert.False(t, ok)
	assert.NotPanics(t, cancel)

	late, _ := b.subscribe()
	_, ok = <-late
	assert.False(t, ok)
}
