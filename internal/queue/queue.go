package queue

import (
	"fmt"
	"sync"
	"time"

	"github.com/qrneighbor/sms-dispatch/internal/logger"
)

// Queue hands campaign-run jobs from the scheduler tick to the worker.
type Queue interface {
	Publish(topic string, payload []byte) error
	Subscribe(topic string, handler func(payload []byte) error) error
}

// InMemoryQueue is the in-process implementation, used in tests and when
// running without a broker.
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]func(payload []byte) error
	// Sync makes Publish run handlers inline instead of in a goroutine.
	Sync bool
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		handlers: make(map[string][]func(payload []byte) error),
	}
}

type job struct {
	payload    []byte
	retryCount int
	maxRetries int
}

// Publish sends a message to all subscribers.
func (q *InMemoryQueue) Publish(topic string, payload []byte) error {
	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	j := job{payload: payload, maxRetries: 3}
	for _, handler := range handlers {
		if q.Sync {
			q.processJob(handler, j)
		} else {
			go q.processJob(handler, j)
		}
	}
	return nil
}

// processJob retries a failing handler with backoff, then gives up.
func (q *InMemoryQueue) processJob(handler func(payload []byte) error, j job) {
	log := logger.WithComponent("queue")
	for j.retryCount <= j.maxRetries {
		err := handler(j.payload)
		if err == nil {
			return
		}

		j.retryCount++
		log.Warn().Err(err).Int("attempt", j.retryCount).Int("max", j.maxRetries).Msg("job failed")

		if j.retryCount > j.maxRetries {
			log.Error().Int("attempts", j.maxRetries).Msg("job permanently failed")
			return
		}
		if !q.Sync {
			time.Sleep(time.Duration(j.retryCount*500) * time.Millisecond)
		}
	}
}

// Subscribe adds a handler for a topic.
func (q *InMemoryQueue) Subscribe(topic string, handler func(payload []byte) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

var _ Queue = (*InMemoryQueue)(nil)
