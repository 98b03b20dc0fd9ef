package webhook

import (
	"context"
	"log/slog"
	"sync"

	"github.com/namastexlabs/automagik-omni/internal/bus"
)

// QueueSet owns one bounded bus.Queue per instance, each drained by its
// own worker goroutine. Keeping a separate queue per instance preserves
// per-conversation ordering without serializing unrelated tenants behind
// each other.
type QueueSet struct {
	capacity int
	handler  *Handler

	mu     sync.Mutex
	queues map[string]*bus.Queue
}

func NewQueueSet(capacity int, handler *Handler) *QueueSet {
	return &QueueSet{
		capacity: capacity,
		handler:  handler,
		queues:   make(map[string]*bus.Queue),
	}
}

// Enqueue places msg on its instance's queue, starting a worker for that
// instance on first sight. Returns false if the queue is at capacity.
func (qs *QueueSet) Enqueue(msg bus.InboundMessage) bool {
	q := qs.queueFor(msg.Instance)
	return q.TryEnqueue(msg)
}

func (qs *QueueSet) queueFor(instanceName string) *bus.Queue {
	qs.mu.Lock()
	defer qs.mu.Unlock()

	if q, ok := qs.queues[instanceName]; ok {
		return q
	}
	q := bus.NewQueue(qs.capacity)
	qs.queues[instanceName] = q
	go qs.drain(instanceName, q)
	return q
}

func (qs *QueueSet) drain(instanceName string, q *bus.Queue) {
	for msg := range q.Receive() {
		qs.handler.Handle(context.Background(), msg)
	}
	slog.Info("webhook: queue worker stopped", "instance", instanceName)
}
