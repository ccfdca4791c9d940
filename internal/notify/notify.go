// Package notify moves low-stock alerts out of the request path.
//
// Checkout hands alerts to a Dispatcher and returns. The alert is later
// delivered to a Handler either by an in-process worker pool (Queue) or,
// across processes, through a Kafka topic (KafkaDispatcher + KafkaConsumer).
package notify

import (
	"context"
	"errors"
	"sync"

	"storefront/internal/domain"
	applog "storefront/internal/log"
)

var (
	ErrQueueFull   = errors.New("notify: queue full")
	ErrQueueClosed = errors.New("notify: queue closed")
)

// Dispatcher accepts an alert for later delivery. It must not block on delivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, alert domain.LowStockAlert) error
}

// Handler delivers one alert.
type Handler func(ctx context.Context, alert domain.LowStockAlert) error

// Queue is a buffered channel drained by a fixed set of workers.
type Queue struct {
	handle  Handler
	workers int
	ch      chan domain.LowStockAlert

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

func NewQueue(h Handler, workers, buffer int) *Queue {
	if workers < 1 {
		workers = 1
	}
	if buffer < 1 {
		buffer = 1
	}
	return &Queue{handle: h, workers: workers, ch: make(chan domain.LowStockAlert, buffer)}
}

// Start launches the workers. Handlers run with ctx; cancelling it does not
// stop the workers, Close does.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.work(ctx)
	}
}

func (q *Queue) work(ctx context.Context) {
	defer q.wg.Done()
	for a := range q.ch {
		deliver(ctx, q.handle, a)
	}
}

func deliver(ctx context.Context, h Handler, a domain.LowStockAlert) {
	defer func() {
		if r := recover(); r != nil {
			applog.Error(nil, "notify.lowstock.panic", nil, map[string]any{"product_id": a.ProductID, "panic": r})
		}
	}()
	if err := h(ctx, a); err != nil {
		applog.Error(nil, "notify.lowstock.fail", err, map[string]any{"product_id": a.ProductID})
		return
	}
	applog.Info(nil, "notify.lowstock.sent", map[string]any{"product_id": a.ProductID, "stock": a.StockQuantity})
}

// Dispatch enqueues without waiting; a full or closed queue is an error.
func (q *Queue) Dispatch(_ context.Context, a domain.LowStockAlert) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- a:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting alerts and waits for queued ones to be delivered.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	started := q.started
	q.mu.Unlock()

	if !started {
		for a := range q.ch {
			deliver(context.Background(), q.handle, a)
		}
		return
	}
	q.wg.Wait()
}
