package billing

import (
	"context"
	"sync"
	"time"

	"github.com/stripe/stripe-go/v81"
	"go.uber.org/zap"
)

// Task is one verified webhook event awaiting background processing
type Task struct {
	Event   stripe.Event
	Payload []byte
}

// Dispatcher decouples webhook acknowledgment from processing. The HTTP
// boundary enqueues verified events and returns immediately; a fixed pool of
// workers drains the queue and runs the pipeline with a per-event timeout.
type Dispatcher struct {
	service *WebhookService
	logger  *zap.Logger

	workers        int
	handlerTimeout time.Duration

	tasks     chan Task
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// DispatcherConfig contains configuration for Dispatcher
type DispatcherConfig struct {
	Service        *WebhookService
	Logger         *zap.Logger
	Workers        int
	QueueSize      int
	HandlerTimeout time.Duration
}

// NewDispatcher creates a new Dispatcher
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = 30 * time.Second
	}
	return &Dispatcher{
		service:        cfg.Service,
		logger:         cfg.Logger,
		workers:        cfg.Workers,
		handlerTimeout: cfg.HandlerTimeout,
		tasks:          make(chan Task, cfg.QueueSize),
	}
}

// Start launches the worker pool
func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for task := range d.tasks {
				d.run(task)
			}
		}()
	}
	d.logger.Info("Webhook dispatcher started", zap.Int("workers", d.workers))
}

// Enqueue submits an event for background processing. It never blocks the
// caller: when the queue is full the task runs on a detached goroutine so the
// provider's delivery is still acknowledged promptly.
func (d *Dispatcher) Enqueue(event stripe.Event, payload []byte) {
	task := Task{Event: event, Payload: payload}
	select {
	case d.tasks <- task:
	default:
		d.logger.Warn("Webhook queue full, processing event inline",
			zap.String("event_id", event.ID))
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.run(task)
		}()
	}
}

func (d *Dispatcher) run(task Task) {
	ctx, cancel := context.WithTimeout(context.Background(), d.handlerTimeout)
	defer cancel()

	result := d.service.HandleEvent(ctx, task.Event, task.Payload)
	if result.Status == StatusError {
		d.logger.Warn("Webhook event finished with error",
			zap.String("event_id", result.EventID),
			zap.String("event_type", result.EventType),
			zap.String("message", result.Message))
	}
}

// Shutdown stops accepting new tasks and waits for in-flight processing to
// finish, bounded by ctx.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.closeOnce.Do(func() { close(d.tasks) })

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("Webhook dispatcher stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
