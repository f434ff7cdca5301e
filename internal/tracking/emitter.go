package tracking

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/frahmantamala/kit-checkout/internal/metrics"
)

// Tracker fires funnel events without ever blocking or failing the caller.
type Tracker interface {
	Emit(ctx context.Context, ev Event)
	Shutdown(ctx context.Context) error
}

type Job struct {
	Event    Event
	Enqueued time.Time
}

type Worker struct {
	ID         int
	WorkerPool chan chan Job
	JobChannel chan Job
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan Job, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan Job),
		Logger:     logger,
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, processFunc func(Job)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			select {
			case w.WorkerPool <- w.JobChannel:
			case <-ctx.Done():
				w.Logger.Debug("tracking worker shutting down", "worker_id", w.ID)
				return
			}

			select {
			case job := <-w.JobChannel:
				w.Logger.Debug("tracking worker processing job", "worker_id", w.ID, "event", job.Event.Name)
				processFunc(job)
			case <-ctx.Done():
				w.Logger.Debug("tracking worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

type EmitterConfig struct {
	Workers   int
	QueueSize int
	Retry     RetryPolicy
	// Policies overrides Retry for specific events.
	Policies map[EventName]RetryPolicy
	// ContentCategory fills events that carry none.
	ContentCategory string
}

// Emitter queues events and delivers them from a small worker pool. Each job
// waits for the client's readiness gate under the retry policy, then sends
// through every channel in order.
type Emitter struct {
	client Client
	dedup  DedupStore
	cfg    EmitterConfig
	logger *slog.Logger

	jobQueue   chan Job
	workerPool chan chan Job
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	pending    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewEmitter(client Client, dedup DedupStore, cfg EmitterConfig, logger *slog.Logger) *Emitter {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	cfg.Retry = cfg.Retry.normalized()
	if dedup == nil {
		dedup = NewMemoryDedupStore(0, 0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Emitter{
		client:     client,
		dedup:      dedup,
		cfg:        cfg,
		logger:     logger,
		jobQueue:   make(chan Job, cfg.QueueSize),
		workerPool: make(chan chan Job, cfg.Workers),
		ctx:        ctx,
		cancel:     cancel,
	}

	for i := 0; i < cfg.Workers; i++ {
		NewWorker(i, e.workerPool, logger).Start(ctx, &e.wg, e.process)
	}
	e.wg.Add(1)
	go e.dispatch()

	logger.Info("tracking emitter started", "workers", cfg.Workers, "queue_size", cfg.QueueSize)
	return e
}

func (e *Emitter) dispatch() {
	defer e.wg.Done()

	for {
		select {
		case job := <-e.jobQueue:
			select {
			case jobChannel := <-e.workerPool:
				select {
				case jobChannel <- job:
				case <-e.ctx.Done():
					e.pending.Done()
					return
				}
			case <-e.ctx.Done():
				e.pending.Done()
				return
			}
		case <-e.ctx.Done():
			return
		}
	}
}

// Emit enqueues ev and returns immediately. A full queue or a closed emitter
// drops the event; nothing here panics into the caller.
func (e *Emitter) Emit(ctx context.Context, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("tracking: emit panicked", "panic", r)
		}
	}()

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		metrics.TrackingDropped(string(ev.Name), "closed")
		e.logger.Debug("tracking: emitter closed, dropping event", "event", ev.Name)
		return
	}

	e.pending.Add(1)
	select {
	case e.jobQueue <- Job{Event: ev, Enqueued: time.Now()}:
	default:
		e.pending.Done()
		metrics.TrackingDropped(string(ev.Name), "queue_full")
		e.logger.Warn("tracking: queue full, dropping event", "event", ev.Name, "queue_capacity", cap(e.jobQueue))
	}
}

func (e *Emitter) process(job Job) {
	defer e.pending.Done()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("tracking: delivery panicked", "panic", r, "event", job.Event.Name)
		}
	}()

	e.deliver(e.ctx, job.Event)
}

func (e *Emitter) policyFor(name EventName) RetryPolicy {
	if p, ok := e.cfg.Policies[name]; ok {
		return p.normalized()
	}
	return e.cfg.Retry
}

func (e *Emitter) deliver(ctx context.Context, ev Event) {
	if ev.ContentCategory == "" {
		ev.ContentCategory = e.cfg.ContentCategory
	}
	ev = ev.withDefaults(time.Now())
	log := e.logger.With("event", ev.Name, "event_id", ev.EventID)

	key := ev.DedupKey()
	if key != "" {
		seen, err := e.dedup.Seen(ctx, key)
		if err != nil {
			log.Warn("tracking: dedup lookup failed, sending anyway", "error", err)
		}
		if seen {
			metrics.TrackingDropped(string(ev.Name), "duplicate")
			log.Debug("tracking: event already reported", "key", key)
			return
		}
	}

	policy := e.policyFor(ev.Name)
	attempt := 0
	err := policy.Do(ctx, func(ctx context.Context) error {
		attempt++
		err := e.client.Ready(ctx)
		if err != nil {
			log.Debug("tracking: client not ready", "attempt", attempt, "max_attempts", policy.MaxAttempts, "error", err)
		}
		return err
	})
	if err != nil {
		metrics.TrackingDropped(string(ev.Name), "not_ready")
		if errors.Is(err, context.Canceled) {
			log.Debug("tracking: delivery cancelled")
			return
		}
		log.Warn("tracking: giving up, client never became ready", "attempts", attempt)
		return
	}

	delivered := false
	for _, ch := range Channels {
		if err := e.client.Send(ctx, ch, ev); err != nil {
			metrics.TrackingDelivery(string(ev.Name), string(ch), "error")
			log.Warn("tracking: channel delivery failed", "channel", ch, "error", err)
			continue
		}
		delivered = true
		metrics.TrackingDelivery(string(ev.Name), string(ch), "success")
	}

	if !delivered || key == "" {
		return
	}
	if err := e.dedup.Mark(ctx, key); err != nil {
		log.Warn("tracking: failed to set dedup flag", "key", key, "error", err)
	}
	log.Info("tracking: event delivered")
}

// Shutdown stops accepting events, waits for queued ones to be delivered,
// then stops the workers. Events still pending when ctx ends are abandoned.
func (e *Emitter) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		e.pending.Wait()
		close(drained)
	}()

	var err error
	select {
	case <-drained:
	case <-ctx.Done():
		err = ctx.Err()
		e.logger.Warn("tracking: shutdown deadline reached, abandoning queued events", "queued", len(e.jobQueue))
	}

	e.cancel()
	e.wg.Wait()
	e.logger.Info("tracking emitter shutdown complete")
	return err
}

// NoopTracker is used when tracking is disabled.
type NoopTracker struct{}

func (NoopTracker) Emit(context.Context, Event) {}

func (NoopTracker) Shutdown(context.Context) error { return nil }
