package logging

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

type Sink interface {
	Write(Event) error
	Close(context.Context) error
}

type Config struct {
	BufferSize      int
	MinimumSeverity Severity
	Fields          map[string]any
}

func DefaultConfig() Config {
	return Config{
		BufferSize:      512,
		MinimumSeverity: SeverityInfo,
	}
}

// Router fans events out to its sinks from a single drain goroutine.
// Publish never blocks; events are dropped when the buffer is full.
type Router struct {
	cfg      Config
	queue    chan Event
	sinks    []Sink
	clock    Clock
	fallback *log.Logger
	cancel   context.CancelFunc
	closed   atomic.Bool
	wg       sync.WaitGroup

	eventsTotal  atomic.Uint64
	droppedTotal atomic.Uint64
}

type RouterStats struct {
	EventsTotal  uint64
	DroppedTotal uint64
}

func NewRouter(cfg Config, clock Clock, fallback *log.Logger, sinks ...Sink) *Router {
	if clock == nil {
		clock = SystemClock{}
	}
	if fallback == nil {
		fallback = log.Default()
	}
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = DefaultConfig().BufferSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Router{
		cfg:      cfg,
		queue:    make(chan Event, bufferSize),
		sinks:    sinks,
		clock:    clock,
		fallback: fallback,
		cancel:   cancel,
	}
	r.wg.Add(1)
	go r.drain(ctx)
	return r
}

func (r *Router) Publish(_ context.Context, event Event) {
	if r == nil || r.closed.Load() {
		return
	}
	if event.Severity < r.cfg.MinimumSeverity {
		return
	}
	if event.Time.IsZero() {
		event.Time = r.clock.Now()
	}
	if len(r.cfg.Fields) > 0 {
		if event.Extra == nil {
			event.Extra = make(map[string]any, len(r.cfg.Fields))
		}
		for k, v := range r.cfg.Fields {
			if _, exists := event.Extra[k]; !exists {
				event.Extra[k] = v
			}
		}
	}
	select {
	case r.queue <- event:
		r.eventsTotal.Add(1)
	default:
		r.droppedTotal.Add(1)
	}
}

func (r *Router) drain(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case event := <-r.queue:
					r.write(event)
				default:
					return
				}
			}
		case event := <-r.queue:
			r.write(event)
		}
	}
}

func (r *Router) write(event Event) {
	for _, sink := range r.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Write(event); err != nil {
			r.fallback.Printf("logging: sink write failed: %v", err)
		}
	}
}

func (r *Router) Stats() RouterStats {
	return RouterStats{
		EventsTotal:  r.eventsTotal.Load(),
		DroppedTotal: r.droppedTotal.Load(),
	}
}

func (r *Router) Close(ctx context.Context) error {
	if r == nil || !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	r.cancel()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	var firstErr error
	for _, sink := range r.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
