package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lydakis/blenderbridge/internal/wire"
)

const (
	// DefaultQueueSize bounds both executor queues.
	DefaultQueueSize = 64
	// DefaultTick is how often the embedder's recurring callback drains
	// the task queue when RunTicker stands in for it.
	DefaultTick = 50 * time.Millisecond
)

var (
	ErrQueueFull = errors.New("task queue full")
	ErrStopped   = errors.New("executor stopped")
)

type task struct {
	id  uint64
	run func() *wire.Response
}

type outcome struct {
	id   uint64
	resp *wire.Response
}

// Executor hands work from connection goroutines to the embedder's main
// thread. Connection goroutines submit tasks onto a bounded queue; a
// recurring tick on the main thread drains the queue, runs each task
// serially, and pushes the outcome onto a second bounded queue from
// which a router delivers it back to the waiting submitter. The main
// thread never touches a socket and never blocks on a caller.
type Executor struct {
	log      *slog.Logger
	tasks    chan task
	outcomes chan outcome
	stop     chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	waiters map[uint64]chan *wire.Response
	nextID  uint64
}

// NewExecutor creates an executor with the given queue bound and starts
// its outcome router. Callers must arrange for Drain to run, either from
// their own main loop or via RunTicker.
func NewExecutor(queueSize int, log *slog.Logger) *Executor {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if log == nil {
		log = slog.Default()
	}
	e := &Executor{
		log:      log,
		tasks:    make(chan task, queueSize),
		outcomes: make(chan outcome, queueSize),
		stop:     make(chan struct{}),
		waiters:  make(map[uint64]chan *wire.Response),
	}
	go e.route()
	return e
}

// Done is closed when the executor stops.
func (e *Executor) Done() <-chan struct{} {
	return e.stop
}

// Submit queues work for the next drain and returns the channel its
// outcome will arrive on. It never blocks: a full queue fails with
// ErrQueueFull.
func (e *Executor) Submit(run func() *wire.Response) (<-chan *wire.Response, error) {
	select {
	case <-e.stop:
		return nil, ErrStopped
	default:
	}

	e.mu.Lock()
	e.nextID++
	id := e.nextID
	ch := make(chan *wire.Response, 1)
	e.waiters[id] = ch
	e.mu.Unlock()

	select {
	case e.tasks <- task{id: id, run: run}:
		return ch, nil
	default:
		e.mu.Lock()
		delete(e.waiters, id)
		e.mu.Unlock()
		return nil, ErrQueueFull
	}
}

// Drain runs every queued task serially and queues their outcomes. It
// returns the number of tasks executed. This is the only place tasks
// run, so an embedder calling it from its main thread gets main-thread
// execution for every queued handler.
func (e *Executor) Drain() int {
	n := 0
	for {
		select {
		case t := <-e.tasks:
			resp := e.runTask(t)
			select {
			case e.outcomes <- outcome{id: t.id, resp: resp}:
			case <-e.stop:
				return n
			}
			n++
		default:
			return n
		}
	}
}

func (e *Executor) runTask(t task) (resp *wire.Response) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("task panicked", "panic", r)
			resp = wire.Failure(wire.KindCommand, fmt.Sprintf("internal error: %v", r))
		}
	}()
	return t.run()
}

// RunTicker drains on an interval until the context ends or the
// executor stops. It stands in for an embedder's recurring main-thread
// callback when the process has no UI loop of its own.
func (e *Executor) RunTicker(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultTick
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.Drain()
		case <-ctx.Done():
			return
		case <-e.stop:
			return
		}
	}
}

func (e *Executor) route() {
	for {
		select {
		case out := <-e.outcomes:
			e.mu.Lock()
			ch, ok := e.waiters[out.id]
			delete(e.waiters, out.id)
			e.mu.Unlock()
			if !ok {
				e.log.Warn("discarding outcome with no waiter", "id", out.id)
				continue
			}
			ch <- out.resp
		case <-e.stop:
			return
		}
	}
}

// Stop shuts the executor down. Pending submitters receive nothing; the
// server translates that into a shutdown failure via Done.
func (e *Executor) Stop() {
	e.stopOnce.Do(func() {
		close(e.stop)
		e.mu.Lock()
		e.waiters = make(map[uint64]chan *wire.Response)
		e.mu.Unlock()
	})
}
