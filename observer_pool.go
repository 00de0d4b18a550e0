package xcqrs

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// ObserverPool dispatches BusEvents to observers asynchronously so slow
// observers never block the dispatch path. Events are dropped when the buffer
// is full rather than applying backpressure.
type ObserverPool struct {
	eventCh   chan *BusEvent
	workers   int
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closed    atomic.Bool
	dropped   atomic.Uint64
	processed atomic.Uint64
}

// NewObserverPool starts workers goroutines draining a buffer of bufferSize.
func NewObserverPool(ctx context.Context, workers, bufferSize int) *ObserverPool {
	if workers < 1 {
		workers = 4
	}
	if bufferSize < 1 {
		bufferSize = 1000
	}

	poolCtx, cancel := context.WithCancel(ctx)
	op := &ObserverPool{
		eventCh: make(chan *BusEvent, bufferSize),
		workers: workers,
		ctx:     poolCtx,
		cancel:  cancel,
	}
	for i := 0; i < workers; i++ {
		op.wg.Add(1)
		go op.worker()
	}
	return op
}

// Notify queues an event for asynchronous dispatch. Never blocks.
func (op *ObserverPool) Notify(e BusEvent, observers []Observer) {
	if len(observers) == 0 || op.closed.Load() {
		return
	}
	e.observers = make([]Observer, len(observers))
	copy(e.observers, observers)

	select {
	case op.eventCh <- &e:
	default:
		op.dropped.Add(1)
	}
}

func (op *ObserverPool) worker() {
	defer op.wg.Done()
	for {
		select {
		case <-op.ctx.Done():
			// Drain what is already buffered, then exit.
			for {
				select {
				case e := <-op.eventCh:
					op.dispatchEvent(e)
				default:
					return
				}
			}
		case e := <-op.eventCh:
			op.dispatchEvent(e)
			op.processed.Add(1)
		}
	}
}

func (op *ObserverPool) dispatchEvent(e *BusEvent) {
	if e == nil {
		return
	}
	for _, obs := range e.observers {
		if obs == nil {
			continue
		}
		func() {
			defer func() {
				// An observer panic must not take the pool down.
				_ = recover()
			}()
			obs.OnEvent(*e)
		}()
	}
}

// Close stops the workers and waits up to timeout for them to finish.
func (op *ObserverPool) Close(timeout time.Duration) error {
	if op.closed.Swap(true) {
		return nil
	}
	op.cancel()

	done := make(chan struct{})
	go func() {
		op.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ErrObserverPoolShutdownTimeout
	}
}

// Stats returns current pool statistics.
func (op *ObserverPool) Stats() PoolStats {
	return PoolStats{
		Dropped:      op.dropped.Load(),
		Processed:    op.processed.Load(),
		ActiveEvents: len(op.eventCh),
		Workers:      op.workers,
		BufferSize:   cap(op.eventCh),
	}
}
