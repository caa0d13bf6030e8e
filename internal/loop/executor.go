package loop

import (
	"sync"

	"github.com/eapache/queue"
)

// Executor runs submitted tasks one at a time, in submission order, on a
// single dedicated goroutine. It stands in for the native event loop's
// thread: every operation on a handle goes through one Executor, and a
// continuation that suspended off-loop must be re-submitted here before
// touching the handle again.
type Executor struct {
	mu     sync.Mutex
	cond   *sync.Cond
	tasks  *queue.Queue
	closed bool
	done   chan struct{}
}

func NewExecutor() *Executor {
	ex := &Executor{
		tasks: queue.New(),
		done:  make(chan struct{}),
	}
	ex.cond = sync.NewCond(&ex.mu)
	go ex.run()
	return ex
}

// Submit enqueues fn for execution on the loop goroutine. Submitting to a
// closed executor is a no-op.
func (ex *Executor) Submit(fn func()) {
	ex.mu.Lock()
	if ex.closed {
		ex.mu.Unlock()
		return
	}
	ex.tasks.Add(fn)
	ex.mu.Unlock()
	ex.cond.Signal()
}

func (ex *Executor) run() {
	defer close(ex.done)
	for {
		ex.mu.Lock()
		for ex.tasks.Length() == 0 && !ex.closed {
			ex.cond.Wait()
		}
		if ex.tasks.Length() == 0 {
			ex.mu.Unlock()
			return
		}
		fn := ex.tasks.Remove().(func())
		ex.mu.Unlock()
		fn()
	}
}

// Close drains already-queued tasks, stops the loop goroutine and waits
// for it to exit.
func (ex *Executor) Close() {
	ex.mu.Lock()
	if ex.closed {
		ex.mu.Unlock()
		<-ex.done
		return
	}
	ex.closed = true
	ex.mu.Unlock()
	ex.cond.Signal()
	<-ex.done
}
