package utils

import (
	"context"
	"sync"

	goutils "go.viam.com/utils"
)

// StoppableWorkers is a group of goroutines sharing one context that is cancelled by Stop.
// Workers may be added at any time until Stop is called.
type StoppableWorkers struct {
	mu     sync.Mutex
	idle   *sync.Cond
	active int

	cancelCtx  context.Context
	cancelFunc func()
}

// NewStoppableWorkers returns an empty group whose context derives from parent.
func NewStoppableWorkers(parent context.Context) *StoppableWorkers {
	cancelCtx, cancelFunc := context.WithCancel(parent)
	sw := &StoppableWorkers{cancelCtx: cancelCtx, cancelFunc: cancelFunc}
	sw.idle = sync.NewCond(&sw.mu)
	return sw
}

// AddWorkers starts each function in its own goroutine. Panics are captured and logged. It
// returns false, starting nothing, once the group has been stopped.
func (sw *StoppableWorkers) AddWorkers(funcs ...func(context.Context)) bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.cancelCtx.Err() != nil {
		return false
	}

	sw.active += len(funcs)
	for _, f := range funcs {
		goutils.PanicCapturingGo(func() {
			defer sw.done()
			f(sw.cancelCtx)
		})
	}
	return true
}

func (sw *StoppableWorkers) done() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.active--
	if sw.active == 0 {
		sw.idle.Broadcast()
	}
}

// Wait blocks until every worker started so far has returned. Unlike Stop it does not cancel them.
func (sw *StoppableWorkers) Wait() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	for sw.active > 0 {
		sw.idle.Wait()
	}
}

// Stop cancels the shared context and waits for every worker to return.
func (sw *StoppableWorkers) Stop() {
	sw.cancelFunc()
	sw.Wait()
}

// Context is the context handed to every worker.
func (sw *StoppableWorkers) Context() context.Context {
	return sw.cancelCtx
}
