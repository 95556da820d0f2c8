package expect

import (
	"fmt"
	"sync"
	"time"
)

// Future is a value that becomes available later.
//
// Poll must not block. Done returns a channel closed once Poll would report
// the value as ready; it is how pending outputs know when to poll again.
type Future interface {
	Poll() (any, bool)
	Done() <-chan struct{}
}

// Promise is a Future resolved explicitly by the producer.
type Promise struct {
	once  sync.Once
	done  chan struct{}
	value any
}

// NewPromise returns an unresolved promise.
func NewPromise() *Promise {
	return &Promise{done: make(chan struct{})}
}

// Ready returns a promise that is already resolved with v.
func Ready(v any) *Promise {
	p := NewPromise()
	p.Resolve(v)
	return p
}

// Resolve sets the value. Only the first call has any effect; it reports
// whether this call resolved the promise.
func (p *Promise) Resolve(v any) bool {
	resolved := false
	p.once.Do(func() {
		p.value = v
		close(p.done)
		resolved = true
	})
	return resolved
}

// Poll implements Future.
func (p *Promise) Poll() (any, bool) {
	select {
	case <-p.done:
		return p.value, true
	default:
		return nil, false
	}
}

// Done implements Future.
func (p *Promise) Done() <-chan struct{} { return p.done }

func (p *Promise) String() string {
	if v, ok := p.Poll(); ok {
		return fmt.Sprintf("Promise(ready: %s)", Annotate(v))
	}
	return "Promise(pending)"
}

// Go runs fn on a new goroutine and returns a future of its result.
func Go[T any](fn func() T) *Promise {
	p := NewPromise()
	go func() {
		p.Resolve(fn())
	}()
	return p
}

// FromChan returns a future of the first value received from ch. A closed
// channel resolves to the zero value of T.
func FromChan[T any](ch <-chan T) *Promise {
	p := NewPromise()
	go func() {
		v := <-ch
		p.Resolve(v)
	}()
	return p
}

// After returns a future that resolves to v once d has elapsed.
func After(d time.Duration, v any) *Promise {
	p := NewPromise()
	time.AfterFunc(d, func() {
		p.Resolve(v)
	})
	return p
}
