package expect

import (
	"context"
	"errors"
	"fmt"
	"reflect"
)

// ErrNothingToWait is returned when a pending output has no wake-up source.
var ErrNothingToWait = errors.New("pending output has nothing to wait on")

// Pending is an output that is not known yet.
//
// It is a small state machine: Poll advances it and reports the output once
// the underlying futures are ready. After that Poll must not be called again.
type Pending struct {
	poll   func() (Output, bool)
	wakers func() []<-chan struct{}
	out    Output
	done   bool
}

func newPending(poll func() (Output, bool), wakers func() []<-chan struct{}) *Pending {
	return &Pending{poll: poll, wakers: wakers}
}

// Status implements Output. A resolved pending reports its output's status,
// which may itself be StatusPending for nested layers.
func (p *Pending) Status() Status {
	if !p.done {
		return StatusPending
	}
	return p.out.Status()
}

// Poll advances the computation without blocking.
func (p *Pending) Poll() (Output, bool) {
	if p.done {
		panic("expect: poll after ready")
	}
	out, ok := p.poll()
	if !ok {
		return nil, false
	}
	p.out, p.done, p.poll = out, true, nil
	return out, true
}

// step polls p, tolerating an already resolved state.
func (p *Pending) step() (Output, bool) {
	if p.done {
		return p.out, true
	}
	return p.Poll()
}

func (p *Pending) waitOn() []<-chan struct{} {
	if p.done || p.wakers == nil {
		return nil
	}
	return p.wakers()
}

// Resolved returns the output if the pending has already resolved.
func (p *Pending) Resolved() (Output, bool) {
	return p.out, p.done
}

// Wait blocks until the pending resolves or ctx is done. Only this layer is
// resolved: the returned output may itself be a *Pending.
func (p *Pending) Wait(ctx context.Context) (Output, error) {
	for {
		if out, ok := p.step(); ok {
			return out, nil
		}
		if err := waitAny(ctx, p.waitOn()); err != nil {
			return nil, err
		}
	}
}

// Then returns a pending whose output is f applied to this one's output.
func (p *Pending) Then(f func(Output) Output) *Pending {
	return newPending(func() (Output, bool) {
		out, ok := p.step()
		if !ok {
			return nil, false
		}
		return f(out), true
	}, p.waitOn)
}

// Invert implements Invertible. The inversion happens when this resolves.
func (p *Pending) Invert(cx *Context) Output {
	return p.Then(func(out Output) Output {
		return out.Invert(cx)
	})
}

// Finalize waits for every pending layer and finalizes the result.
func (p *Pending) Finalize() {
	res, err := Resolve(context.Background(), p)
	if err != nil {
		panic(fmt.Sprintf("expect: %v", err))
	}
	res.Finalize()
}

// Resolve waits through any number of pending layers until a *Result is
// available.
func Resolve(ctx context.Context, out Output) (*Result, error) {
	for {
		switch o := out.(type) {
		case *Result:
			return o, nil
		case *Pending:
			next, err := o.Wait(ctx)
			if err != nil {
				return nil, err
			}
			out = next
		case nil:
			return nil, errors.New("resolve: nil output")
		default:
			return nil, fmt.Errorf("resolve: unsupported output type %T", out)
		}
	}
}

// settle unwraps pending layers that have already resolved.
func settle(out Output) Output {
	for {
		p, ok := out.(*Pending)
		if !ok || !p.done {
			return out
		}
		out = p.out
	}
}

// waitAny blocks until one of chans is ready or ctx is done.
func waitAny(ctx context.Context, chans []<-chan struct{}) error {
	if len(chans) == 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		return ErrNothingToWait
	}
	if len(chans) == 1 {
		select {
		case <-chans[0]:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	cases := make([]reflect.SelectCase, 0, len(chans)+1)
	cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())})
	for _, ch := range chans {
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ch)})
	}
	chosen, _, _ := reflect.Select(cases)
	if chosen == 0 {
		return ctx.Err()
	}
	return nil
}
