package expect

import (
	"fmt"
	"reflect"
)

var futureType = reflect.TypeFor[Future]()

func futureRule(in reflect.Type) (reflect.Type, error) {
	if !IsDynamic(in) && !in.Implements(futureType) {
		return nil, fmt.Errorf("%s is not a future", in)
	}
	return nil, nil
}

// WhenReady waits for a future subject and continues with its value. The
// chain's output is a *Pending until the future resolves.
func WhenReady() Step {
	return modifier("when_ready", futureRule, func(cx *Context, subject any, next Assertion) Output {
		fut, ok := subject.(Future)
		if !ok {
			return cx.Fail("subject is not a future")
		}
		return newPending(func() (Output, bool) {
			v, ready := fut.Poll()
			if !ready {
				return nil, false
			}
			return next.Execute(cx, v), true
		}, func() []<-chan struct{} {
			return []<-chan struct{}{fut.Done()}
		})
	})
}

type completionOrder int

const (
	completesBefore completionOrder = iota
	completesAfter
)

// WhenReadyBefore passes the subject's value on if it resolves no later
// than other, and fails if other resolves first.
func WhenReadyBefore(other Future) Step {
	return raceStep("when_ready_before", other, completesBefore)
}

// WhenReadyAfter passes the subject's value on if it resolves no earlier
// than other, and fails if it resolves first.
func WhenReadyAfter(other Future) Step {
	return raceStep("when_ready_after", other, completesAfter)
}

func raceStep(name string, other Future, order completionOrder) Step {
	return modifier(name, futureRule, func(cx *Context, subject any, next Assertion) Output {
		fut, ok := subject.(Future)
		if !ok {
			return cx.Fail("subject is not a future")
		}
		cx.Annotate("other", Annotate(other))

		otherDone := false
		poll := func() (Output, bool) {
			// other is never polled again once it has resolved.
			if !otherDone {
				_, otherDone = other.Poll()
			}
			v, ready := fut.Poll()

			switch {
			case !ready && !otherDone:
				return nil, false
			case order == completesBefore && ready:
				return next.Execute(cx, v), true
			case order == completesBefore:
				return cx.Fail("did not complete before"), true
			case !otherDone:
				return cx.Fail("completed before"), true
			case ready:
				return next.Execute(cx, v), true
			default:
				return nil, false
			}
		}
		wakers := func() []<-chan struct{} {
			if otherDone {
				return []<-chan struct{}{fut.Done()}
			}
			return []<-chan struct{}{fut.Done(), other.Done()}
		}
		return newPending(poll, wakers)
	})
}
