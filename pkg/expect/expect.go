// Package expect composes assertions from chains of named steps.
//
// A chain is zero or more modifiers followed by one assertion:
//
//	expect.Must([]int{1, 3, 5}, expect.All(), expect.Not(), verify.ToEqual(4))
//
// Each step runs in its own frame of a Context. When the chain fails, the
// frames visited on the failing path, with their annotations, make up the
// failure report, and steps the evaluation never reached are listed as not
// visited.
package expect

import (
	"context"
	"fmt"
	"reflect"
)

// TB is the part of testing.TB used by That.
type TB interface {
	Helper()
	Fatal(args ...any)
}

// Evaluate builds the chain for subject and runs it, recording loc as the
// place the expectation was written.
func Evaluate(loc SourceLoc, subject any, steps ...Step) (Output, error) {
	chain, err := Build(reflect.TypeOf(subject), steps...)
	if err != nil {
		return nil, err
	}
	cx := NewContext(Annotate(subject).String(), loc, chain.Names())
	return chain.Execute(cx, subject), nil
}

func evaluate(loc SourceLoc, subject any, steps []Step) Output {
	out, err := Evaluate(loc, subject, steps...)
	if err != nil {
		panic(fmt.Sprintf("expect: invalid chain at %s: %v", loc, err))
	}
	return out
}

// Must runs the chain and panics with the *Failure if it fails. A chain
// that is still pending returns a *Pending that panics once it resolves to
// a failure.
func Must(subject any, steps ...Step) Output {
	out := evaluate(Caller(1), subject, steps)
	return finalizeOnResolve(out, func(f *Failure) {
		panic(f)
	})
}

// That runs the chain in a test and stops the test with the failure report
// if it fails.
func That(t TB, subject any, steps ...Step) Output {
	t.Helper()
	out := evaluate(Caller(1), subject, steps)
	return finalizeOnResolve(out, func(f *Failure) {
		t.Helper()
		t.Fatal(f.Error())
	})
}

// Try runs the chain and returns its output without acting on a failure.
func Try(subject any, steps ...Step) Output {
	return evaluate(Caller(1), subject, steps)
}

// TryResult runs the chain and waits for any pending layers.
func TryResult(ctx context.Context, subject any, steps ...Step) (*Result, error) {
	return Resolve(ctx, evaluate(Caller(1), subject, steps))
}

func finalizeOnResolve(out Output, report func(*Failure)) Output {
	switch o := out.(type) {
	case *Result:
		if f := o.failure(); f != nil {
			report(f)
		}
		return o
	case *Pending:
		return o.Then(func(res Output) Output {
			return finalizeOnResolve(res, report)
		})
	default:
		o.Finalize()
		return o
	}
}
