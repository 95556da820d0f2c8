package expect

import "errors"

// ErrAssertionFailed is the sentinel every *Failure unwraps to.
var ErrAssertionFailed = errors.New("assertion failed")

// Status is the state of an output.
type Status int

const (
	StatusPending Status = iota
	StatusPass
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusFail:
		return "fail"
	default:
		return "pending"
	}
}

// Invertible outputs can swap pass and fail.
type Invertible interface {
	// Invert swaps the outcome. cx is the context at the inversion point; the
	// inverted output carries it, with the inner frames recovered into it.
	Invert(cx *Context) Output
}

// Finalizable outputs can turn a failure into a panic.
type Finalizable interface {
	Finalize()
}

// Output is what an assertion chain produces.
type Output interface {
	Invertible
	Finalizable
	Status() Status
}

// Result is the synchronous output: a pass or a failure with its context.
type Result struct {
	cx      *Context
	message string
	failed  bool
}

// Pass creates a passing result.
func Pass(cx *Context) *Result {
	return &Result{cx: cx}
}

// Fail creates a failing result with a reason.
func Fail(cx *Context, message string) *Result {
	return &Result{cx: cx, message: message, failed: true}
}

// Status implements Output.
func (r *Result) Status() Status {
	if r.failed {
		return StatusFail
	}
	return StatusPass
}

// Passed reports whether the result is a pass.
func (r *Result) Passed() bool { return !r.failed }

// Message returns the failure reason, empty on pass.
func (r *Result) Message() string { return r.message }

// Context returns the context the result was created with.
func (r *Result) Context() *Context { return r.cx }

// Err returns nil on pass and a *Failure otherwise.
func (r *Result) Err() error {
	if f := r.failure(); f != nil {
		return f
	}
	return nil
}

func (r *Result) failure() *Failure {
	if !r.failed {
		return nil
	}
	return &Failure{cx: r.cx, message: r.message}
}

// Invert implements Invertible.
func (r *Result) Invert(cx *Context) Output {
	inverted := &Result{cx: cx.Fork()}
	inverted.cx.Recover(r.cx)
	if !r.failed {
		inverted.failed = true
		inverted.message = "expected a failure, received a success"
	}
	return inverted
}

// Finalize panics with the *Failure if the result failed.
func (r *Result) Finalize() {
	if f := r.failure(); f != nil {
		panic(f)
	}
}

// Failure is the error describing a failed chain.
type Failure struct {
	cx      *Context
	message string
}

func (f *Failure) Error() string {
	return DefaultFormatter.Format(f)
}

func (f *Failure) Unwrap() error { return ErrAssertionFailed }

// Message returns the reason reported by the failing step.
func (f *Failure) Message() string { return f.message }

// Context returns the context at the point of failure.
func (f *Failure) Context() *Context { return f.cx }
