package expect

import (
	"errors"
	"fmt"
	"math"
	"reflect"
)

// Assertion evaluates a subject within a context.
//
// Assertions in a chain may be executed many times, once per element under
// all and any, so implementations must not keep per-call state.
type Assertion interface {
	Execute(cx *Context, subject any) Output
}

// AssertionFunc adapts a function to Assertion.
type AssertionFunc func(cx *Context, subject any) Output

// Execute implements Assertion.
func (f AssertionFunc) Execute(cx *Context, subject any) Output { return f(cx, subject) }

// Modifier wraps the next assertion in the chain.
type Modifier interface {
	Apply(next Assertion) Assertion
}

// ModifierFunc adapts a function to Modifier.
type ModifierFunc func(next Assertion) Assertion

// Apply implements Modifier.
func (f ModifierFunc) Apply(next Assertion) Assertion { return f(next) }

// TypeRule maps the type a step receives to the type it passes on. It
// returns an error when the step cannot accept in. A nil or interface type
// means the type is only known at run time.
type TypeRule func(in reflect.Type) (reflect.Type, error)

// StepKind distinguishes modifiers from terminal assertions.
type StepKind int

const (
	StepModifier StepKind = iota
	StepAssertion
)

func (k StepKind) String() string {
	if k == StepAssertion {
		return "assertion"
	}
	return "modifier"
}

// Step is one named stage of a chain.
type Step struct {
	name      string
	kind      StepKind
	rule      TypeRule
	modifier  Modifier
	assertion Assertion
}

// NewModifier creates a modifier step. A nil rule accepts anything and
// produces a dynamic type.
func NewModifier(name string, rule TypeRule, m Modifier) Step {
	return Step{name: name, kind: StepModifier, rule: rule, modifier: m}
}

// NewAssertion creates a terminal assertion step. A nil rule accepts anything.
func NewAssertion(name string, rule TypeRule, a Assertion) Step {
	return Step{name: name, kind: StepAssertion, rule: rule, assertion: a}
}

// As renames a step. The new name is what appears in failure output.
func As(name string, s Step) Step {
	s.name = name
	return s
}

// Name returns the step's name.
func (s Step) Name() string { return s.name }

// Kind returns whether the step is a modifier or an assertion.
func (s Step) Kind() StepKind { return s.kind }

// Chain is a built, type-checked sequence of steps.
type Chain struct {
	names []string
	root  Assertion
}

// ErrEmptyChain is returned by Build when no steps are given.
var ErrEmptyChain = errors.New("chain has no steps")

// Build checks that steps form a valid chain for a subject of the given type
// and composes them. A nil subject type is treated as dynamic.
func Build(subject reflect.Type, steps ...Step) (*Chain, error) {
	if len(steps) == 0 {
		return nil, ErrEmptyChain
	}

	t := subject
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.name
		last := i == len(steps)-1
		switch {
		case last && s.kind != StepAssertion:
			return nil, fmt.Errorf("step %d (%s): chain must end with an assertion", i+1, s.name)
		case !last && s.kind != StepModifier:
			return nil, fmt.Errorf("step %d (%s): assertion must be the last step", i+1, s.name)
		case s.kind == StepModifier && s.modifier == nil:
			return nil, fmt.Errorf("step %d (%s): modifier is nil", i+1, s.name)
		case s.kind == StepAssertion && s.assertion == nil:
			return nil, fmt.Errorf("step %d (%s): assertion is nil", i+1, s.name)
		}

		if s.rule == nil {
			t = nil
			continue
		}
		next, err := s.rule(t)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, s.name, err)
		}
		t = next
	}

	var next Assertion = framed{inner: steps[len(steps)-1].assertion}
	for i := len(steps) - 2; i >= 0; i-- {
		next = framed{inner: steps[i].modifier.Apply(next)}
	}
	return &Chain{names: names, root: next}, nil
}

// Names returns the step names in execution order.
func (c *Chain) Names() []string {
	return append([]string(nil), c.names...)
}

// Execute runs the chain. cx must be a root context seeded with Names.
func (c *Chain) Execute(cx *Context, subject any) Output {
	return c.root.Execute(cx, subject)
}

// framed advances the context into a step's own frame before running it.
type framed struct {
	inner Assertion
}

func (f framed) Execute(cx *Context, subject any) Output {
	cx = cx.Next()
	cx.Annotate("received", Annotate(subject))
	return f.inner.Execute(cx, subject)
}

// IsDynamic reports whether t is only known at run time.
func IsDynamic(t reflect.Type) bool {
	return t == nil || t.Kind() == reflect.Interface
}

// Identity is the rule for steps that pass their subject through.
func Identity(in reflect.Type) (reflect.Type, error) {
	return in, nil
}

// Produces returns a rule that accepts anything and yields out.
func Produces(out reflect.Type) TypeRule {
	return func(reflect.Type) (reflect.Type, error) {
		return out, nil
	}
}

// Accepts returns a rule for terminal assertions. check is only consulted
// for statically known types.
func Accepts(check func(in reflect.Type) error) TypeRule {
	return func(in reflect.Type) (reflect.Type, error) {
		if IsDynamic(in) {
			return nil, nil
		}
		if err := check(in); err != nil {
			return nil, err
		}
		return nil, nil
	}
}

// Cast converts a subject to T, reporting a descriptive error on mismatch.
func Cast[T any](subject any) (T, error) {
	if v, ok := subject.(T); ok {
		return v, nil
	}
	var zero T
	want := reflect.TypeFor[T]()
	if subject == nil {
		switch want.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
			return zero, nil
		}
		return zero, fmt.Errorf("expected %s, received nil", want)
	}
	rv := reflect.ValueOf(subject)
	if isNumber(rv.Kind()) && isNumber(want.Kind()) && rv.Type().ConvertibleTo(want) {
		converted := rv.Convert(want)
		// Only lossless conversions, so 3.5 never becomes 3. NaN survives
		// float conversions but never compares equal.
		nan := isFloat(rv.Kind()) && isFloat(want.Kind()) && math.IsNaN(rv.Float())
		if nan || converted.Convert(rv.Type()).Interface() == subject {
			return converted.Interface().(T), nil
		}
	}
	return zero, fmt.Errorf("expected %s, received %T", want, subject)
}
