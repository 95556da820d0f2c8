package verify

import (
	"fmt"
	"reflect"

	"github.com/cgast/chainexpect/pkg/expect"
)

func castRule[T any](in reflect.Type) error {
	want := reflect.TypeFor[T]()
	numeric := expect.IsNumber(in) && expect.IsNumber(want)
	if !in.AssignableTo(want) && !numeric {
		return fmt.Errorf("predicate takes %s, subject is %s", want, in)
	}
	return nil
}

// ToSatisfy passes when pred returns true for the subject.
func ToSatisfy[T any](pred func(T) bool) expect.Step {
	desc := expect.Annotate(pred)
	return assertion("to_satisfy", expect.Accepts(castRule[T]), func(cx *expect.Context, subject any) expect.Output {
		cx.Annotate("predicate", desc)
		v, err := expect.Cast[T](subject)
		if err != nil {
			return failWith(cx, "cannot apply predicate", err)
		}
		return cx.PassIf(pred(v), "did not satisfy predicate")
	})
}

// ToSatisfyWith passes when check returns nil for the subject. The returned
// error is annotated on failure.
func ToSatisfyWith[T any](check func(T) error) expect.Step {
	desc := expect.Annotate(check)
	return assertion("to_satisfy_with", expect.Accepts(castRule[T]), func(cx *expect.Context, subject any) expect.Output {
		cx.Annotate("predicate", desc)
		v, err := expect.Cast[T](subject)
		if err != nil {
			return failWith(cx, "cannot apply predicate", err)
		}
		if err := check(v); err != nil {
			return failWith(cx, "predicate returned an error", err)
		}
		return cx.Pass()
	})
}

// ToSatisfyAll passes when every check passes. Each check is typically an
// expect.Try chain over the subject; checks after the first failure are not
// run.
func ToSatisfyAll[T any](checks ...func(T) expect.Output) expect.Step {
	return satisfyMerge("to_satisfy_all", expect.MergeAll, checks)
}

// ToSatisfyAny passes when at least one check passes.
func ToSatisfyAny[T any](checks ...func(T) expect.Output) expect.Step {
	return satisfyMerge("to_satisfy_any", expect.MergeAny, checks)
}

func satisfyMerge[T any](name string, strategy expect.Strategy, checks []func(T) expect.Output) expect.Step {
	return assertion(name, expect.Accepts(castRule[T]), func(cx *expect.Context, subject any) expect.Output {
		cx.Annotate("checks", len(checks))
		v, err := expect.Cast[T](subject)
		if err != nil {
			return failWith(cx, "cannot apply checks", err)
		}
		outputs := func(yield func(expect.Output) bool) {
			for _, check := range checks {
				if !yield(check(v)) {
					return
				}
			}
		}
		return adopt(cx, expect.Merge(cx, strategy, outputs))
	})
}

// adopt reports a nested chain's outcome in cx's frame, keeping the nested
// failure report as an annotation.
func adopt(cx *expect.Context, out expect.Output) expect.Output {
	switch o := out.(type) {
	case *expect.Result:
		if o.Context() == cx {
			return o
		}
		if o.Passed() {
			return cx.Pass()
		}
		cx.Annotate("failure", o.Err().Error())
		return cx.Fail("nested assertion failed")
	case *expect.Pending:
		return o.Then(func(res expect.Output) expect.Output {
			return adopt(cx, res)
		})
	}
	return out
}

// ToPanic passes when calling the func() subject panics.
func ToPanic() expect.Step {
	rule := func(in reflect.Type) error {
		if in.Kind() != reflect.Func || in.NumIn() != 0 {
			return fmt.Errorf("%s is not a function without arguments", in)
		}
		return nil
	}
	return assertion("to_panic", expect.Accepts(rule), func(cx *expect.Context, subject any) expect.Output {
		fn := reflect.ValueOf(subject)
		if fn.Kind() != reflect.Func || fn.IsNil() || fn.Type().NumIn() != 0 {
			return cx.Fail("subject is not callable")
		}
		recovered, panicked := call(fn)
		if !panicked {
			return cx.Fail("did not panic")
		}
		cx.Annotate("panic", truncate(fmt.Sprint(recovered), 500))
		return cx.Pass()
	})
}

func call(fn reflect.Value) (recovered any, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			recovered, panicked = r, true
		}
	}()
	fn.Call(nil)
	return nil, false
}

// ToBeTrue passes when the subject is true.
func ToBeTrue() expect.Step {
	return boolean("to_be_true", true)
}

// ToBeFalse passes when the subject is false.
func ToBeFalse() expect.Step {
	return boolean("to_be_false", false)
}

func boolean(name string, want bool) expect.Step {
	return assertion(name, expect.Accepts(castRule[bool]), func(cx *expect.Context, subject any) expect.Output {
		v, err := expect.Cast[bool](subject)
		if err != nil {
			return failWith(cx, "subject is not a boolean", err)
		}
		return cx.PassIf(v == want, fmt.Sprintf("subject is %t", v))
	})
}
