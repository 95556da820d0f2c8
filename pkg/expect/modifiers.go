package expect

import (
	"fmt"
	"io"
	"iter"
	"reflect"
	"unicode/utf8"
)

var (
	intType    = reflect.TypeFor[int]()
	stringType = reflect.TypeFor[string]()
	bytesType  = reflect.TypeFor[[]byte]()
	runesType  = reflect.TypeFor[[]rune]()
	pairsType  = reflect.TypeFor[iter.Seq[Pair]]()
	readerType = reflect.TypeFor[io.Reader]()
)

func modifier(name string, rule TypeRule, run func(cx *Context, subject any, next Assertion) Output) Step {
	return NewModifier(name, rule, ModifierFunc(func(next Assertion) Assertion {
		return AssertionFunc(func(cx *Context, subject any) Output {
			return run(cx, subject, next)
		})
	}))
}

// failWith annotates err and fails with message.
func failWith(cx *Context, message string, err error) *Result {
	cx.Annotate("error", err)
	return cx.Fail(message)
}

// Not inverts the rest of the chain.
func Not() Step {
	return modifier("not", Identity, func(cx *Context, subject any, next Assertion) Output {
		return next.Execute(cx, subject).Invert(cx)
	})
}

// Map applies f to the subject.
func Map[T, U any](f func(T) U) Step {
	fn := Annotate(f)
	rule := func(in reflect.Type) (reflect.Type, error) {
		want := reflect.TypeFor[T]()
		if IsDynamic(in) {
			return reflect.TypeFor[U](), nil
		}
		numeric := isNumber(in.Kind()) && isNumber(want.Kind())
		if !in.AssignableTo(want) && !numeric {
			return nil, fmt.Errorf("function takes %s, subject is %s", want, in)
		}
		return reflect.TypeFor[U](), nil
	}
	return modifier("map", rule, func(cx *Context, subject any, next Assertion) Output {
		cx.Annotate("function", fn)
		in, err := Cast[T](subject)
		if err != nil {
			return failWith(cx, "cannot apply function", err)
		}
		return next.Execute(cx, f(in))
	})
}

// Count replaces an iterable subject with its number of elements.
func Count() Step {
	return modifier("count", iterableRule(func(reflect.Type) reflect.Type { return intType }),
		func(cx *Context, subject any, next Assertion) Output {
			seq, err := Iterate(subject)
			if err != nil {
				return failWith(cx, "subject is not iterable", err)
			}
			n := 0
			for range seq {
				n++
			}
			return next.Execute(cx, n)
		})
}

// Nth selects the element at index i.
func Nth(i int) Step {
	return modifier("nth", iterableRule(func(elem reflect.Type) reflect.Type { return elem }),
		func(cx *Context, subject any, next Assertion) Output {
			cx.Annotate("index", i)
			seq, err := Iterate(subject)
			if err != nil {
				return failWith(cx, "subject is not iterable", err)
			}
			if i < 0 {
				return cx.Fail("index out of bounds")
			}
			idx := 0
			for item := range seq {
				if idx == i {
					return next.Execute(cx, item)
				}
				idx++
			}
			return cx.Fail("index out of bounds")
		})
}

// All passes when the rest of the chain passes for every element.
func All() Step {
	return fanOut("all", MergeAll)
}

// Any passes when the rest of the chain passes for at least one element.
func Any() Step {
	return fanOut("any", MergeAny)
}

func fanOut(name string, strategy Strategy) Step {
	return modifier(name, iterableRule(func(elem reflect.Type) reflect.Type { return elem }),
		func(cx *Context, subject any, next Assertion) Output {
			seq, err := Iterate(subject)
			if err != nil {
				return failWith(cx, "subject is not iterable", err)
			}
			outputs := func(yield func(Output) bool) {
				idx := 0
				for item := range seq {
					branch := cx.Fork()
					branch.Annotate("index", idx)
					idx++
					if !yield(next.Execute(branch, item)) {
						return
					}
				}
			}
			return Merge(cx, strategy, outputs)
		})
}

// WhenCalled calls a function subject with no arguments and continues with
// its result. A (T, error) result becomes an Outcome.
func WhenCalled() Step {
	rule := func(in reflect.Type) (reflect.Type, error) {
		if IsDynamic(in) {
			return nil, nil
		}
		if in.Kind() != reflect.Func || in.NumIn() != 0 {
			return nil, fmt.Errorf("%s is not a function without arguments", in)
		}
		switch {
		case in.NumOut() == 1:
			return in.Out(0), nil
		case in.NumOut() == 2 && in.Out(1) == errorType:
			return reflect.TypeFor[Outcome[any]](), nil
		case in.NumOut() == 0:
			return nil, nil
		}
		return nil, fmt.Errorf("%s returns too many values", in)
	}
	return modifier("when_called", rule, func(cx *Context, subject any, next Assertion) Output {
		fn := reflect.ValueOf(subject)
		if fn.Kind() != reflect.Func || fn.IsNil() || fn.Type().NumIn() != 0 {
			return cx.Fail("subject is not callable")
		}
		results := fn.Call(nil)
		var out any
		switch len(results) {
		case 0:
		case 1:
			out = results[0].Interface()
		default:
			err, _ := results[len(results)-1].Interface().(error)
			out = Outcome[any]{Value: results[0].Interface(), Err: err}
		}
		return next.Execute(cx, out)
	})
}

// AsString continues with the display text of the subject.
func AsString() Step {
	return modifier("as_string", Produces(stringType), func(cx *Context, subject any, next Assertion) Output {
		if s, ok := subject.(string); ok {
			return next.Execute(cx, s)
		}
		return next.Execute(cx, fmt.Sprint(subject))
	})
}

// AsUTF8 decodes a byte subject as UTF-8 text.
func AsUTF8() Step {
	rule := func(in reflect.Type) (reflect.Type, error) {
		if IsDynamic(in) || in.Kind() == reflect.String {
			return stringType, nil
		}
		if (in.Kind() == reflect.Slice || in.Kind() == reflect.Array) && in.Elem().Kind() == reflect.Uint8 {
			return stringType, nil
		}
		return nil, fmt.Errorf("%s is not a byte sequence", in)
	}
	return modifier("as_utf8", rule, func(cx *Context, subject any, next Assertion) Output {
		b, err := toBytes(subject)
		if err != nil {
			return failWith(cx, "subject is not a byte sequence", err)
		}
		if !utf8.Valid(b) {
			return failWith(cx, "invalid utf8", fmt.Errorf("invalid utf-8 sequence at byte %d", invalidAt(b)))
		}
		return next.Execute(cx, string(b))
	})
}

func toBytes(subject any) ([]byte, error) {
	switch s := subject.(type) {
	case []byte:
		return s, nil
	case string:
		return []byte(s), nil
	}
	v := reflect.ValueOf(subject)
	if (v.Kind() == reflect.Slice || v.Kind() == reflect.Array) && v.Type().Elem().Kind() == reflect.Uint8 {
		b := make([]byte, v.Len())
		for i := range b {
			b[i] = byte(v.Index(i).Uint())
		}
		return b, nil
	}
	return nil, fmt.Errorf("%T is not a byte sequence", subject)
}

func invalidAt(b []byte) int {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return len(b)
}

// Chars continues with the runes of a string subject.
func Chars() Step {
	rule := func(in reflect.Type) (reflect.Type, error) {
		if !IsDynamic(in) && in.Kind() != reflect.String {
			return nil, fmt.Errorf("%s is not a string", in)
		}
		return runesType, nil
	}
	return modifier("chars", rule, func(cx *Context, subject any, next Assertion) Output {
		v := reflect.ValueOf(subject)
		if v.Kind() != reflect.String {
			return cx.Fail("subject is not a string")
		}
		return next.Execute(cx, []rune(v.String()))
	})
}

// Pair is an element of a zipped sequence.
type Pair struct {
	Left  any
	Right any
}

func (p Pair) String() string {
	return fmt.Sprintf("(%s, %s)", Annotate(p.Left), Annotate(p.Right))
}

// Zip pairs the subject's elements with other's, stopping at the shorter.
func Zip(other any) Step {
	rule := func(in reflect.Type) (reflect.Type, error) {
		if _, err := ElemType(in); err != nil {
			return nil, err
		}
		if _, err := Iterate(other); err != nil {
			return nil, err
		}
		return pairsType, nil
	}
	desc := Annotate(other)
	return modifier("zip", rule, func(cx *Context, subject any, next Assertion) Output {
		cx.Annotate("other", desc)
		left, err := Iterate(subject)
		if err != nil {
			return failWith(cx, "subject is not iterable", err)
		}
		right, err := Iterate(other)
		if err != nil {
			return failWith(cx, "other is not iterable", err)
		}
		pairs := iter.Seq[Pair](func(yield func(Pair) bool) {
			nextRight, stop := iter.Pull(right)
			defer stop()
			for l := range left {
				r, ok := nextRight()
				if !ok || !yield(Pair{Left: l, Right: r}) {
					return
				}
			}
		})
		return next.Execute(cx, pairs)
	})
}

// WhenRead reads an io.Reader subject to the end and continues with the bytes.
func WhenRead() Step {
	rule := func(in reflect.Type) (reflect.Type, error) {
		if !IsDynamic(in) && !in.Implements(readerType) {
			return nil, fmt.Errorf("%s is not an io.Reader", in)
		}
		return bytesType, nil
	}
	return modifier("when_read", rule, func(cx *Context, subject any, next Assertion) Output {
		r, ok := subject.(io.Reader)
		if !ok {
			return cx.Fail("subject is not readable")
		}
		b, err := io.ReadAll(r)
		if err != nil {
			return failWith(cx, "read failed", err)
		}
		return next.Execute(cx, b)
	})
}
