package verify

import (
	"reflect"

	"github.com/cgast/chainexpect/pkg/expect"
)

// ToContain passes when an iterable subject has an element equal to item.
func ToContain(item any) expect.Step {
	desc := expect.Annotate(item)
	return assertion("to_contain", expect.Accepts(iterableRule), func(cx *expect.Context, subject any) expect.Output {
		cx.Annotate("expected", desc)
		seq, err := expect.Iterate(subject)
		if err != nil {
			return failWith(cx, "subject is not iterable", err)
		}
		for el := range seq {
			if Equal(el, item) {
				return cx.Pass()
			}
		}
		return cx.Fail("item not found")
	})
}

// ToContainExactly passes when an iterable subject holds the same elements
// as items, in any order, counting duplicates.
func ToContainExactly(items ...any) expect.Step {
	desc := listOf(items)
	return assertion("to_contain_exactly", expect.Accepts(iterableRule), func(cx *expect.Context, subject any) expect.Output {
		cx.Annotate("expected", desc)
		seq, err := expect.Iterate(subject)
		if err != nil {
			return failWith(cx, "subject is not iterable", err)
		}

		matched := make([]bool, len(items))
		var unexpected []any
	elements:
		for el := range seq {
			for i, item := range items {
				if !matched[i] && Equal(el, item) {
					matched[i] = true
					continue elements
				}
			}
			unexpected = append(unexpected, el)
		}

		var missing []any
		for i, ok := range matched {
			if !ok {
				missing = append(missing, items[i])
			}
		}
		if len(missing) == 0 && len(unexpected) == 0 {
			return cx.Pass()
		}
		if len(missing) > 0 {
			cx.Annotate("missing", listOf(missing))
		}
		if len(unexpected) > 0 {
			cx.Annotate("unexpected", listOf(unexpected))
		}
		return cx.Fail("elements differ")
	})
}

// ToBeEmpty passes when an iterable subject has no elements. nil counts as
// empty.
func ToBeEmpty() expect.Step {
	return assertion("to_be_empty", expect.Accepts(iterableRule), func(cx *expect.Context, subject any) expect.Output {
		if subject == nil {
			return cx.Pass()
		}
		seq, err := expect.Iterate(subject)
		if err != nil {
			return failWith(cx, "subject is not iterable", err)
		}
		for el := range seq {
			cx.Annotate("first", expect.Annotate(el))
			return cx.Fail("subject is not empty")
		}
		return cx.Pass()
	})
}

// ToBeNil passes when the subject is nil or a nil pointer, slice, map,
// channel, function or interface.
func ToBeNil() expect.Step {
	return assertion("to_be_nil", nil, func(cx *expect.Context, subject any) expect.Output {
		return cx.PassIf(isNil(subject), "subject is not nil")
	})
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func, reflect.Interface, reflect.UnsafePointer:
		return rv.IsNil()
	}
	return false
}
