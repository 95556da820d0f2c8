package verify

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/cgast/chainexpect/pkg/expect"
)

var equalOptions = []cmp.Option{
	cmp.Exporter(func(reflect.Type) bool { return true }),
}

// Equal reports whether a and b are equal. Numbers of different types are
// equal when their values are; everything else is compared structurally.
func Equal(a, b any) (eq bool) {
	if _, ok := expect.ToFloat(a); ok {
		if _, ok := expect.ToFloat(b); ok {
			c, err := expect.Compare(a, b)
			return err == nil && c == 0
		}
	}
	defer func() {
		if r := recover(); r != nil {
			eq = reflect.DeepEqual(a, b)
		}
	}()
	return cmp.Equal(a, b, equalOptions...)
}

func diff(expected, actual any) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = ""
		}
	}()
	return cmp.Diff(expected, actual, equalOptions...)
}

func composite(v any) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Struct, reflect.Slice, reflect.Array, reflect.Map, reflect.Pointer:
		return true
	}
	return false
}

// ToEqual passes when the subject equals expected. Composite values get a
// diff page on failure.
func ToEqual(expected any) expect.Step {
	desc := expect.Annotate(expected)
	return assertion("to_equal", nil, func(cx *expect.Context, subject any) expect.Output {
		cx.Annotate("expected", desc)
		if Equal(subject, expected) {
			return cx.Pass()
		}
		if composite(expected) && composite(subject) {
			if d := diff(expected, subject); d != "" {
				cx.AddPage("diff", "--- expected\n+++ received\n"+strings.TrimRight(d, "\n"))
			}
		}
		return cx.Fail("values not equal")
	})
}

func ordering(name, relation string, boundary any, ok func(int) bool) expect.Step {
	desc := expect.Annotate(boundary)
	return assertion(name, expect.Accepts(orderedRule), func(cx *expect.Context, subject any) expect.Output {
		cx.Annotate("boundary", desc)
		c, err := expect.Compare(subject, boundary)
		if err != nil {
			return failWith(cx, "values cannot be ordered", err)
		}
		return cx.PassIf(ok(c), fmt.Sprintf("not %s boundary", relation))
	})
}

// ToBeLessThan passes when the subject orders before boundary.
func ToBeLessThan(boundary any) expect.Step {
	return ordering("to_be_less_than", "less than", boundary, func(c int) bool { return c < 0 })
}

// ToBeLessThanOrEqual passes when the subject does not order after boundary.
func ToBeLessThanOrEqual(boundary any) expect.Step {
	return ordering("to_be_less_than_or_equal", "less than or equal to", boundary, func(c int) bool { return c <= 0 })
}

// ToBeGreaterThan passes when the subject orders after boundary.
func ToBeGreaterThan(boundary any) expect.Step {
	return ordering("to_be_greater_than", "greater than", boundary, func(c int) bool { return c > 0 })
}

// ToBeGreaterThanOrEqual passes when the subject does not order before boundary.
func ToBeGreaterThanOrEqual(boundary any) expect.Step {
	return ordering("to_be_greater_than_or_equal", "greater than or equal to", boundary, func(c int) bool { return c >= 0 })
}

// ToEqualApprox passes when the subject is within delta of expected.
func ToEqualApprox(expected, delta float64) expect.Step {
	rule := func(in reflect.Type) error {
		switch in.Kind() {
		case reflect.Float32, reflect.Float64, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return nil
		}
		return fmt.Errorf("%s is not a number", in)
	}
	return assertion("to_equal_approx", expect.Accepts(rule), func(cx *expect.Context, subject any) expect.Output {
		cx.Annotate("expected", fmt.Sprintf("%v ± %v", expected, delta))
		actual, ok := expect.ToFloat(subject)
		if !ok {
			return cx.Fail("subject is not a number")
		}
		if math.IsNaN(actual) {
			return cx.Fail("subject is NaN")
		}
		cx.Annotate("difference", math.Abs(actual-expected))
		return cx.PassIf(math.Abs(actual-expected) <= delta, "not within tolerance")
	})
}

// ToBeOneOf passes when the subject equals any of items.
func ToBeOneOf(items ...any) expect.Step {
	desc := listOf(items)
	return assertion("to_be_one_of", nil, func(cx *expect.Context, subject any) expect.Output {
		cx.Annotate("expected", "one of "+desc)
		for _, item := range items {
			if Equal(subject, item) {
				return cx.Pass()
			}
		}
		return cx.Fail("not one of the expected values")
	})
}
