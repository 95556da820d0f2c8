// Package verify is the catalog of terminal assertions for expect chains.
package verify

import (
	"fmt"
	"reflect"

	"github.com/cgast/chainexpect/pkg/expect"
)

// CheckFunc evaluates a subject within the frame of an assertion step.
type CheckFunc func(cx *expect.Context, subject any) expect.Output

func assertion(name string, rule expect.TypeRule, check CheckFunc) expect.Step {
	return expect.NewAssertion(name, rule, expect.AssertionFunc(check))
}

// Custom wraps a check function as a terminal step.
func Custom(name string, check CheckFunc) expect.Step {
	return assertion(name, nil, check)
}

func failWith(cx *expect.Context, message string, err error) expect.Output {
	cx.Annotate("error", err)
	return cx.Fail(message)
}

// asString reads string-like subjects: strings, named string types and
// byte slices.
func asString(subject any) (string, bool) {
	switch s := subject.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	}
	v := reflect.ValueOf(subject)
	if v.Kind() == reflect.String {
		return v.String(), true
	}
	return "", false
}

func stringRule(in reflect.Type) error {
	if in.Kind() == reflect.String {
		return nil
	}
	if in.Kind() == reflect.Slice && in.Elem().Kind() == reflect.Uint8 {
		return nil
	}
	return fmt.Errorf("%s is not a string", in)
}

func iterableRule(in reflect.Type) error {
	_, err := expect.ElemType(in)
	return err
}

func orderedRule(in reflect.Type) error {
	if !expect.IsOrdered(in) {
		return fmt.Errorf("%s is not ordered", in)
	}
	return nil
}

func listOf(items []any) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = expect.Annotate(item).String()
	}
	return fmt.Sprintf("%v", parts)
}

// truncate limits a string to maxLen bytes.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
