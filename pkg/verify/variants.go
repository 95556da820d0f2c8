package verify

import (
	"reflect"

	"github.com/cgast/chainexpect/pkg/expect"
)

func optionRule(in reflect.Type) error {
	_, err := expect.OptionElem(in)
	return err
}

func outcomeRule(in reflect.Type) error {
	_, err := expect.OutcomeElem(in)
	return err
}

// ToBeSome passes when an option-like subject holds a value.
func ToBeSome() expect.Step {
	return assertion("to_be_some", expect.Accepts(optionRule), func(cx *expect.Context, subject any) expect.Output {
		_, some, err := expect.Unoption(subject)
		if err != nil {
			return failWith(cx, "subject is not an option", err)
		}
		return cx.PassIf(some, "subject is None")
	})
}

// ToBeNone passes when an option-like subject is empty.
func ToBeNone() expect.Step {
	return assertion("to_be_none", expect.Accepts(optionRule), func(cx *expect.Context, subject any) expect.Output {
		value, some, err := expect.Unoption(subject)
		if err != nil {
			return failWith(cx, "subject is not an option", err)
		}
		if some {
			cx.Annotate("value", expect.Annotate(value))
			return cx.Fail("subject is Some")
		}
		return cx.Pass()
	})
}

// ToBeOk passes when an Outcome subject carries no error.
func ToBeOk() expect.Step {
	return assertion("to_be_ok", expect.Accepts(outcomeRule), func(cx *expect.Context, subject any) expect.Output {
		_, failure, err := expect.Unresult(subject)
		if err != nil {
			return failWith(cx, "subject is not an outcome", err)
		}
		if failure != nil {
			return failWith(cx, "subject is Err", failure)
		}
		return cx.Pass()
	})
}

// ToBeErr passes when an Outcome subject carries an error.
func ToBeErr() expect.Step {
	return assertion("to_be_err", expect.Accepts(outcomeRule), func(cx *expect.Context, subject any) expect.Output {
		value, failure, err := expect.Unresult(subject)
		if err != nil {
			return failWith(cx, "subject is not an outcome", err)
		}
		if failure == nil {
			cx.Annotate("value", expect.Annotate(value))
			return cx.Fail("subject is Ok")
		}
		return cx.Pass()
	})
}
