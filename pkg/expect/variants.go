package expect

import "reflect"

// ToBeSomeAnd continues with the value of an option-like subject and fails
// when it is absent.
func ToBeSomeAnd() Step {
	return modifier("to_be_some_and", OptionElem, func(cx *Context, subject any, next Assertion) Output {
		value, some, err := Unoption(subject)
		if err != nil {
			return failWith(cx, "subject is not an option", err)
		}
		if !some {
			return cx.Fail("subject is None")
		}
		return next.Execute(cx, value)
	})
}

// ToBeOkAnd continues with the value of a successful Outcome.
func ToBeOkAnd() Step {
	return modifier("to_be_ok_and", OutcomeElem, func(cx *Context, subject any, next Assertion) Output {
		value, failure, err := Unresult(subject)
		if err != nil {
			return failWith(cx, "subject is not an outcome", err)
		}
		if failure != nil {
			cx.Annotate("error", failure)
			return cx.Fail("subject is Err")
		}
		return next.Execute(cx, value)
	})
}

// ToBeErrAnd continues with the error of a failed Outcome.
func ToBeErrAnd() Step {
	rule := func(in reflect.Type) (reflect.Type, error) {
		if _, err := OutcomeElem(in); err != nil {
			return nil, err
		}
		return errorType, nil
	}
	return modifier("to_be_err_and", rule, func(cx *Context, subject any, next Assertion) Output {
		value, failure, err := Unresult(subject)
		if err != nil {
			return failWith(cx, "subject is not an outcome", err)
		}
		if failure == nil {
			cx.Annotate("value", Annotate(value))
			return cx.Fail("subject is Ok")
		}
		return next.Execute(cx, failure)
	})
}
