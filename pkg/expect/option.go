package expect

import (
	"errors"
	"fmt"
	"reflect"
)

// Option is a value that may be absent.
type Option[T any] struct {
	value T
	ok    bool
}

// Some returns an option holding v.
func Some[T any](v T) Option[T] { return Option[T]{value: v, ok: true} }

// None returns an empty option.
func None[T any]() Option[T] { return Option[T]{} }

// Get returns the value and whether it is present.
func (o Option[T]) Get() (T, bool) { return o.value, o.ok }

func (o Option[T]) optional() (any, bool) { return o.value, o.ok }

func (o Option[T]) String() string {
	if !o.ok {
		return "None"
	}
	return fmt.Sprintf("Some(%s)", Annotate(o.value))
}

// Outcome is a value or the error that prevented producing it.
type Outcome[T any] struct {
	Value T
	Err   error
}

// OutcomeOf packs the conventional (value, error) pair.
func OutcomeOf[T any](v T, err error) Outcome[T] {
	return Outcome[T]{Value: v, Err: err}
}

// Unwrap returns the pair back.
func (o Outcome[T]) Unwrap() (T, error) { return o.Value, o.Err }

func (o Outcome[T]) outcome() (any, error) { return o.Value, o.Err }

func (o Outcome[T]) String() string {
	if o.Err != nil {
		return fmt.Sprintf("Err(%s)", Annotate(o.Err))
	}
	return fmt.Sprintf("Ok(%s)", Annotate(o.Value))
}

type optional interface {
	optional() (any, bool)
}

type outcome interface {
	outcome() (any, error)
}

var (
	optionalType = reflect.TypeFor[optional]()
	outcomeType  = reflect.TypeFor[outcome]()
	errorType    = reflect.TypeFor[error]()
)

// ErrNotOptional is returned for subjects that are neither options nor pointers.
var ErrNotOptional = errors.New("subject is not an option")

// ErrNotOutcome is returned for subjects that are not outcomes.
var ErrNotOutcome = errors.New("subject is not an outcome")

// Unoption reads an option-like subject: an Option or a pointer, where nil
// means absent. A present pointer yields the value it points to.
func Unoption(subject any) (value any, some bool, err error) {
	v := reflect.ValueOf(subject)
	if v.Kind() == reflect.Pointer && v.IsNil() {
		return nil, false, nil
	}
	if o, ok := subject.(optional); ok {
		value, some = o.optional()
		return value, some, nil
	}
	if v.Kind() != reflect.Pointer {
		return nil, false, fmt.Errorf("%w: %T", ErrNotOptional, subject)
	}
	return v.Elem().Interface(), true, nil
}

// Unresult reads an Outcome subject.
func Unresult(subject any) (value any, failure error, err error) {
	o, ok := subject.(outcome)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %T", ErrNotOutcome, subject)
	}
	value, failure = o.outcome()
	return value, failure, nil
}

// OptionElem returns the type held by an option-like type.
func OptionElem(t reflect.Type) (reflect.Type, error) {
	if IsDynamic(t) {
		return nil, nil
	}
	if t.Implements(optionalType) {
		m, _ := t.MethodByName("Get")
		return m.Type.Out(0), nil
	}
	if t.Kind() == reflect.Pointer {
		return t.Elem(), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotOptional, t)
}

// OutcomeElem returns the value type held by an Outcome type.
func OutcomeElem(t reflect.Type) (reflect.Type, error) {
	if IsDynamic(t) {
		return nil, nil
	}
	if !t.Implements(outcomeType) {
		return nil, fmt.Errorf("%w: %s", ErrNotOutcome, t)
	}
	m, _ := t.MethodByName("Unwrap")
	return m.Type.Out(0), nil
}
