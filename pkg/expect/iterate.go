package expect

import (
	"cmp"
	"fmt"
	"iter"
	"reflect"
	"slices"
)

// Entry is a key/value pair yielded when iterating a map or an iter.Seq2.
type Entry struct {
	Key   any
	Value any
}

func (e Entry) String() string {
	return fmt.Sprintf("%s: %s", Annotate(e.Key), Annotate(e.Value))
}

var (
	entryType = reflect.TypeFor[Entry]()
	runeType  = reflect.TypeFor[rune]()
)

// Iterate returns the elements of an iterable subject.
//
// Slices, arrays, strings (as runes), maps (as Entry, ordered by key when
// the keys are ordered), receive channels, iter.Seq and iter.Seq2 functions
// are iterable. Sequences are consumed lazily, so an infinite sequence is
// fine as long as the consumer stops early.
func Iterate(subject any) (iter.Seq[any], error) {
	switch s := subject.(type) {
	case nil:
		return nil, fmt.Errorf("nil is not iterable")
	case iter.Seq[any]:
		return s, nil
	case func(func(any) bool):
		return s, nil
	case string:
		return func(yield func(any) bool) {
			for _, r := range s {
				if !yield(r) {
					return
				}
			}
		}, nil
	}

	v := reflect.ValueOf(subject)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		return func(yield func(any) bool) {
			for i := 0; i < v.Len(); i++ {
				if !yield(v.Index(i).Interface()) {
					return
				}
			}
		}, nil
	case reflect.String:
		return Iterate(v.String())
	case reflect.Map:
		keys := v.MapKeys()
		sortValues(keys)
		return func(yield func(any) bool) {
			for _, k := range keys {
				if !yield(Entry{Key: k.Interface(), Value: v.MapIndex(k).Interface()}) {
					return
				}
			}
		}, nil
	case reflect.Chan:
		if v.Type().ChanDir()&reflect.RecvDir == 0 {
			return nil, fmt.Errorf("%s is send-only", v.Type())
		}
		return func(yield func(any) bool) {
			for {
				x, ok := v.Recv()
				if !ok || !yield(x.Interface()) {
					return
				}
			}
		}, nil
	case reflect.Func:
		if seqArity(v.Type()) > 0 {
			return reflectSeq(v), nil
		}
	}
	return nil, fmt.Errorf("%T is not iterable", subject)
}

// seqArity returns 1 for iter.Seq-shaped funcs, 2 for iter.Seq2-shaped ones
// and 0 otherwise.
func seqArity(t reflect.Type) int {
	if t.Kind() != reflect.Func || t.NumIn() != 1 || t.NumOut() != 0 {
		return 0
	}
	y := t.In(0)
	if y.Kind() != reflect.Func || y.NumOut() != 1 || y.Out(0).Kind() != reflect.Bool {
		return 0
	}
	if n := y.NumIn(); n == 1 || n == 2 {
		return n
	}
	return 0
}

func reflectSeq(fn reflect.Value) iter.Seq[any] {
	yieldType := fn.Type().In(0)
	pair := yieldType.NumIn() == 2
	return func(yield func(any) bool) {
		wrapped := reflect.MakeFunc(yieldType, func(args []reflect.Value) []reflect.Value {
			var item any
			if pair {
				item = Entry{Key: args[0].Interface(), Value: args[1].Interface()}
			} else {
				item = args[0].Interface()
			}
			return []reflect.Value{reflect.ValueOf(yield(item)).Convert(yieldType.Out(0))}
		})
		fn.Call([]reflect.Value{wrapped})
	}
}

// IsIterable reports whether values of type t can be passed to Iterate.
func IsIterable(t reflect.Type) bool {
	_, err := ElemType(t)
	return err == nil
}

// ElemType returns the element type yielded when iterating t.
func ElemType(t reflect.Type) (reflect.Type, error) {
	if IsDynamic(t) {
		return nil, nil
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return t.Elem(), nil
	case reflect.String:
		return runeType, nil
	case reflect.Map:
		return entryType, nil
	case reflect.Chan:
		if t.ChanDir()&reflect.RecvDir == 0 {
			return nil, fmt.Errorf("%s is send-only", t)
		}
		return t.Elem(), nil
	case reflect.Func:
		switch seqArity(t) {
		case 1:
			return t.In(0).In(0), nil
		case 2:
			return entryType, nil
		}
	}
	return nil, fmt.Errorf("%s is not iterable", t)
}

func iterableRule(out func(elem reflect.Type) reflect.Type) TypeRule {
	return func(in reflect.Type) (reflect.Type, error) {
		elem, err := ElemType(in)
		if err != nil {
			return nil, err
		}
		return out(elem), nil
	}
}

func sortValues(values []reflect.Value) {
	slices.SortStableFunc(values, func(a, b reflect.Value) int {
		if c, err := Compare(a.Interface(), b.Interface()); err == nil {
			return c
		}
		return cmp.Compare(fmt.Sprint(a.Interface()), fmt.Sprint(b.Interface()))
	})
}
