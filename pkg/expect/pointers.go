package expect

import (
	"fmt"
	"reflect"
)

var uintptrType = reflect.TypeFor[uintptr]()

// IsPointerLike reports whether values of t refer to a memory location:
// pointers, slices, maps, channels, funcs and uintptr addresses.
func IsPointerLike(t reflect.Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func, reflect.Uintptr:
		return true
	}
	return false
}

// Address returns the location a pointer-like subject refers to. A nil
// subject is the zero address. For slices it is the first element.
func Address(subject any) (uintptr, error) {
	rv := reflect.ValueOf(subject)
	if !rv.IsValid() {
		return 0, nil
	}
	if !IsPointerLike(rv.Type()) {
		return 0, fmt.Errorf("%T is not a pointer", subject)
	}
	if rv.Kind() == reflect.Uintptr {
		return uintptr(rv.Uint()), nil
	}
	return rv.Pointer(), nil
}

// AsPtr continues with the address a pointer-like subject refers to.
func AsPtr() Step {
	rule := func(in reflect.Type) (reflect.Type, error) {
		if IsDynamic(in) || IsPointerLike(in) {
			return uintptrType, nil
		}
		return nil, fmt.Errorf("%s is not a pointer", in)
	}
	return modifier("as_ptr", rule, func(cx *Context, subject any, next Assertion) Output {
		addr, err := Address(subject)
		if err != nil {
			return failWith(cx, "subject is not a pointer", err)
		}
		return next.Execute(cx, addr)
	})
}

// AsDebug continues with the Go-syntax representation of the subject.
func AsDebug() Step {
	return modifier("as_debug", Produces(stringType), func(cx *Context, subject any, next Assertion) Output {
		return next.Execute(cx, fmt.Sprintf("%#v", subject))
	})
}
