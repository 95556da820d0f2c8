package expect

import (
	"cmp"
	"fmt"
	"reflect"
)

// IsNumber reports whether t is an integer or floating-point type. Cast
// converts between such types when no precision is lost.
func IsNumber(t reflect.Type) bool {
	return t != nil && isNumber(t.Kind())
}

func isNumber(k reflect.Kind) bool {
	return isInt(k) || isUint(k) || isFloat(k)
}

func isInt(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUint(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uintptr
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

// IsOrdered reports whether values of type t can be passed to Compare.
func IsOrdered(t reflect.Type) bool {
	if IsDynamic(t) {
		return true
	}
	k := t.Kind()
	return isNumber(k) || k == reflect.String
}

// Compare orders two numbers or two strings. Numbers of different kinds are
// compared by value, so int(3) and float64(3) are equal.
func Compare(a, b any) (int, error) {
	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	if !av.IsValid() || !bv.IsValid() {
		return 0, fmt.Errorf("cannot order %T and %T", a, b)
	}
	ak, bk := av.Kind(), bv.Kind()

	switch {
	case ak == reflect.String && bk == reflect.String:
		return cmp.Compare(av.String(), bv.String()), nil
	case isInt(ak) && isInt(bk):
		return cmp.Compare(av.Int(), bv.Int()), nil
	case isUint(ak) && isUint(bk):
		return cmp.Compare(av.Uint(), bv.Uint()), nil
	case isInt(ak) && isUint(bk):
		if av.Int() < 0 {
			return -1, nil
		}
		return cmp.Compare(uint64(av.Int()), bv.Uint()), nil
	case isUint(ak) && isInt(bk):
		if bv.Int() < 0 {
			return 1, nil
		}
		return cmp.Compare(av.Uint(), uint64(bv.Int())), nil
	case isNumber(ak) && isNumber(bk):
		return cmp.Compare(toFloat(av), toFloat(bv)), nil
	}
	return 0, fmt.Errorf("cannot order %T and %T", a, b)
}

func toFloat(v reflect.Value) float64 {
	switch {
	case isInt(v.Kind()):
		return float64(v.Int())
	case isUint(v.Kind()):
		return float64(v.Uint())
	default:
		return v.Float()
	}
}

// ToFloat converts any number to float64.
func ToFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || !isNumber(rv.Kind()) {
		return 0, false
	}
	return toFloat(rv), true
}
