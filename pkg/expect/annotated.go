package expect

import (
	"fmt"
	"reflect"
	"runtime"
)

// AnnotationKind tells how an Annotated value got its text.
type AnnotationKind int

const (
	// KindDebug means the text is a structural representation of the value.
	KindDebug AnnotationKind = iota
	// KindStringify means the value had no useful representation and the
	// text is the source text or a placeholder.
	KindStringify
)

// Annotated pairs a value with a best-effort textual representation.
type Annotated struct {
	value  any
	repr   string
	source string
	kind   AnnotationKind
}

// Annotate captures the representation of v.
func Annotate(v any) Annotated {
	repr, ok := describe(v)
	kind := KindDebug
	if !ok {
		kind = KindStringify
	}
	return Annotated{value: v, repr: repr, kind: kind}
}

// AnnotateSource captures v along with the source text that produced it.
// The source text is used when v has no structural representation.
func AnnotateSource(v any, source string) Annotated {
	a := Annotate(v)
	a.source = source
	return a
}

// Value returns the annotated value.
func (a Annotated) Value() any { return a.value }

// Kind returns how the text was derived.
func (a Annotated) Kind() AnnotationKind { return a.kind }

// Source returns the recorded source text, if any.
func (a Annotated) Source() string { return a.source }

func (a Annotated) String() string {
	if a.kind == KindStringify && a.source != "" {
		return a.source
	}
	return a.repr
}

// describe renders v for diagnostics. The boolean is false when v has no
// meaningful representation and the text is only a placeholder.
func describe(v any) (repr string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			repr, ok = fmt.Sprintf("%T (unprintable: %v)", v, r), false
		}
	}()

	switch t := v.(type) {
	case nil:
		return "nil", true
	case Annotated:
		return t.String(), t.kind == KindDebug
	case string:
		return fmt.Sprintf("%q", t), true
	case error:
		return t.Error(), true
	case fmt.Stringer:
		return t.String(), true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Func:
		if rv.IsNil() {
			return "nil", true
		}
		if fn := runtime.FuncForPC(rv.Pointer()); fn != nil {
			return fn.Name(), false
		}
		return rv.Type().String(), false
	case reflect.Chan, reflect.UnsafePointer:
		return rv.Type().String(), false
	}
	return fmt.Sprintf("%#v", v), true
}
