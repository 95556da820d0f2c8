package verify

import (
	"fmt"
	"reflect"

	"github.com/cgast/chainexpect/pkg/expect"
)

func pointerRule(in reflect.Type) error {
	if !expect.IsPointerLike(in) {
		return fmt.Errorf("%s is not a pointer", in)
	}
	return nil
}

// ToPointTo passes when the subject refers to the same location as other.
func ToPointTo(other any) expect.Step {
	desc := expect.Annotate(other)
	return assertion("to_point_to", expect.Accepts(pointerRule), func(cx *expect.Context, subject any) expect.Output {
		cx.Annotate("other", desc)
		want, err := expect.Address(other)
		if err != nil {
			return failWith(cx, "other is not a pointer", err)
		}
		got, err := expect.Address(subject)
		if err != nil {
			return failWith(cx, "subject is not a pointer", err)
		}
		return cx.PassIf(got == want, "pointers are not equal")
	})
}
