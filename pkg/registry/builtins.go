package registry

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/cgast/chainexpect/pkg/expect"
	"github.com/cgast/chainexpect/pkg/verify"
)

// Builtins returns a registry holding every step that can be expressed with
// plain data arguments.
func Builtins() *Registry {
	r := NewRegistry()
	for _, def := range builtinDefinitions() {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
	return r
}

func fixed(step func() expect.Step) Constructor {
	return func([]any) (expect.Step, error) { return step(), nil }
}

func oneArg(step func(any) expect.Step) Constructor {
	return func(args []any) (expect.Step, error) { return step(args[0]), nil }
}

func variadic(step func(...any) expect.Step) Constructor {
	return func(args []any) (expect.Step, error) { return step(args...), nil }
}

func modifierDef(name, category, desc string, params []string, ctor Constructor) Definition {
	return Definition{Name: name, Category: category, Kind: expect.StepModifier, Description: desc,
		Params: params, MinArgs: len(params), MaxArgs: len(params), New: ctor}
}

func assertionDef(name, category, desc string, params []string, ctor Constructor) Definition {
	return Definition{Name: name, Category: category, Kind: expect.StepAssertion, Description: desc,
		Params: params, MinArgs: len(params), MaxArgs: len(params), New: ctor}
}

func variadicDef(d Definition, minArgs int) Definition {
	d.MinArgs, d.MaxArgs = minArgs, -1
	return d
}

func builtinDefinitions() []Definition {
	return []Definition{
		modifierDef("not", "core", "inverts the rest of the chain", nil, fixed(expect.Not)),
		modifierDef("count", "core", "continues with the number of elements", nil, fixed(expect.Count)),
		modifierDef("nth", "core", "continues with the element at an index", []string{"index"}, func(args []any) (expect.Step, error) {
			i, err := toInt(args[0])
			if err != nil {
				return expect.Step{}, err
			}
			return expect.Nth(i), nil
		}),
		modifierDef("all", "core", "passes when the rest of the chain passes for every element", nil, fixed(expect.All)),
		modifierDef("any", "core", "passes when the rest of the chain passes for some element", nil, fixed(expect.Any)),
		modifierDef("map", "core", "applies a named transform ("+strings.Join(transformNames(), ", ")+")", []string{"transform"}, func(args []any) (expect.Step, error) {
			name, ok := args[0].(string)
			if !ok {
				return expect.Step{}, fmt.Errorf("transform must be a name, got %T", args[0])
			}
			return transform(name)
		}),
		modifierDef("to_be_some_and", "variants", "continues with the value when present", nil, fixed(expect.ToBeSomeAnd)),
		modifierDef("as_string", "text", "continues with the display text", nil, fixed(expect.AsString)),
		modifierDef("as_utf8", "text", "decodes bytes as UTF-8", nil, fixed(expect.AsUTF8)),
		modifierDef("as_debug", "text", "continues with the Go-syntax representation", nil, fixed(expect.AsDebug)),
		modifierDef("chars", "text", "continues with the characters of a string", nil, fixed(expect.Chars)),
		modifierDef("zip", "collections", "pairs elements with another list", []string{"other"}, oneArg(expect.Zip)),

		assertionDef("to_equal", "compare", "passes when the subject equals the expected value", []string{"expected"}, oneArg(verify.ToEqual)),
		assertionDef("to_be_less_than", "compare", "passes when the subject orders before the boundary", []string{"boundary"}, oneArg(verify.ToBeLessThan)),
		assertionDef("to_be_less_than_or_equal", "compare", "passes when the subject does not order after the boundary", []string{"boundary"}, oneArg(verify.ToBeLessThanOrEqual)),
		assertionDef("to_be_greater_than", "compare", "passes when the subject orders after the boundary", []string{"boundary"}, oneArg(verify.ToBeGreaterThan)),
		assertionDef("to_be_greater_than_or_equal", "compare", "passes when the subject does not order before the boundary", []string{"boundary"}, oneArg(verify.ToBeGreaterThanOrEqual)),
		assertionDef("to_equal_approx", "compare", "passes when the subject is within delta of expected", []string{"expected", "delta"}, func(args []any) (expect.Step, error) {
			expected, err := toFloat(args[0])
			if err != nil {
				return expect.Step{}, err
			}
			delta, err := toFloat(args[1])
			if err != nil {
				return expect.Step{}, err
			}
			return verify.ToEqualApprox(expected, delta), nil
		}),
		variadicDef(assertionDef("to_be_one_of", "compare", "passes when the subject equals one of the items", []string{"items..."}, variadic(verify.ToBeOneOf)), 1),
		assertionDef("to_contain_substr", "text", "passes when the string contains a substring", []string{"substr"}, stringArg(verify.ToContainSubstr)),
		assertionDef("to_match_regex", "text", "passes when the string matches a regular expression", []string{"pattern"}, stringArg(verify.ToMatchRegex)),
		variadicDef(assertionDef("to_be_valid_json", "text", "passes when the text is JSON holding the required keys", []string{"required..."}, func(args []any) (expect.Step, error) {
			keys, err := toStrings(args)
			if err != nil {
				return expect.Step{}, err
			}
			return verify.ToBeValidJSON(keys...), nil
		}), 0),
		assertionDef("to_contain", "collections", "passes when an element equals the item", []string{"item"}, oneArg(verify.ToContain)),
		variadicDef(assertionDef("to_contain_exactly", "collections", "passes when the elements match the items in any order", []string{"items..."}, variadic(verify.ToContainExactly)), 0),
		assertionDef("to_be_empty", "collections", "passes when there are no elements", nil, fixed(verify.ToBeEmpty)),
		assertionDef("to_be_nil", "variants", "passes when the subject is null", nil, fixed(verify.ToBeNil)),
		assertionDef("to_be_true", "compare", "passes when the subject is true", nil, fixed(verify.ToBeTrue)),
		assertionDef("to_be_false", "compare", "passes when the subject is false", nil, fixed(verify.ToBeFalse)),
	}
}

func stringArg(step func(string) expect.Step) Constructor {
	return func(args []any) (expect.Step, error) {
		s, ok := args[0].(string)
		if !ok {
			return expect.Step{}, fmt.Errorf("expected a string argument, got %T", args[0])
		}
		return step(s), nil
	}
}

var transforms = map[string]func() expect.Step{
	"upper": func() expect.Step { return expect.Map(strings.ToUpper) },
	"lower": func() expect.Step { return expect.Map(strings.ToLower) },
	"trim":  func() expect.Step { return expect.Map(strings.TrimSpace) },
	"lines": func() expect.Step {
		return expect.Map(func(s string) []string { return strings.Split(strings.TrimRight(s, "\n"), "\n") })
	},
	"abs": func() expect.Step { return expect.Map(math.Abs) },
}

func transformNames() []string {
	names := make([]string, 0, len(transforms))
	for name := range transforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func transform(name string) (expect.Step, error) {
	t, ok := transforms[name]
	if !ok {
		return expect.Step{}, fmt.Errorf("unknown transform %q", name)
	}
	return expect.As("map:"+name, t()), nil
}

// toInt converts various numeric types to int.
func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%v is not a whole number", n)
		}
		return int(n), nil
	case string:
		var i int
		_, err := fmt.Sscanf(n, "%d", &i)
		return i, err
	default:
		return 0, fmt.Errorf("cannot convert %T to int", v)
	}
}

func toFloat(v any) (float64, error) {
	if f, ok := expect.ToFloat(v); ok {
		return f, nil
	}
	return 0, fmt.Errorf("cannot convert %T to a number", v)
}

func toStrings(args []any) ([]string, error) {
	out := make([]string, len(args))
	for i, a := range args {
		s, ok := a.(string)
		if !ok {
			return nil, fmt.Errorf("argument %d: expected a string, got %T", i+1, a)
		}
		out[i] = s
	}
	return out, nil
}
