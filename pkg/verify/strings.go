package verify

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/cgast/chainexpect/pkg/expect"
)

// ToContainSubstr passes when a string subject contains substr.
func ToContainSubstr(substr string) expect.Step {
	return assertion("to_contain_substr", expect.Accepts(stringRule), func(cx *expect.Context, subject any) expect.Output {
		cx.Annotate("expected", expect.Annotate(substr))
		s, ok := asString(subject)
		if !ok {
			return cx.Fail("subject is not a string")
		}
		return cx.PassIf(strings.Contains(s, substr), "substring not found")
	})
}

// ToMatchRegex passes when a string subject matches pattern.
func ToMatchRegex(pattern string) expect.Step {
	return assertion("to_match_regex", expect.Accepts(stringRule), func(cx *expect.Context, subject any) expect.Output {
		cx.Annotate("pattern", pattern)
		re, err := regexp.Compile(pattern)
		if err != nil {
			return failWith(cx, "invalid pattern", err)
		}
		s, ok := asString(subject)
		if !ok {
			return cx.Fail("subject is not a string")
		}
		return cx.PassIf(re.MatchString(s), "does not match pattern")
	})
}

// ToBeValidJSON passes when the subject parses as JSON. With required keys,
// the document must be an object holding each of them.
func ToBeValidJSON(required ...string) expect.Step {
	return assertion("to_be_valid_json", expect.Accepts(stringRule), func(cx *expect.Context, subject any) expect.Output {
		if len(required) > 0 {
			cx.Annotate("required", strings.Join(required, ", "))
		}
		s, ok := asString(subject)
		if !ok {
			return cx.Fail("subject is not a string")
		}

		var parsed any
		if err := json.Unmarshal([]byte(s), &parsed); err != nil {
			return failWith(cx, "invalid JSON", err)
		}
		if len(required) == 0 {
			return cx.Pass()
		}

		obj, ok := parsed.(map[string]any)
		if !ok {
			cx.Annotate("type", fmt.Sprintf("%T", parsed))
			return cx.Fail("not a JSON object")
		}
		var missing []string
		for _, key := range required {
			if _, exists := obj[key]; !exists {
				missing = append(missing, key)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			cx.Annotate("missing", strings.Join(missing, ", "))
			return cx.Fail("missing required keys")
		}
		return cx.Pass()
	})
}
