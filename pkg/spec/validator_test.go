package spec

import (
	"strings"
	"testing"

	"github.com/cgast/chainexpect/pkg/expect"
)

type fakeSteps map[string]expect.StepKind

func (f fakeSteps) Lookup(name string) (expect.StepKind, bool) {
	k, ok := f[name]
	return k, ok
}

var knownSteps = fakeSteps{
	"all":      expect.StepModifier,
	"not":      expect.StepModifier,
	"to_equal": expect.StepAssertion,
}

func validSuite() Suite {
	return Suite{
		APIVersion: APIVersion,
		Kind:       "Suite",
		Meta:       SuiteMeta{Name: "test"},
		Checks: []Check{
			{Name: "odd", Subject: []any{1, 3}, Steps: []StepRef{{Name: "all"}, {Name: "not"}, {Name: "to_equal", Args: []any{2}}}},
		},
	}
}

func TestValidateSuiteValid(t *testing.T) {
	result := ValidateSuite(validSuite(), knownSteps)
	if !result.Valid() {
		t.Errorf("expected valid, got errors: %s", result.Error())
	}
	if result.Error() != "" {
		t.Errorf("Error() = %q, want empty", result.Error())
	}
}

func TestValidateSuiteErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Suite)
		field  string
		msg    string
	}{
		{"missing apiVersion", func(s *Suite) { s.APIVersion = "" }, "apiVersion", "required"},
		{"wrong apiVersion", func(s *Suite) { s.APIVersion = "v0" }, "apiVersion", "unsupported version"},
		{"wrong kind", func(s *Suite) { s.Kind = "Spec" }, "kind", "unsupported kind"},
		{"missing name", func(s *Suite) { s.Meta.Name = "" }, "meta.name", "required"},
		{"no checks", func(s *Suite) { s.Checks = nil }, "checks", "at least one check"},
		{"duplicate check", func(s *Suite) { s.Checks = append(s.Checks, s.Checks[0]) }, "checks[1].name", "duplicate check name"},
		{"no steps", func(s *Suite) { s.Checks[0].Steps = nil }, "checks[0].steps", "at least one step"},
		{"unknown step", func(s *Suite) { s.Checks[0].Steps[1].Name = "nope" }, "checks[0].steps[1]", `unknown step "nope"`},
		{"ends with modifier", func(s *Suite) { s.Checks[0].Steps = s.Checks[0].Steps[:2] }, "checks[0].steps[1]", "must end with an assertion"},
		{"assertion in the middle", func(s *Suite) {
			s.Checks[0].Steps = []StepRef{{Name: "to_equal"}, {Name: "to_equal"}}
		}, "checks[0].steps[0]", "must be the last step"},
		{"subject and file", func(s *Suite) { s.Checks[0].SubjectFile = "x.json" }, "checks[0]", "mutually exclusive"},
		{"duplicate param", func(s *Suite) { s.Params = []ParamDef{{Name: "a"}, {Name: "a"}} }, "params[1].name", "duplicate param name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSuite()
			tt.mutate(&s)
			result := ValidateSuite(s, knownSteps)
			if result.Valid() {
				t.Fatal("expected invalid")
			}
			found := false
			for _, e := range result.Errors {
				if e.Field == tt.field && strings.Contains(e.Message, tt.msg) {
					found = true
				}
			}
			if !found {
				t.Errorf("errors = %s, want %s containing %q", result.Error(), tt.field, tt.msg)
			}
		})
	}
}

func TestValidateSuiteWithoutLister(t *testing.T) {
	s := validSuite()
	s.Checks[0].Steps = []StepRef{{Name: "anything"}}
	if result := ValidateSuite(s, nil); !result.Valid() {
		t.Errorf("expected valid without a step lister, got %s", result.Error())
	}
}
