package spec

import (
	"fmt"
	"strings"

	"github.com/cgast/chainexpect/pkg/expect"
)

// APIVersion is the suite format version this package understands.
const APIVersion = "chainexpect/v1"

// ValidationError represents a single validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult holds all validation errors for a suite.
type ValidationResult struct {
	Errors []ValidationError
}

// Valid returns true if no validation errors were found.
func (r ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// Error returns a combined error message from all validation errors.
func (r ValidationResult) Error() string {
	if r.Valid() {
		return ""
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
}

func (r *ValidationResult) add(field, format string, args ...any) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// StepLister reports whether a step name is known and what kind it is.
type StepLister interface {
	Lookup(name string) (expect.StepKind, bool)
}

// ValidateSuite checks a Suite for required fields and well-formed chains.
// Step names are only checked when steps is non-nil.
func ValidateSuite(suite Suite, steps StepLister) ValidationResult {
	var result ValidationResult

	switch suite.APIVersion {
	case "":
		result.add("apiVersion", "required")
	case APIVersion:
	default:
		result.add("apiVersion", "unsupported version %q (expected %s)", suite.APIVersion, APIVersion)
	}

	switch suite.Kind {
	case "":
		result.add("kind", "required")
	case "Suite":
	default:
		result.add("kind", "unsupported kind %q (expected Suite)", suite.Kind)
	}

	if suite.Meta.Name == "" {
		result.add("meta.name", "required")
	}

	if len(suite.Checks) == 0 {
		result.add("checks", "at least one check is required")
	}
	checkNames := make(map[string]bool)
	for i, c := range suite.Checks {
		field := fmt.Sprintf("checks[%d]", i)
		switch {
		case strings.TrimSpace(c.Name) == "":
			result.add(field+".name", "required")
		case checkNames[c.Name]:
			result.add(field+".name", "duplicate check name %q", c.Name)
		default:
			checkNames[c.Name] = true
		}
		if c.Subject != nil && c.SubjectFile != "" {
			result.add(field, "subject and subject_file are mutually exclusive")
		}
		validateChain(&result, field, c.Steps, steps)
	}

	paramNames := make(map[string]bool)
	for i, p := range suite.Params {
		field := fmt.Sprintf("params[%d].name", i)
		switch {
		case p.Name == "":
			result.add(field, "required")
		case paramNames[p.Name]:
			result.add(field, "duplicate param name %q", p.Name)
		default:
			paramNames[p.Name] = true
		}
	}

	return result
}

func validateChain(result *ValidationResult, field string, chain []StepRef, steps StepLister) {
	if len(chain) == 0 {
		result.add(field+".steps", "at least one step is required")
		return
	}
	for j, ref := range chain {
		stepField := fmt.Sprintf("%s.steps[%d]", field, j)
		if ref.Name == "" {
			result.add(stepField, "step name is required")
			continue
		}
		if steps == nil {
			continue
		}
		kind, ok := steps.Lookup(ref.Name)
		last := j == len(chain)-1
		switch {
		case !ok:
			result.add(stepField, "unknown step %q", ref.Name)
		case last && kind != expect.StepAssertion:
			result.add(stepField, "chain must end with an assertion, %q is a modifier", ref.Name)
		case !last && kind != expect.StepModifier:
			result.add(stepField, "assertion %q must be the last step", ref.Name)
		}
	}
}
