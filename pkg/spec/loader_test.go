package spec

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

const sampleSuite = `
apiVersion: chainexpect/v1
kind: Suite
meta:
  name: "inventory"
  description: "stock checks"
  tags: ["smoke"]
params:
  - name: "greeting"
    type: "string"
    default: "hello"
checks:
  - name: "all odd"
    subject: [1, 3, 5]
    steps:
      - all
      - not
      - to_equal: 4
  - name: "greeting"
    subject: "{{greeting}} world"
    steps:
      - to_contain_substr: "{{greeting}}"
  - name: "one of"
    subject: 2
    steps:
      - to_be_one_of: [1, 2, 3]
  - name: "list as one argument"
    subject: [1, 2]
    steps:
      - to_equal: [[1, 2]]
  - name: "null argument"
    subject: null
    steps:
      - to_be_nil:
`

func TestLoadSuite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inventory.yaml")
	if err := os.WriteFile(path, []byte(sampleSuite), 0644); err != nil {
		t.Fatal(err)
	}

	suite, err := LoadSuite(path, nil)
	if err != nil {
		t.Fatalf("LoadSuite: %v", err)
	}
	if suite.Meta.Name != "inventory" {
		t.Errorf("Meta.Name = %q, want %q", suite.Meta.Name, "inventory")
	}
	if suite.Source != path {
		t.Errorf("Source = %q, want %q", suite.Source, path)
	}
	if len(suite.Checks) != 5 {
		t.Fatalf("Checks = %d, want 5", len(suite.Checks))
	}

	first := suite.Checks[0]
	if first.Line != 13 {
		t.Errorf("Line = %d, want 13", first.Line)
	}
	wantSteps := []StepRef{{Name: "all", Line: 16}, {Name: "not", Line: 17}, {Name: "to_equal", Args: []any{4}, Line: 18}}
	if !reflect.DeepEqual(first.Steps, wantSteps) {
		t.Errorf("Steps = %+v, want %+v", first.Steps, wantSteps)
	}
	if !reflect.DeepEqual(first.Subject, []any{1, 3, 5}) {
		t.Errorf("Subject = %#v", first.Subject)
	}
}

func TestParseSuiteArguments(t *testing.T) {
	suite, err := ParseSuite([]byte(sampleSuite), map[string]string{"greeting": "hi"})
	if err != nil {
		t.Fatalf("ParseSuite: %v", err)
	}
	tests := []struct {
		check int
		want  []any
	}{
		{1, []any{"hi"}},
		{2, []any{1, 2, 3}},
		{3, []any{[]any{1, 2}}},
		{4, nil},
	}
	for _, tt := range tests {
		c := suite.Checks[tt.check]
		t.Run(c.Name, func(t *testing.T) {
			if got := c.Steps[0].Args; !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Args = %#v, want %#v", got, tt.want)
			}
		})
	}
	if got := suite.Checks[1].Subject; got != "hi world" {
		t.Errorf("Subject = %v, want %q", got, "hi world")
	}
}

func TestParseSuiteRejectsMultiKeyStep(t *testing.T) {
	data := `
checks:
  - name: bad
    subject: 1
    steps:
      - {to_equal: 1, not: null}
`
	_, err := ParseSuite([]byte(data), nil)
	if err == nil || !strings.Contains(err.Error(), "exactly one name") {
		t.Errorf("ParseSuite error = %v, want multi-key error", err)
	}
}

func TestInterpolateVars(t *testing.T) {
	vars := map[string]string{"name": "world", "n": "3"}
	tests := []struct {
		in   string
		want string
	}{
		{"hello {{name}}", "hello world"},
		{"{{ name }} x{{n}}", "world x3"},
		{"{{missing}}", "{{missing}}"},
		{"no vars", "no vars"},
	}
	for _, tt := range tests {
		if got := interpolateVars(tt.in, vars); got != tt.want {
			t.Errorf("interpolateVars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildVarMapBuiltins(t *testing.T) {
	vars := buildVarMap([]ParamDef{{Name: "days", Default: 7}}, map[string]string{"days": "14"})
	if vars["days"] != "14" {
		t.Errorf("days = %q, want override 14", vars["days"])
	}
	if vars["date"] != time.Now().Format("2006-01-02") {
		t.Errorf("date = %q", vars["date"])
	}
}

func TestUnresolved(t *testing.T) {
	data := []byte("params:\n  - name: a\n    default: 1\nx: \"{{a}} {{b}} {{b}} {{c}}\"\n")
	got, err := Unresolved(data, nil)
	if err != nil {
		t.Fatalf("Unresolved: %v", err)
	}
	if want := []string{"b", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Unresolved = %v, want %v", got, want)
	}
}

func TestLoadSubjectFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "body.json"), []byte(`{"ok":true}`), 0644); err != nil {
		t.Fatal(err)
	}
	c := Check{SubjectFile: "body.json"}
	got, err := c.LoadSubject(dir)
	if err != nil {
		t.Fatalf("LoadSubject: %v", err)
	}
	if got != `{"ok":true}` {
		t.Errorf("LoadSubject = %v", got)
	}

	if _, err := (Check{SubjectFile: "missing.json"}).LoadSubject(dir); err == nil {
		t.Error("expected error for missing subject file")
	}
	if got, _ := (Check{Subject: 5}).LoadSubject(dir); got != 5 {
		t.Errorf("LoadSubject inline = %v, want 5", got)
	}
}
