// Package spec defines declarative assertion suites and loads them from YAML.
package spec

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Suite is a named collection of checks.
type Suite struct {
	APIVersion string     `yaml:"apiVersion" json:"apiVersion"`
	Kind       string     `yaml:"kind" json:"kind"`
	Meta       SuiteMeta  `yaml:"meta" json:"meta"`
	Params     []ParamDef `yaml:"params" json:"params"`
	Checks     []Check    `yaml:"checks" json:"checks"`

	// Source is the file the suite was loaded from, if any.
	Source string `yaml:"-" json:"source,omitempty"`
}

// SuiteMeta contains metadata about the suite.
type SuiteMeta struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Owner       string   `yaml:"owner" json:"owner"`
	Tags        []string `yaml:"tags" json:"tags"`
}

// ParamDef defines a parameter interpolated into the suite as {{name}}.
type ParamDef struct {
	Name        string `yaml:"name" json:"name"`
	Type        string `yaml:"type" json:"type"`
	Default     any    `yaml:"default" json:"default"`
	Description string `yaml:"description" json:"description"`
}

// Check is a subject plus the chain of steps evaluated against it.
type Check struct {
	Name        string    `yaml:"name" json:"name"`
	Description string    `yaml:"description" json:"description"`
	Subject     any       `yaml:"subject" json:"subject"`
	SubjectFile string    `yaml:"subject_file" json:"subject_file,omitempty"`
	Steps       []StepRef `yaml:"steps" json:"steps"`
	Skip        bool      `yaml:"skip" json:"skip,omitempty"`
	Tags        []string  `yaml:"tags" json:"tags,omitempty"`

	// Line is where the check starts in the suite file.
	Line int `yaml:"-" json:"line,omitempty"`
}

// UnmarshalYAML records the line the check was declared on.
func (c *Check) UnmarshalYAML(value *yaml.Node) error {
	type plain Check
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*c = Check(p)
	c.Line = value.Line
	return nil
}

// LoadSubject returns the check's subject, reading SubjectFile relative to
// dir when it is set.
func (c Check) LoadSubject(dir string) (any, error) {
	return c.ReadSubject(dir, os.ReadFile)
}

// ReadSubject is LoadSubject with a custom file reader.
func (c Check) ReadSubject(dir string, read func(path string) ([]byte, error)) (any, error) {
	if c.SubjectFile == "" {
		return c.Subject, nil
	}
	path := c.SubjectFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	data, err := read(path)
	if err != nil {
		return nil, fmt.Errorf("read subject %s: %w", c.SubjectFile, err)
	}
	return string(data), nil
}

// StepRef names a step and its arguments.
//
// In YAML a step is either a bare name ("all") or a single-key mapping from
// the name to its argument ("to_equal: 5"). A sequence value is spread into
// several arguments ("to_be_one_of: [1, 2]"); wrap a list in another list
// to pass it as one argument ("to_equal: [[1, 2]]").
type StepRef struct {
	Name string `json:"name"`
	Args []any  `json:"args,omitempty"`
	Line int    `json:"line,omitempty"`
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StepRef) UnmarshalYAML(value *yaml.Node) error {
	s.Line = value.Line
	switch value.Kind {
	case yaml.ScalarNode:
		s.Name = value.Value
		return nil
	case yaml.MappingNode:
		if len(value.Content) != 2 {
			return fmt.Errorf("line %d: step must have exactly one name, got %d", value.Line, len(value.Content)/2)
		}
		s.Name = value.Content[0].Value
		arg := value.Content[1]
		switch {
		case arg.Kind == yaml.ScalarNode && arg.ShortTag() == "!!null":
			s.Args = nil
		case arg.Kind == yaml.SequenceNode:
			if err := arg.Decode(&s.Args); err != nil {
				return fmt.Errorf("line %d: step %s: %w", arg.Line, s.Name, err)
			}
		default:
			var v any
			if err := arg.Decode(&v); err != nil {
				return fmt.Errorf("line %d: step %s: %w", arg.Line, s.Name, err)
			}
			s.Args = []any{v}
		}
		return nil
	default:
		return fmt.Errorf("line %d: step must be a name or a single-key mapping", value.Line)
	}
}

func (s StepRef) String() string {
	if len(s.Args) == 0 {
		return s.Name
	}
	return fmt.Sprintf("%s%v", s.Name, s.Args)
}
