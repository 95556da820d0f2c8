package spec

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadSuite reads a YAML suite file and returns the parsed Suite.
// Template variables like {{date}} and {{param_name}} are interpolated
// using the provided params (or defaults from the suite).
func LoadSuite(path string, params map[string]string) (Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Suite{}, fmt.Errorf("read suite %s: %w", path, err)
	}

	suite, err := ParseSuite(data, params)
	if err != nil {
		return Suite{}, fmt.Errorf("%s: %w", path, err)
	}
	suite.Source = path
	return suite, nil
}

// ParseSuite parses YAML data into a Suite with variable interpolation.
func ParseSuite(data []byte, params map[string]string) (Suite, error) {
	// First pass: only the params are needed to build the variable map.
	var raw struct {
		Params []ParamDef `yaml:"params"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Suite{}, fmt.Errorf("parse suite: %w", err)
	}

	vars := buildVarMap(raw.Params, params)
	interpolated := interpolateVars(string(data), vars)

	var suite Suite
	if err := yaml.Unmarshal([]byte(interpolated), &suite); err != nil {
		return Suite{}, fmt.Errorf("parse interpolated suite: %w", err)
	}
	return suite, nil
}

// buildVarMap creates a variable map from param defaults and runtime overrides.
// Built-in date variables are always available.
func buildVarMap(paramDefs []ParamDef, overrides map[string]string) map[string]string {
	now := time.Now()
	vars := map[string]string{
		"date":     now.Format("2006-01-02"),
		"datetime": now.Format("2006-01-02T15:04:05"),
		"year":     now.Format("2006"),
	}

	for _, p := range paramDefs {
		if p.Default != nil {
			vars[p.Name] = fmt.Sprintf("%v", p.Default)
		}
	}
	for k, v := range overrides {
		vars[k] = v
	}
	return vars
}

var templatePattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// interpolateVars replaces {{name}} with its value. Unknown names are left
// untouched so validation can report them.
func interpolateVars(s string, vars map[string]string) string {
	return templatePattern.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(match, "{{"), "}}"))
		if val, ok := vars[name]; ok {
			return val
		}
		return match
	})
}

// Unresolved returns the template variables left in data after
// interpolation with params.
func Unresolved(data []byte, params map[string]string) ([]string, error) {
	var raw struct {
		Params []ParamDef `yaml:"params"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse suite: %w", err)
	}
	seen := make(map[string]bool)
	var names []string
	for _, m := range templatePattern.FindAllStringSubmatch(interpolateVars(string(data), buildVarMap(raw.Params, params)), -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names, nil
}
