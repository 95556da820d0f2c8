// Package registry resolves step identifiers, as written in suite files, to
// step constructors.
package registry

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/cgast/chainexpect/pkg/expect"
)

// Constructor builds a step from its suite arguments.
type Constructor func(args []any) (expect.Step, error)

// Definition describes a named step.
type Definition struct {
	Name        string
	Category    string
	Kind        expect.StepKind
	Description string
	// Params names the arguments. A trailing "..." marks a variadic tail.
	Params  []string
	MinArgs int
	// MaxArgs is the upper bound on arguments, -1 for variadic steps.
	MaxArgs int
	New     Constructor
}

// Usage renders the call shape, e.g. "nth(index)".
func (d Definition) Usage() string {
	if len(d.Params) == 0 {
		return d.Name
	}
	return fmt.Sprintf("%s(%s)", d.Name, strings.Join(d.Params, ", "))
}

// Registry holds all registered step definitions, keyed by name.
type Registry struct {
	mu    sync.RWMutex
	steps map[string]Definition
}

// NewRegistry creates an empty step registry.
func NewRegistry() *Registry {
	return &Registry{
		steps: make(map[string]Definition),
	}
}

// Register adds a definition. Returns an error if a step with the same name
// is already registered.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("step definition has no name")
	}
	if def.New == nil {
		return fmt.Errorf("step %s has no constructor", def.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.steps[def.Name]; exists {
		return fmt.Errorf("step already registered: %s", def.Name)
	}
	r.steps[def.Name] = def
	return nil
}

// Resolve looks up a definition by name.
func (r *Registry) Resolve(name string) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.steps[name]
	if !ok {
		return Definition{}, fmt.Errorf("step not found: %s", name)
	}
	return def, nil
}

// Lookup reports the kind of a registered step.
func (r *Registry) Lookup(name string) (expect.StepKind, bool) {
	def, err := r.Resolve(name)
	if err != nil {
		return 0, false
	}
	return def.Kind, true
}

// Build constructs the named step from args after checking the arity.
func (r *Registry) Build(name string, args []any) (expect.Step, error) {
	def, err := r.Resolve(name)
	if err != nil {
		return expect.Step{}, err
	}
	if len(args) < def.MinArgs || (def.MaxArgs >= 0 && len(args) > def.MaxArgs) {
		return expect.Step{}, fmt.Errorf("%s: %s", def.Usage(), arityText(def, len(args)))
	}
	step, err := def.New(args)
	if err != nil {
		return expect.Step{}, fmt.Errorf("%s: %w", def.Usage(), err)
	}
	return step, nil
}

func arityText(def Definition, got int) string {
	switch {
	case def.MaxArgs < 0:
		return fmt.Sprintf("expects at least %d argument(s), got %d", def.MinArgs, got)
	case def.MinArgs == def.MaxArgs:
		return fmt.Sprintf("expects %d argument(s), got %d", def.MinArgs, got)
	default:
		return fmt.Sprintf("expects %d to %d arguments, got %d", def.MinArgs, def.MaxArgs, got)
	}
}

// List returns the definitions in a category sorted by name. If category is
// empty, returns all definitions.
func (r *Registry) List(category string) []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Definition
	for _, def := range r.steps {
		if category == "" || def.Category == category {
			result = append(result, def)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Describe returns a one-line description of a step.
func (r *Registry) Describe(name string) (string, error) {
	def, err := r.Resolve(name)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s [%s]: %s", def.Usage(), def.Kind, def.Description), nil
}

// Names returns all registered step names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.steps))
	for name := range r.steps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Categories returns all unique categories, sorted.
func (r *Registry) Categories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	for _, def := range r.steps {
		if def.Category != "" {
			seen[def.Category] = true
		}
	}

	result := make([]string, 0, len(seen))
	for c := range seen {
		result = append(result, c)
	}
	sort.Strings(result)
	return result
}

// MatchGlob returns all definitions matching a glob pattern like "to_be_*".
func (r *Registry) MatchGlob(pattern string) []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Definition
	for name, def := range r.steps {
		if matchGlob(pattern, name) {
			result = append(result, def)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// matchGlob checks name against a shell pattern. Malformed patterns match nothing.
func matchGlob(pattern, name string) bool {
	ok, err := path.Match(pattern, name)
	return err == nil && ok
}
