package runner_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/cgast/chainexpect/pkg/events"
	"github.com/cgast/chainexpect/pkg/expect"
	"github.com/cgast/chainexpect/pkg/history"
	"github.com/cgast/chainexpect/pkg/registry"
	"github.com/cgast/chainexpect/pkg/runner"
	"github.com/cgast/chainexpect/pkg/spec"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type builder struct {
	reg   *registry.Registry
	extra map[string]expect.Step
}

func (b builder) Build(name string, args []any) (expect.Step, error) {
	if s, ok := b.extra[name]; ok {
		return s, nil
	}
	return b.reg.Build(name, args)
}

func newBuilder() builder {
	return builder{
		reg: registry.Builtins(),
		extra: map[string]expect.Step{
			"never":      expect.Map(func(any) expect.Future { return expect.NewPromise() }),
			"when_ready": expect.WhenReady(),
		},
	}
}

func step(name string, args ...any) spec.StepRef {
	return spec.StepRef{Name: name, Args: args}
}

func suiteOf(checks ...spec.Check) spec.Suite {
	return spec.Suite{
		APIVersion: spec.APIVersion,
		Kind:       "Suite",
		Meta:       spec.SuiteMeta{Name: "numbers"},
		Checks:     checks,
	}
}

func statuses(r runner.SuiteResult) []runner.Status {
	out := make([]runner.Status, len(r.Checks))
	for i, c := range r.Checks {
		out[i] = c.Status
	}
	return out
}

func TestRunMixedOutcomes(t *testing.T) {
	suite := suiteOf(
		spec.Check{Name: "count", Subject: []any{1, 2, 3}, Steps: []spec.StepRef{step("count"), step("to_equal", 3)}},
		spec.Check{Name: "order", Subject: 5, Line: 12, Steps: []spec.StepRef{step("to_be_less_than", 3)}},
		spec.Check{Name: "unknown", Subject: 1, Steps: []spec.StepRef{step("nope")}},
		spec.Check{Name: "later", Subject: 1, Skip: true, Steps: []spec.StepRef{step("to_equal", 1)}},
	)
	suite.Source = "suites/numbers.yaml"

	r := runner.New(newBuilder(), runner.WithLogger(zaptest.NewLogger(t)), runner.WithConcurrency(4))
	result, err := r.Run(context.Background(), suite)
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, "numbers", result.Suite)
	assert.False(t, result.Passed)
	assert.Equal(t, []runner.Status{runner.StatusPass, runner.StatusFail, runner.StatusError, runner.StatusSkipped}, statuses(result))

	order := result.Checks[1]
	assert.Contains(t, order.Report, "assertion failed:")
	assert.Contains(t, order.Report, "at: suites/numbers.yaml:12")
	assert.Contains(t, order.Report, "not less than boundary")

	assert.Contains(t, result.Checks[2].Error, "step 0 (nope)")
	assert.Equal(t, 1, result.Count(runner.StatusFail))
}

func TestRunAllPass(t *testing.T) {
	suite := suiteOf(
		spec.Check{Name: "odd", Subject: []any{1, 3, 5}, Steps: []spec.StepRef{step("all"), step("not"), step("to_equal", 4)}},
		spec.Check{Name: "text", Subject: "Hello", Steps: []spec.StepRef{step("map", "upper"), step("to_equal", "HELLO")}},
	)
	result, err := runner.New(newBuilder()).Run(context.Background(), suite)
	require.NoError(t, err)
	assert.True(t, result.Passed)
	assert.Equal(t, 2, result.Count(runner.StatusPass))
}

func TestRunFailFast(t *testing.T) {
	suite := suiteOf(
		spec.Check{Name: "first", Subject: 1, Steps: []spec.StepRef{step("to_equal", 2)}},
		spec.Check{Name: "second", Subject: 1, Steps: []spec.StepRef{step("to_equal", 1)}},
		spec.Check{Name: "third", Subject: 1, Steps: []spec.StepRef{step("to_equal", 1)}},
	)
	r := runner.New(newBuilder(), runner.WithFailFast(true), runner.WithConcurrency(1))
	result, err := r.Run(context.Background(), suite)
	require.NoError(t, err)
	assert.Equal(t, []runner.Status{runner.StatusFail, runner.StatusSkipped, runner.StatusSkipped}, statuses(result))
}

func TestRunPendingTimeout(t *testing.T) {
	suite := suiteOf(
		spec.Check{Name: "stuck", Subject: 1, Steps: []spec.StepRef{step("never"), step("when_ready"), step("to_equal", 1)}},
	)
	r := runner.New(newBuilder(), runner.WithTimeout(20*time.Millisecond))
	result, err := r.Run(context.Background(), suite)
	require.NoError(t, err)
	require.Len(t, result.Checks, 1)
	assert.Equal(t, runner.StatusError, result.Checks[0].Status)
	assert.Contains(t, result.Checks[0].Error, "timed out")
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	suite := suiteOf(spec.Check{Name: "a", Subject: 1, Steps: []spec.StepRef{step("to_equal", 1)}})
	result, err := runner.New(newBuilder()).Run(ctx, suite)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []runner.Status{runner.StatusSkipped}, statuses(result))
}

func TestRunSubjectFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "greeting.txt"), []byte("hello world\n"), 0o644))

	suite := suiteOf(
		spec.Check{Name: "file", SubjectFile: "greeting.txt", Steps: []spec.StepRef{step("to_contain_substr", "world")}},
		spec.Check{Name: "missing", SubjectFile: "absent.txt", Steps: []spec.StepRef{step("to_be_empty")}},
	)
	suite.Source = filepath.Join(dir, "suite.yaml")

	result, err := runner.New(newBuilder()).Run(context.Background(), suite)
	require.NoError(t, err)
	assert.Equal(t, []runner.Status{runner.StatusPass, runner.StatusError}, statuses(result))
	assert.Contains(t, result.Checks[1].Error, "absent.txt")
}

func TestRunSubjectReader(t *testing.T) {
	var asked string
	read := func(path string) ([]byte, error) {
		asked = path
		return nil, errors.New("denied by policy")
	}
	suite := suiteOf(spec.Check{Name: "guarded", SubjectFile: "secret.txt", Steps: []spec.StepRef{step("to_be_empty")}})
	suite.Source = filepath.Join("suites", "s.yaml")

	result, err := runner.New(newBuilder(), runner.WithSubjectReader(read)).Run(context.Background(), suite)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("suites", "secret.txt"), asked)
	assert.Equal(t, runner.StatusError, result.Checks[0].Status)
	assert.Contains(t, result.Checks[0].Error, "denied by policy")
}

func TestRunPublishesEventsAndSavesHistory(t *testing.T) {
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()
	bus := events.NewMemoryBus(0)
	defer bus.Close()

	suite := suiteOf(
		spec.Check{Name: "ok", Subject: 2, Steps: []spec.StepRef{step("to_be_greater_than", 1)}},
		spec.Check{Name: "bad", Subject: 2, Steps: []spec.StepRef{step("to_be_greater_than", 3)}},
	)
	r := runner.New(newBuilder(), runner.WithEvents(bus), runner.WithStore(store))
	result, err := r.Run(context.Background(), suite)
	require.NoError(t, err)

	var types []events.EventType
	for _, e := range bus.History(time.Time{}) {
		types = append(types, e.Type)
	}
	assert.Equal(t, []events.EventType{
		events.EventSuiteStart,
		events.EventCheckStart, events.EventCheckPass,
		events.EventCheckStart, events.EventCheckFail,
		events.EventSuiteEnd,
		events.EventHistorySaved,
	}, types)

	saved, err := store.GetRun(result.RunID)
	require.NoError(t, err)
	assert.Equal(t, "numbers", saved.Suite)
	require.Len(t, saved.Failed(), 1)
	assert.Equal(t, "bad", saved.Failed()[0].Name)
	assert.Contains(t, saved.Failed()[0].Report, "not greater than boundary")
}

func TestRunExampleSuite(t *testing.T) {
	suite, err := spec.LoadSuite(filepath.Join("..", "..", "examples", "numbers.yaml"), nil)
	require.NoError(t, err)
	reg := registry.Builtins()
	require.True(t, spec.ValidateSuite(suite, reg).Valid())
	assert.Equal(t, "platform", suite.Meta.Owner)

	result, err := runner.New(reg).Run(context.Background(), suite)
	require.NoError(t, err)
	for _, c := range result.Checks {
		assert.Equal(t, runner.StatusPass, c.Status, "%s: %s%s", c.Name, c.Report, c.Error)
	}
}
