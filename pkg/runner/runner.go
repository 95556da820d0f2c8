// Package runner evaluates declarative suites against the step registry.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cgast/chainexpect/pkg/expect"
	"github.com/cgast/chainexpect/pkg/history"
	"github.com/cgast/chainexpect/pkg/spec"
)

// StepBuilder turns a step name and arguments into a chain step.
// This avoids a direct dependency on pkg/registry.
type StepBuilder interface {
	Build(name string, args []any) (expect.Step, error)
}

// EventPublisher is the interface for emitting events during a run.
// This avoids a direct dependency on pkg/events.
type EventPublisher interface {
	PublishRunEvent(eventType string, data any, checkIndex int, duration time.Duration)
}

// RunStore persists finished runs.
type RunStore interface {
	SaveRun(run history.Run) error
}

// Event types published during a run. They match the names in pkg/events.
const (
	eventSuiteStart   = "suite.start"
	eventSuiteEnd     = "suite.end"
	eventCheckStart   = "check.start"
	eventCheckPass    = "check.pass"
	eventCheckFail    = "check.fail"
	eventCheckError   = "check.error"
	eventCheckSkipped = "check.skipped"
	eventHistorySaved = "history.saved"
)

// Status is the outcome of a single check.
type Status string

const (
	StatusPass    Status = "pass"
	StatusFail    Status = "fail"
	StatusError   Status = "error"
	StatusSkipped Status = "skipped"
)

// CheckResult records the outcome of a single check.
type CheckResult struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Report   string        `json:"report,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// SuiteResult holds the outcome of a suite run.
type SuiteResult struct {
	RunID    string        `json:"run_id"`
	Suite    string        `json:"suite"`
	Source   string        `json:"source,omitempty"`
	Checks   []CheckResult `json:"checks"`
	Passed   bool          `json:"passed"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
}

// Count returns how many checks ended with status.
func (r SuiteResult) Count(status Status) int {
	n := 0
	for _, c := range r.Checks {
		if c.Status == status {
			n++
		}
	}
	return n
}

// Record converts the result into a history entry.
func (r SuiteResult) Record() history.Run {
	run := history.Run{
		ID:       r.RunID,
		Suite:    r.Suite,
		Source:   r.Source,
		Started:  r.Started,
		Duration: r.Duration,
		Passed:   r.Passed,
		Checks:   make([]history.CheckRecord, len(r.Checks)),
	}
	for i, c := range r.Checks {
		run.Checks[i] = history.CheckRecord{
			Name:     c.Name,
			Status:   string(c.Status),
			Report:   c.Report,
			Error:    c.Error,
			Duration: c.Duration,
		}
	}
	return run
}

// Runner evaluates suites.
type Runner struct {
	steps       StepBuilder
	logger      *zap.Logger
	events      EventPublisher
	store       RunStore
	formatter   expect.Formatter
	readFile    func(path string) ([]byte, error)
	concurrency int
	failFast    bool
	timeout     time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithEvents publishes run events to p.
func WithEvents(p EventPublisher) Option {
	return func(r *Runner) { r.events = p }
}

// WithStore saves every finished run to s.
func WithStore(s RunStore) Option {
	return func(r *Runner) { r.store = s }
}

// WithFormatter renders failure reports with f.
func WithFormatter(f expect.Formatter) Option {
	return func(r *Runner) { r.formatter = f }
}

// WithSubjectReader reads subject_file contents through read.
func WithSubjectReader(read func(path string) ([]byte, error)) Option {
	return func(r *Runner) { r.readFile = read }
}

// WithConcurrency bounds how many checks run at once.
func WithConcurrency(n int) Option {
	return func(r *Runner) { r.concurrency = n }
}

// WithFailFast skips the checks not yet started once one fails.
func WithFailFast(on bool) Option {
	return func(r *Runner) { r.failFast = on }
}

// WithTimeout bounds how long a single check may wait on pending results.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// New creates a Runner building steps with steps.
func New(steps StepBuilder, opts ...Option) *Runner {
	r := &Runner{
		steps:       steps,
		logger:      zap.NewNop(),
		formatter:   expect.DefaultFormatter,
		readFile:    os.ReadFile,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.concurrency < 1 {
		r.concurrency = 1
	}
	return r
}

// Run evaluates every check of suite. Check failures are reported in the
// result; the error is only set when the run itself could not complete.
func (r *Runner) Run(ctx context.Context, suite spec.Suite) (SuiteResult, error) {
	result := SuiteResult{
		RunID:   uuid.NewString(),
		Suite:   suite.Meta.Name,
		Source:  suite.Source,
		Checks:  make([]CheckResult, len(suite.Checks)),
		Started: time.Now(),
	}
	log := r.logger.With(zap.String("suite", result.Suite), zap.String("run_id", result.RunID))
	log.Info("suite started", zap.Int("checks", len(suite.Checks)))
	r.publish(eventSuiteStart, map[string]any{
		"run_id": result.RunID,
		"suite":  result.Suite,
		"checks": len(suite.Checks),
	}, 0, 0)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(r.concurrency)

	dir := "."
	if suite.Source != "" {
		dir = filepath.Dir(suite.Source)
	}

	for i, check := range suite.Checks {
		if check.Skip {
			result.Checks[i] = r.skip(i, check, "marked skip")
			continue
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				result.Checks[i] = r.skip(i, check, "not run")
				return nil
			}
			cr := r.runCheck(gctx, log, dir, suite.Source, i, check)
			result.Checks[i] = cr
			if r.failFast && cr.Status != StatusPass && cr.Status != StatusSkipped {
				cancel()
			}
			return nil
		})
	}
	g.Wait()

	result.Duration = time.Since(result.Started)
	result.Passed = result.Count(StatusFail) == 0 && result.Count(StatusError) == 0

	log.Info("suite finished",
		zap.Bool("passed", result.Passed),
		zap.Int("failed", result.Count(StatusFail)),
		zap.Int("errors", result.Count(StatusError)),
		zap.Duration("duration", result.Duration))
	r.publish(eventSuiteEnd, map[string]any{
		"run_id": result.RunID,
		"passed": result.Passed,
	}, len(suite.Checks)-1, result.Duration)

	if r.store != nil {
		if err := r.store.SaveRun(result.Record()); err != nil {
			return result, fmt.Errorf("save run %s: %w", result.RunID, err)
		}
		r.publish(eventHistorySaved, map[string]any{"run_id": result.RunID}, 0, 0)
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (r *Runner) skip(i int, check spec.Check, reason string) CheckResult {
	r.publish(eventCheckSkipped, map[string]any{"check": check.Name, "reason": reason}, i, 0)
	return CheckResult{Name: check.Name, Status: StatusSkipped, Error: reason}
}

func (r *Runner) runCheck(ctx context.Context, log *zap.Logger, dir, source string, i int, check spec.Check) CheckResult {
	log = log.With(zap.String("check", check.Name), zap.Int("index", i))
	log.Debug("check started", zap.Int("steps", len(check.Steps)))
	r.publish(eventCheckStart, map[string]any{"check": check.Name}, i, 0)

	start := time.Now()
	cr := r.evaluate(ctx, dir, source, check)
	cr.Duration = time.Since(start)

	switch cr.Status {
	case StatusPass:
		log.Debug("check passed", zap.Duration("duration", cr.Duration))
		r.publish(eventCheckPass, map[string]any{"check": check.Name}, i, cr.Duration)
	case StatusFail:
		log.Info("check failed", zap.Duration("duration", cr.Duration))
		r.publish(eventCheckFail, map[string]any{"check": check.Name, "report": cr.Report}, i, cr.Duration)
	case StatusSkipped:
		log.Debug("check cancelled", zap.String("reason", cr.Error))
		r.publish(eventCheckSkipped, map[string]any{"check": check.Name, "reason": cr.Error}, i, cr.Duration)
	default:
		log.Warn("check errored", zap.String("error", cr.Error))
		r.publish(eventCheckError, map[string]any{"check": check.Name, "error": cr.Error}, i, cr.Duration)
	}
	return cr
}

func (r *Runner) evaluate(ctx context.Context, dir, source string, check spec.Check) CheckResult {
	cr := CheckResult{Name: check.Name}
	fail := func(err error) CheckResult {
		cr.Status = StatusError
		cr.Error = err.Error()
		return cr
	}

	subject, err := check.ReadSubject(dir, r.readFile)
	if err != nil {
		return fail(err)
	}

	steps := make([]expect.Step, len(check.Steps))
	for j, ref := range check.Steps {
		step, err := r.steps.Build(ref.Name, ref.Args)
		if err != nil {
			return fail(fmt.Errorf("step %d (%s): %w", j, ref.Name, err))
		}
		steps[j] = step
	}

	loc := expect.SourceLoc{Function: check.Name, File: source, Line: check.Line}
	out, err := expect.Evaluate(loc, subject, steps...)
	if err != nil {
		return fail(err)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	res, err := expect.Resolve(ctx, out)
	switch {
	case errors.Is(err, context.Canceled):
		cr.Status = StatusSkipped
		cr.Error = "cancelled"
		return cr
	case errors.Is(err, context.DeadlineExceeded):
		return fail(fmt.Errorf("timed out after %s waiting for pending result", r.timeout))
	case err != nil:
		return fail(err)
	}

	if res.Passed() {
		cr.Status = StatusPass
		return cr
	}
	cr.Status = StatusFail
	var f *expect.Failure
	if errors.As(res.Err(), &f) {
		cr.Report = r.formatter.Format(f)
	}
	return cr
}

func (r *Runner) publish(eventType string, data any, index int, d time.Duration) {
	if r.events != nil {
		r.events.PublishRunEvent(eventType, data, index, d)
	}
}
