package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cgast/chainexpect/internal/config"
	"github.com/cgast/chainexpect/internal/sandbox"
	"github.com/cgast/chainexpect/pkg/events"
	"github.com/cgast/chainexpect/pkg/history"
	ghpublish "github.com/cgast/chainexpect/pkg/publish/github"
	"github.com/cgast/chainexpect/pkg/runner"
	"github.com/cgast/chainexpect/pkg/spec"
	"github.com/cgast/chainexpect/pkg/style"
)

type runOptions struct {
	params      []string
	failFast    bool
	concurrency int
	timeout     time.Duration
	noHistory   bool
	jsonOut     bool
	showEvents  bool
	publish     bool
	repo        string
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run <suite.yaml>...",
	Short: "Run one or more suites",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		sess, err := openSession(!runOpts.noHistory)
		if err != nil {
			return err
		}
		defer sess.Close()

		failed := false
		for _, path := range args {
			ok, err := sess.runSuiteFile(ctx, path, runOpts)
			if err != nil {
				return err
			}
			failed = failed || !ok
		}
		if failed {
			return errChecksFailed
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringArrayVarP(&runOpts.params, "param", "p", nil, "Suite parameter as key=value (repeatable)")
	runCmd.Flags().BoolVar(&runOpts.failFast, "fail-fast", false, "Skip remaining checks after the first failure")
	runCmd.Flags().IntVarP(&runOpts.concurrency, "concurrency", "j", 0, "Checks run at once (default from config)")
	runCmd.Flags().DurationVar(&runOpts.timeout, "timeout", 0, "Per-check wait for pending results (default from config)")
	runCmd.Flags().BoolVar(&runOpts.noHistory, "no-history", false, "Do not record the run")
	runCmd.Flags().BoolVar(&runOpts.jsonOut, "json", false, "Print the result as JSON")
	runCmd.Flags().BoolVar(&runOpts.showEvents, "events", false, "Print run events to stderr as JSON lines")
	runCmd.Flags().BoolVar(&runOpts.publish, "publish", false, "Open a GitHub issue when checks fail")
	runCmd.Flags().StringVar(&runOpts.repo, "repo", "", "Repository for --publish as owner/name (default from platforms.yaml)")
}

func parseParams(raw []string) (map[string]string, error) {
	params := make(map[string]string, len(raw))
	for _, p := range raw {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid param %q, expected key=value", p)
		}
		params[k] = v
	}
	return params, nil
}

// loadSuite reads and validates a suite file.
func loadSuite(path string, params map[string]string) (spec.Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return spec.Suite{}, fmt.Errorf("read suite %s: %w", path, err)
	}
	if missing, err := spec.Unresolved(data, params); err == nil && len(missing) > 0 {
		logger.Warn("unresolved suite variables", zap.String("suite", path), zap.Strings("names", missing))
	}

	suite, err := spec.LoadSuite(path, params)
	if err != nil {
		return spec.Suite{}, err
	}
	if vr := spec.ValidateSuite(suite, steps); !vr.Valid() {
		return spec.Suite{}, fmt.Errorf("%s: %s", path, vr.Error())
	}
	return suite, nil
}

func openHistory() (*history.Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.History.Path), 0755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	return history.Open(cfg.History.Path)
}

// session holds what consecutive runs share.
type session struct {
	bus   *events.MemoryBus
	store *history.Store
	guard *sandbox.Guard
}

func openSession(record bool) (*session, error) {
	guard, err := sandbox.New(sandbox.Config{
		AllowedPaths: cfg.Subjects.AllowedPaths,
		DeniedPaths:  cfg.Subjects.DeniedPaths,
		MaxFileSize:  cfg.Subjects.MaxFileSize,
	})
	if err != nil {
		return nil, err
	}
	s := &session{bus: events.NewMemoryBus(0), guard: guard}
	if cfg.History.Persist && record {
		if s.store, err = openHistory(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *session) Close() {
	s.bus.Close()
	if s.store != nil {
		s.store.Close()
	}
}

func (s *session) runSuiteFile(ctx context.Context, path string, opts runOptions) (bool, error) {
	params, err := parseParams(opts.params)
	if err != nil {
		return false, err
	}
	suite, err := loadSuite(path, params)
	if err != nil {
		return false, err
	}

	concurrency := cfg.Concurrency
	if opts.concurrency > 0 {
		concurrency = opts.concurrency
	}
	timeout := cfg.Timeout
	if opts.timeout > 0 {
		timeout = opts.timeout
	}
	ropts := []runner.Option{
		runner.WithLogger(logger),
		runner.WithEvents(s.bus),
		runner.WithConcurrency(concurrency),
		runner.WithFailFast(opts.failFast || cfg.FailFast),
		runner.WithTimeout(timeout),
		runner.WithFormatter(style.Formatter(useColor)),
		runner.WithSubjectReader(s.guard.ReadFile),
	}
	if s.store != nil {
		ropts = append(ropts, runner.WithStore(s.store))
	}

	started := time.Now()
	result, err := runner.New(steps, ropts...).Run(ctx, suite)
	if err != nil {
		return false, err
	}

	if s.store != nil && cfg.History.MaxEntries > 0 {
		if n, err := s.store.Prune(cfg.History.MaxEntries); err != nil {
			logger.Warn("prune history", zap.Error(err))
		} else if n > 0 {
			logger.Debug("pruned history", zap.Int("removed", n))
		}
	}

	if opts.publish && !result.Passed {
		if err := publishRun(ctx, s.bus, result.Record(), opts.repo); err != nil {
			return false, err
		}
	}

	if opts.showEvents {
		enc := json.NewEncoder(os.Stderr)
		for _, e := range s.bus.History(started) {
			_ = enc.Encode(e)
		}
	}

	if opts.jsonOut {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return false, err
		}
		fmt.Println(string(out))
	} else {
		printResult(result)
	}
	return result.Passed, nil
}

func printResult(result runner.SuiteResult) {
	fmt.Printf("%s %s\n", result.Suite, printer.Dim(result.RunID))
	for _, c := range result.Checks {
		fmt.Printf("  %s %s %s\n", printer.Status(string(c.Status)), c.Name, printer.Dim(c.Duration.Round(time.Microsecond).String()))
		switch {
		case c.Report != "":
			fmt.Println(indent(c.Report, "      "))
		case c.Error != "" && c.Status != runner.StatusSkipped:
			fmt.Println(indent(c.Error, "      "))
		}
	}
	fmt.Println(printer.Summary(
		result.Count(runner.StatusPass),
		result.Count(runner.StatusFail)+result.Count(runner.StatusError),
		result.Count(runner.StatusSkipped),
	))
}

func indent(text, prefix string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = prefix + l
		}
	}
	return strings.Join(lines, "\n")
}

func publishRun(ctx context.Context, bus *events.MemoryBus, run history.Run, repo string) error {
	plat, err := config.LoadPlatformConfig(filepath.Join(configDir, "platforms.yaml"))
	if err != nil {
		return err
	}
	if repo == "" {
		repo = plat.GitHub.Repo()
	}
	if repo == "" {
		return errors.New("--publish needs --repo or github.default_owner and default_repo in platforms.yaml")
	}
	owner, name, err := ghpublish.SplitRepo(repo)
	if err != nil {
		return err
	}

	var copts []ghpublish.ClientOption
	if plat.GitHub.BaseURL != "" {
		copts = append(copts, ghpublish.WithBaseURL(plat.GitHub.BaseURL))
	}
	client, err := ghpublish.NewClient(plat.GitHub.Token, copts...)
	if err != nil {
		return err
	}

	issue, err := ghpublish.NewIssuePublisher(client, owner, name, plat.GitHub.Labels...).PublishRun(ctx, run)
	if err != nil {
		return err
	}
	bus.Publish(events.NewEvent(events.EventIssuePublished, map[string]any{
		"run_id": run.ID,
		"number": issue.Number,
		"url":    issue.URL,
	}))
	logger.Info("issue published", zap.Int("number", issue.Number), zap.String("url", issue.URL))
	fmt.Fprintf(os.Stderr, "Opened issue #%d: %s\n", issue.Number, issue.URL)
	return nil
}
