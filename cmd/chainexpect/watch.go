package main

import (
	"context"
	"os"
	"os/signal"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cgast/chainexpect/internal/inspector"
	"github.com/cgast/chainexpect/internal/watch"
	"github.com/cgast/chainexpect/pkg/events"
)

var (
	watchOpts    runOptions
	watchInspect string
)

var watchCmd = &cobra.Command{
	Use:   "watch <suite.yaml>...",
	Short: "Run suites and run them again whenever they change",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		sess, err := openSession(!watchOpts.noHistory)
		if err != nil {
			return err
		}
		defer sess.Close()

		rerun := func(ctx context.Context, paths []string) {
			for _, path := range paths {
				if _, err := sess.runSuiteFile(ctx, path, watchOpts); err != nil {
					logger.Error("run failed", zap.String("suite", path), zap.Error(err))
				}
			}
		}

		w, err := watch.New(func(ctx context.Context, changed []string) {
			var targets []string
			for _, path := range args {
				if slices.Contains(changed, absPath(path)) {
					targets = append(targets, path)
				}
			}
			sess.bus.Publish(events.NewEvent(events.EventWatchTriggered, map[string]any{"paths": changed}))
			rerun(ctx, targets)
		}, watch.WithLogger(logger), watch.WithDebounce(cfg.Watch.Debounce))
		if err != nil {
			return err
		}
		for _, path := range args {
			if err := w.Add(path); err != nil {
				return err
			}
		}

		rerun(ctx, args)
		logger.Info("watching suites", zap.Strings("paths", args))

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return w.Run(gctx) })
		if watchInspect != "" {
			var runs inspector.RunStore
			if sess.store != nil {
				runs = sess.store
			}
			srv := inspector.New(sess.bus, runs, steps, logger)
			g.Go(func() error { return srv.ListenAndServe(gctx, watchInspect) })
		}
		return g.Wait()
	},
}

func init() {
	watchCmd.Flags().StringArrayVarP(&watchOpts.params, "param", "p", nil, "Suite parameter as key=value (repeatable)")
	watchCmd.Flags().BoolVar(&watchOpts.failFast, "fail-fast", false, "Skip remaining checks after the first failure")
	watchCmd.Flags().BoolVar(&watchOpts.noHistory, "no-history", false, "Do not record runs")
	watchCmd.Flags().StringVar(&watchInspect, "inspect", "", "Serve live events and history on this address (e.g. :7070)")
}
