// Command chainexpect runs declarative assertion suites.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cgast/chainexpect/internal/config"
	"github.com/cgast/chainexpect/pkg/registry"
	"github.com/cgast/chainexpect/pkg/style"
)

var (
	verbose   bool
	configDir string
	colorFlag string
	cfg       config.Config
	logger    *zap.Logger
	printer   *style.Printer
	useColor  bool
	steps     *registry.Registry
)

// errChecksFailed signals a non-zero exit without an extra message.
var errChecksFailed = errors.New("checks failed")

var rootCmd = &cobra.Command{
	Use:   "chainexpect",
	Short: "Run chains of expectations against declarative subjects",
	Long: `chainexpect evaluates suites of checks. Each check has a subject and a
chain of steps: zero or more modifiers followed by one assertion.

  checks:
    - name: odd numbers
      subject: [1, 3, 5]
      steps: [all, not, to_equal: 4]`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(filepath.Join(configDir, "config.yaml"))
		if err != nil {
			return err
		}

		zc := zap.NewProductionConfig()
		if verbose || cfg.LogLevel == "debug" {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		} else if lvl, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
			zc.Level = zap.NewAtomicLevelAt(lvl)
		}
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if colorFlag != "" {
			cfg.Color = colorFlag
		}
		useColor = wantColor(cfg.Color)
		printer = style.NewPrinter(useColor)
		steps = registry.Builtins()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func wantColor(mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", config.Dir, "Directory holding config.yaml and platforms.yaml")
	rootCmd.PersistentFlags().StringVar(&colorFlag, "color", "", "Color output: auto, always or never")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(stepsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errChecksFailed) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
