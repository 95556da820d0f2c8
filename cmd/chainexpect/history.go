package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyKeep  int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded runs",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.ListRuns(historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}
		for _, r := range runs {
			status := "pass"
			if !r.Passed {
				status = "fail"
			}
			fmt.Printf("%s %s  %s  %s %s\n",
				printer.Status(status),
				r.ID,
				r.Started.Local().Format(time.DateTime),
				r.Suite,
				printer.Dim(fmt.Sprintf("(%d checks, %d failed)", len(r.Checks), len(r.Failed()))))
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a recorded run with its failure reports",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()

		run, err := store.GetRun(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s %s\n", run.Suite, printer.Dim(run.ID))
		if run.Source != "" {
			fmt.Printf("  source:  %s\n", run.Source)
		}
		fmt.Printf("  started: %s\n  took:    %s\n\n", run.Started.Local().Format(time.DateTime), run.Duration)
		for _, c := range run.Checks {
			fmt.Printf("  %s %s\n", printer.Status(c.Status), c.Name)
			text := c.Report
			if text == "" && c.Status != "skipped" {
				text = c.Error
			}
			if strings.TrimSpace(text) != "" {
				fmt.Println(indent(text, "      "))
			}
		}
		return nil
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the newest runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()

		keep := historyKeep
		if !cmd.Flags().Changed("keep") {
			keep = cfg.History.MaxEntries
		}
		n, err := store.Prune(keep)
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d run(s).\n", n)
		return nil
	},
}

func init() {
	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum runs to list (0 for all)")
	historyPruneCmd.Flags().IntVar(&historyKeep, "keep", 0, "Runs to keep (default history.max_entries)")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyPruneCmd)
}
