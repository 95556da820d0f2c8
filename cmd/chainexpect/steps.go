package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/cgast/chainexpect/pkg/registry"
)

var (
	stepsCategory string
	stepsGlob     string
)

var stepsCmd = &cobra.Command{
	Use:   "steps [name]",
	Short: "List available steps or describe one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			desc, err := steps.Describe(args[0])
			if err != nil {
				return err
			}
			fmt.Println(desc)
			return nil
		}

		var defs []registry.Definition
		if stepsGlob != "" {
			defs = steps.MatchGlob(stepsGlob)
		} else {
			defs = steps.List(stepsCategory)
		}
		if len(defs) == 0 {
			return fmt.Errorf("no steps match")
		}
		sort.SliceStable(defs, func(i, j int) bool { return defs[i].Category < defs[j].Category })

		category := ""
		for _, d := range defs {
			if d.Category != category {
				category = d.Category
				fmt.Println(printer.Dim(category + ":"))
			}
			fmt.Printf("  %-30s %s\n", d.Usage(), d.Description)
		}
		return nil
	},
}

func init() {
	stepsCmd.Flags().StringVarP(&stepsCategory, "category", "c", "", "Only list steps in this category")
	stepsCmd.Flags().StringVarP(&stepsGlob, "glob", "g", "", "Only list steps whose name matches a glob (e.g. to_be_*)")
}
