package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateParams []string

var validateCmd = &cobra.Command{
	Use:   "validate <suite.yaml>...",
	Short: "Check suites for structural errors and unknown steps",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := parseParams(validateParams)
		if err != nil {
			return err
		}
		invalid := 0
		for _, path := range args {
			suite, err := loadSuite(path, params)
			if err != nil {
				invalid++
				fmt.Printf("%s %s\n  %v\n", printer.Status("error"), path, err)
				continue
			}
			fmt.Printf("%s %s %s\n", printer.Status("pass"), path, printer.Dim(fmt.Sprintf("(%d checks)", len(suite.Checks))))
		}
		if invalid > 0 {
			return fmt.Errorf("%d of %d suites invalid", invalid, len(args))
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringArrayVarP(&validateParams, "param", "p", nil, "Suite parameter as key=value (repeatable)")
}
