package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that generated files are up to date",
	Long: `Regenerate every configured target in memory and compare the result with
the files below the output directory. Header timestamps are ignored.
Nothing is written.

Exits non-zero when any file is missing or would change.

Examples:
  usrgen validate
  usrgen validate --diff`,
	RunE: runValidate,
}

var validateShowDiff bool

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateShowDiff, "diff", false, "print a diff for every changed file")
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, e, _, err := setup(nil)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	reg, err := e.LoadSchemas(ctx, cfg.InputDir)
	if err != nil {
		return err
	}
	vr, err := e.Validate(ctx, reg.All())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if vr.UpToDate {
		fmt.Fprintf(out, "  %s %d schemas, generated files are up to date\n", checkMark, reg.Len())
		return nil
	}
	for _, s := range vr.Stale {
		fmt.Fprintf(out, "  %s %s (%s)\n", crossMark, s.Path, s.Reason)
		if validateShowDiff && s.Diff != "" {
			fmt.Fprintln(out, s.Diff)
		}
	}
	for _, ge := range vr.Failed {
		fmt.Fprintf(out, "  %s %v\n", crossMark, ge)
	}
	return fmt.Errorf("generated files are out of date: %d stale, %d failed; run usrgen generate", len(vr.Stale), len(vr.Failed))
}
