package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/schemagen/usrgen/engine"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate models for every configured target",
	Long: `Load every schema declaration below the input directory and write the
generated models of every configured target below the output directory.

A schema that fails to parse stops the run. Generation failures do not:
every other file is still written and all failures are listed.

Examples:
  usrgen generate
  usrgen generate --target zod
  usrgen generate --dry-run`,
	RunE: runGenerate,
}

var (
	generateTarget string
	generateDryRun bool
)

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVarP(&generateTarget, "target", "t", "", "generate a single configured target")
	generateCmd.Flags().BoolVar(&generateDryRun, "dry-run", false, "list the files that would be written")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, e, _, err := setup(nil)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	reg, err := e.LoadSchemas(ctx, cfg.InputDir)
	if err != nil {
		return err
	}

	var rep *engine.Report
	if generateTarget != "" {
		rep, err = e.GenerateTarget(ctx, reg.All(), generateTarget)
	} else {
		rep, err = e.GenerateAll(ctx, reg.All())
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if generateDryRun {
		for _, f := range rep.FS.AsFiles() {
			fmt.Fprintln(out, f.RelativePath)
		}
	} else if err := e.Write(ctx, rep); err != nil {
		return err
	}

	for _, ge := range rep.Failed {
		fmt.Fprintf(out, "  %s %v\n", crossMark, ge)
	}
	fmt.Fprintf(out, "%d models in %d files, %d failures\n", len(rep.Succeeded), rep.FS.Len(), len(rep.Failed))
	if !rep.OK() {
		return fmt.Errorf("generation failed for %d models", len(rep.Failed))
	}
	return nil
}

const (
	checkMark = "✓"
	crossMark = "✗"
)
