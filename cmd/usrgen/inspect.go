package main

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"github.com/schemagen/usrgen/usr"
	"github.com/schemagen/usrgen/variant"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [schema...]",
	Short: "Print the parsed representation of schemas",
	Long: `Load every declaration below the input directory and print the parsed
representation of the named schemas, or of all of them, followed by the
resolved field order of each variant.

Examples:
  usrgen inspect User
  usrgen inspect --variants-only`,
	RunE: runInspect,
}

var inspectVariantsOnly bool

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().BoolVar(&inspectVariantsOnly, "variants-only", false, "print only resolved variant fields")
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, e, _, err := setup(nil)
	if err != nil {
		return err
	}
	reg, err := e.LoadSchemas(cmd.Context(), cfg.InputDir)
	if err != nil {
		return err
	}

	schemas := reg.All()
	if len(args) > 0 {
		schemas = schemas[:0]
		for _, name := range args {
			s, ok := reg.Get(name)
			if !ok {
				return fmt.Errorf("schema %q not found; known: %v", name, reg.Names())
			}
			schemas = append(schemas, s)
		}
	}

	dump := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, SortKeys: true}
	out := cmd.OutOrStdout()
	for _, s := range schemas {
		if !inspectVariantsOnly {
			dump.Fdump(out, s)
		}
		if err := printVariants(cmd, s); err != nil {
			return err
		}
	}
	return nil
}

func printVariants(cmd *cobra.Command, s *usr.Schema) error {
	out := cmd.OutOrStdout()
	resolutions, err := variant.All(s)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\n", s.Name)
	for _, res := range resolutions {
		name := res.Variant
		if name == variant.Base {
			name = "(base)"
		}
		fmt.Fprintf(out, "  %-20s %v\n", name, res.Names())
		for _, d := range res.Dropped {
			if d.Reason == variant.NotListed {
				continue
			}
			fmt.Fprintf(out, "  %-20s   - %s (%s)\n", "", d.Field, d.Reason)
		}
	}
	return nil
}
