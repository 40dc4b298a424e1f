package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/schemagen/usrgen/config"
	"github.com/schemagen/usrgen/parser"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file and a sample schema",
	Long: `Create a starting point for a new project:

  1. The configuration file (--config, default usrgen.yaml)
  2. The schema and output directories
  3. A sample declaration, user.yaml, in the schema directory

Existing files are left alone unless --force is given.

Examples:
  usrgen init
  usrgen init --targets pydantic,zod -i defs -o gen`,
	RunE: runInit,
}

var (
	initTargets []string
	initForce   bool
)

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringSliceVar(&initTargets, "targets", nil, "targets to generate (default pydantic)")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite existing files")
}

const sampleSchema = `schema: User
description: Application user
fields:
  - name: id
    type: int
    primary_key: true
    auto_increment: true
  - name: email
    type: str
    format: email
    unique: true
  - name: name
    type: str
    min_length: 1
    max_length: 100
  - name: password_hash
    type: str
    exclude_from: [public]
  - name: created_at
    type: datetime
    auto_now_add: true
variants:
  create: [email, name]
  public: [id, email, name, password_hash]
`

func runInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if inputDir != "" {
		cfg.InputDir = inputDir
	}
	if outputDir != "" {
		cfg.OutputDir = outputDir
	}
	if len(initTargets) > 0 {
		cfg.Targets = initTargets
	}
	sample := filepath.Join(cfg.InputDir, "user.yaml")

	if !initForce {
		for _, path := range []string{cfgFile, sample} {
			_, err := os.Stat(path)
			switch {
			case err == nil:
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			case !errors.Is(err, fs.ErrNotExist):
				return err
			}
		}
	}

	content, err := generateConfig(cfg)
	if err != nil {
		return err
	}
	if err := checkSample(); err != nil {
		return fmt.Errorf("sample schema: %w", err)
	}

	out := cmd.OutOrStdout()
	for _, dir := range []string{cfg.InputDir, cfg.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
		fmt.Fprintf(out, "  %s %s/\n", checkMark, dir)
	}
	if err := os.WriteFile(cfgFile, content, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	fmt.Fprintf(out, "  %s %s\n", checkMark, cfgFile)
	if err := os.WriteFile(sample, []byte(sampleSchema), 0o644); err != nil {
		return fmt.Errorf("write sample schema: %w", err)
	}
	fmt.Fprintf(out, "  %s %s\n", checkMark, sample)

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Run 'usrgen generate' to generate models.")
	return nil
}

func checkSample() error {
	decls, err := parser.Decode(strings.NewReader(sampleSchema), "user.yaml")
	if err != nil {
		return err
	}
	for _, d := range decls {
		if _, _, err := parser.Parse(d); err != nil {
			return err
		}
	}
	return nil
}

func generateConfig(cfg *config.Config) ([]byte, error) {
	targets, err := yaml.Marshal(cfg.Targets)
	if err != nil {
		return nil, fmt.Errorf("encode targets: %w", err)
	}
	content := fmt.Sprintf(`# usrgen configuration
# Generated by 'usrgen init'

input_dir: %q
output_dir: %q

targets:
%s
# warn, error or allow
empty_variant: %s
concurrency: %d
line_endings: %s

logging:
  level: %s
  format: %s

watch:
  debounce: %s
`, cfg.InputDir, cfg.OutputDir, indent(string(targets)), cfg.EmptyVariant, cfg.Concurrency,
		cfg.LineEndings, cfg.Logging.Level, cfg.Logging.Format, cfg.Watch.Debounce)
	return []byte(content), nil
}

func indent(s string) string {
	lines := strings.Split(strings.TrimSuffix(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n") + "\n"
}
