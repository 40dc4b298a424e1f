package engine

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/schemagen/usrgen/parser"
	"github.com/schemagen/usrgen/usr"
)

// IsDeclarationFile reports whether path names a schema declaration file.
func IsDeclarationFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Discover returns every declaration file below root in lexical order.
func Discover(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if IsDeclarationFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover schemas in %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

type fileResult struct {
	schemas []*usr.Schema
	issues  []usr.Issue
	err     error
}

// LoadSchemas parses every declaration file below root. It returns a
// *StateError without loading anything when another invocation is in
// flight. Files are parsed
// independently; a malformed schema fails its whole file with a
// *ParseError. A schema whose name is already declared elsewhere is
// rejected with a *ParseError naming the later file.
// The returned registry is sealed and holds the schemas of every file that
// parsed cleanly. The error aggregates every ParseError.
func (e *Engine) LoadSchemas(ctx context.Context, root string) (*parser.Registry, error) {
	if err := e.transition(Loading); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() {
		e.metrics.PhaseDuration.WithLabelValues("load").Observe(time.Since(start).Seconds())
	}()

	reg, err := e.load(ctx, root)
	e.metrics.Schemas.Set(float64(reg.Len()))
	if err != nil {
		if terr := e.transition(Failed); terr != nil {
			return reg, terr
		}
		return reg, err
	}
	e.log.Info().Str("input_dir", root).Int("schemas", reg.Len()).Msg("schemas loaded")
	return reg, e.transition(Parsed)
}

func (e *Engine) load(ctx context.Context, root string) (*parser.Registry, error) {
	reg := parser.NewRegistry()
	defer reg.Seal()

	files, err := Discover(root)
	if err != nil {
		return reg, err
	}

	results := make([]fileResult, len(files))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for i, path := range files {
		g.Go(func() error {
			schemas, issues, err := parser.ParseFile(path)
			results[i] = fileResult{schemas: schemas, issues: issues, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var result *multierror.Error
	for i, fr := range results {
		path := files[i]
		if fr.err != nil {
			result = multierror.Append(result, &ParseError{Path: path, Err: fr.err})
			continue
		}
		for _, iss := range fr.issues {
			ev := e.log.Warn()
			if iss.Severity == usr.SeverityInfo {
				ev = e.log.Info()
			}
			ev.Str("file", path).
				Str("schema", iss.Schema).
				Str("field", iss.Field).
				Msg(iss.Message)
		}
		for _, s := range fr.schemas {
			if err := reg.Add(s); err != nil {
				result = multierror.Append(result, &ParseError{Path: path, Err: err})
			}
		}
	}
	return reg, result.ErrorOrNil()
}
