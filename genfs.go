package usrgen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// ioLimit bounds concurrent file operations in Write and Verify.
const ioLimit = 12

// FS is an in-memory tree of generated files that supports batch-writing
// its contents to the real filesystem, or batch-comparing its contents to
// the real filesystem.
//
// Generated files are expected to be committed, so a normal run writes
// them while a check run verifies that what is on disk is what generation
// would produce. Comparison ignores the timestamp line of provenance
// headers.
//
// FS only knows the files it holds. Files left on disk after their schema
// was removed are not reported.
//
// Files may not be removed once added. A path conflict when adding a file
// or merging another FS is an error.
type FS struct {
	mu    sync.Mutex
	files map[string]entry
}

type entry struct {
	data  []byte
	owner string
}

// File is a single generated file.
type File struct {
	// RelativePath is where the file is written below the output root.
	RelativePath string

	// Data is the file content.
	Data []byte

	// Owner names what produced the file, usually a target.
	Owner string
}

// Files is a set of File values with unique paths.
type Files []File

// Validate checks that paths are relative and unique.
func (fl Files) Validate() error {
	var result *multierror.Error
	seen := make(map[string]bool, len(fl))
	for _, f := range fl {
		if filepath.IsAbs(f.RelativePath) {
			result = multierror.Append(result, fmt.Errorf("generated files must have relative paths, got %s", f.RelativePath))
		}
		if seen[f.RelativePath] {
			result = multierror.Append(result, fmt.Errorf("multiple files for path %s", f.RelativePath))
		}
		seen[f.RelativePath] = true
	}
	return result.ErrorOrNil()
}

// FileMapper transforms a File. Postprocessors are FileMappers.
type FileMapper func(File) (File, error)

// EnsureTrailingNewline terminates non-empty files with exactly one
// newline.
func EnsureTrailingNewline(f File) (File, error) {
	n := len(f.Data)
	for n > 0 && (f.Data[n-1] == '\n' || f.Data[n-1] == ' ' || f.Data[n-1] == '\t') {
		n--
	}
	if n == 0 {
		return f, nil
	}
	data := make([]byte, n+1)
	copy(data, f.Data[:n])
	data[n] = '\n'
	f.Data = data
	return f, nil
}

// CRLFLineEndings ends every line with a carriage return and line feed.
func CRLFLineEndings(f File) (File, error) {
	lf := bytes.ReplaceAll(f.Data, []byte("\r\n"), []byte("\n"))
	f.Data = bytes.ReplaceAll(lf, []byte("\n"), []byte("\r\n"))
	return f, nil
}

// NewFS creates an empty FS.
func NewFS() *FS {
	return &FS{files: make(map[string]entry)}
}

// MissingFileError reports a generated file that does not exist on disk.
type MissingFileError struct {
	Path string
}

func (e *MissingFileError) Error() string {
	return fmt.Sprintf("%s: generated file should exist, but does not", e.Path)
}

// ContentsDifferError reports a file on disk whose contents differ from
// the generated ones. Diff is a go-cmp diff from disk to generated.
type ContentsDifferError struct {
	Path string
	Diff string
}

func (e *ContentsDifferError) Error() string {
	return fmt.Sprintf("%s would have changed:\n\n%s", e.Path, e.Diff)
}

type writeItem struct {
	path     string
	contents []byte
}

// Verify compares each file against the filesystem below prefix. Every
// missing or differing file is reported as a *MissingFileError or
// *ContentsDifferError inside a multierror. Other I/O failures abort the
// comparison.
func (fs *FS) Verify(ctx context.Context, prefix string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(ioLimit)

	var (
		rmu    sync.Mutex
		result *multierror.Error
	)
	record := func(err error) {
		rmu.Lock()
		result = multierror.Append(result, err)
		rmu.Unlock()
	}

	for _, item := range fs.toSlice() {
		g.Go(func() error {
			ipath := filepath.Join(prefix, item.path)
			ob, err := os.ReadFile(ipath) //nolint:gosec
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					record(&MissingFileError{Path: item.path})
					return nil
				}
				return fmt.Errorf("%s: error reading file: %w", ipath, err)
			}
			dstr := cmp.Diff(string(StripTimestamp(ob)), string(StripTimestamp(item.contents)))
			if dstr != "" {
				record(&ContentsDifferError{Path: item.path, Diff: dstr})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("io error while verifying tree: %w", err)
	}
	if result == nil {
		return nil
	}
	sort.Slice(result.Errors, func(i, j int) bool {
		return stalePath(result.Errors[i]) < stalePath(result.Errors[j])
	})
	return result
}

func stalePath(err error) string {
	var missing *MissingFileError
	if errors.As(err, &missing) {
		return missing.Path
	}
	var differ *ContentsDifferError
	if errors.As(err, &differ) {
		return differ.Path
	}
	return ""
}

// Write writes all files below prefix, creating directories as needed.
func (fs *FS) Write(ctx context.Context, prefix string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(ioLimit)

	for _, it := range fs.toSlice() {
		g.Go(func() error {
			path := filepath.Join(prefix, it.path)
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("%s: failed to ensure parent directory exists: %w", path, err)
			}
			if err := os.WriteFile(path, it.contents, 0o644); err != nil {
				return fmt.Errorf("%s: error while writing file: %w", path, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (fs *FS) toSlice() []writeItem {
	sl := make([]writeItem, 0, len(fs.files))
	for k, v := range fs.files {
		sl = append(sl, writeItem{path: k, contents: v.data})
	}
	sort.Slice(sl, func(i, j int) bool {
		return sl[i].path < sl[j].path
	})
	return sl
}

// Add adds files to the FS. An error is returned if any file conflicts with
// one already added, in which case none are added.
func (fs *FS) Add(flist ...File) error {
	fs.mu.Lock()
	err := fs.add(flist...)
	fs.mu.Unlock()
	return err
}

func (fs *FS) add(flist ...File) error {
	var result *multierror.Error
	if err := Files(flist).Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	for _, f := range flist {
		if rf, has := fs.files[f.RelativePath]; has {
			result = multierror.Append(result, fmt.Errorf("cannot create %s for %q, already created for %q", f.RelativePath, f.Owner, rf.owner))
		}
	}
	if result.ErrorOrNil() != nil {
		return result
	}

	for _, f := range flist {
		fs.files[f.RelativePath] = entry{data: f.Data, owner: f.Owner}
	}
	return nil
}

// Merge adds every file of other to fs. Duplicate paths are an error.
func (fs *FS) Merge(other *FS) error {
	if other == nil {
		return nil
	}
	fl := other.AsFiles()
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.add(fl...)
}

// Len returns the number of files.
func (fs *FS) Len() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.files)
}

// Get returns the file at path.
func (fs *FS) Get(path string) (File, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	e, ok := fs.files[path]
	if !ok {
		return File{}, false
	}
	return File{RelativePath: path, Data: e.data, Owner: e.owner}, true
}

// AsFiles returns the contents of the FS sorted by path.
func (fs *FS) AsFiles() Files {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fl := make(Files, 0, len(fs.files))
	for k, v := range fs.files {
		fl = append(fl, File{RelativePath: k, Data: v.data, Owner: v.owner})
	}
	sort.Slice(fl, func(i, j int) bool {
		return fl[i].RelativePath < fl[j].RelativePath
	})
	return fl
}
