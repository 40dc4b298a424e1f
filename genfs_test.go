package usrgen

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/matryer/is"
)

func TestFSAddRejectsConflicts(t *testing.T) {
	is := is.New(t)

	fs := NewFS()
	is.NoErr(fs.Add(File{RelativePath: "a/b.py", Data: []byte("x"), Owner: "one"}))

	err := fs.Add(File{RelativePath: "a/b.py", Data: []byte("y"), Owner: "two"})
	is.True(err != nil)
	f, ok := fs.Get("a/b.py")
	is.True(ok)
	is.Equal(string(f.Data), "x")

	err = fs.Add(File{RelativePath: "/abs.py"})
	is.True(err != nil)
	is.Equal(fs.Len(), 1)
}

func TestFSMerge(t *testing.T) {
	is := is.New(t)

	a, b := NewFS(), NewFS()
	is.NoErr(a.Add(File{RelativePath: "x.ts", Data: []byte("x")}))
	is.NoErr(b.Add(File{RelativePath: "y.ts", Data: []byte("y")}))
	is.NoErr(a.Merge(b))
	is.Equal(a.Len(), 2)

	fl := a.AsFiles()
	is.Equal(fl[0].RelativePath, "x.ts")
	is.Equal(fl[1].RelativePath, "y.ts")

	is.True(a.Merge(b) != nil)
}

func TestFSWriteThenVerify(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	dir := t.TempDir()

	gen := func(stamp string) *FS {
		fs := NewFS()
		is.NoErr(fs.Add(
			File{RelativePath: "pydantic/user.py", Data: []byte("# " + TimestampLabel + " " + stamp + "\nclass User: ...\n")},
			File{RelativePath: "zod/user.ts", Data: []byte("export {}\n")},
		))
		return fs
	}

	is.NoErr(gen("2026-01-01T00:00:00Z").Write(ctx, dir))
	// A later timestamp alone is not staleness.
	is.NoErr(gen("2026-06-01T12:00:00Z").Verify(ctx, dir))

	is.NoErr(os.WriteFile(filepath.Join(dir, "zod", "user.ts"), []byte("export const x = 1\n"), 0o644))
	is.NoErr(os.Remove(filepath.Join(dir, "pydantic", "user.py")))

	err := gen("2026-06-01T12:00:00Z").Verify(ctx, dir)
	is.True(err != nil)

	var merr *multierror.Error
	is.True(errors.As(err, &merr))
	is.Equal(len(merr.Errors), 2)

	var missing *MissingFileError
	is.True(errors.As(merr.Errors[0], &missing))
	is.Equal(missing.Path, "pydantic/user.py")

	var differ *ContentsDifferError
	is.True(errors.As(merr.Errors[1], &differ))
	is.Equal(differ.Path, "zod/user.ts")
	is.True(differ.Diff != "")
}

func TestVerifyComparesContentMentioningTimestampLabel(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	dir := t.TempDir()

	gen := func(desc string) *FS {
		fs := NewFS()
		is.NoErr(fs.Add(File{
			RelativePath: "pydantic/event.py",
			Data:         []byte("# " + TimestampLabel + " 2026-01-01T00:00:00Z\nx = Field(description=\"" + TimestampLabel + " " + desc + "\")\n"),
		}))
		return fs
	}

	is.NoErr(gen("old").Write(ctx, dir))
	is.NoErr(gen("old").Verify(ctx, dir))

	err := gen("new").Verify(ctx, dir)
	var merr *multierror.Error
	is.True(errors.As(err, &merr))
	is.Equal(len(merr.Errors), 1)
	var differ *ContentsDifferError
	is.True(errors.As(merr.Errors[0], &differ))
	is.Equal(differ.Path, "pydantic/event.py")
}

func TestEnsureTrailingNewline(t *testing.T) {
	is := is.New(t)

	for in, want := range map[string]string{
		"a":       "a\n",
		"a\n":     "a\n",
		"a\n\n\n": "a\n",
		"a \n\t":  "a\n",
		"":        "",
	} {
		f, err := EnsureTrailingNewline(File{Data: []byte(in)})
		is.NoErr(err)
		is.Equal(string(f.Data), want)
	}
}

func TestCRLFLineEndings(t *testing.T) {
	is := is.New(t)

	f, err := CRLFLineEndings(File{Data: []byte("a\nb\r\nc\n")})
	is.NoErr(err)
	is.Equal(string(f.Data), "a\r\nb\r\nc\r\n")

	// A CRLF header still has its timestamp stripped.
	a, _ := CRLFLineEndings(File{Data: []byte("# " + TimestampLabel + " 2026-01-01T00:00:00Z\nbody\n")})
	b, _ := CRLFLineEndings(File{Data: []byte("# " + TimestampLabel + " 2026-02-01T00:00:00Z\nbody\n")})
	is.Equal(string(StripTimestamp(a.Data)), string(StripTimestamp(b.Data)))
	is.Equal(string(StripTimestamp(a.Data)), "body\r\n")
}
