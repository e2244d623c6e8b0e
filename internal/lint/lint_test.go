// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package lint

import (
	"bytes"
	"go/build"
	"os/exec"
	"runtime"
	"testing"

	"github.com/ghemawat/stream"
)

const root = "github.com/cockroachdb/packedtuple"

func dirCmd(t *testing.T, dir string, name string, args ...string) stream.Filter {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	switch err.(type) {
	case nil:
	case *exec.ExitError:
		// Non-zero exit is expected.
	default:
		t.Fatal(err)
	}
	return stream.ReadLines(bytes.NewReader(out))
}

func ignoreGoMod() stream.Filter {
	return stream.GrepNot(`^go: (finding|extracting|downloading)`)
}

// grepGo lists the lines of the module's Go sources matching pattern, which
// is an extended regular expression.
func grepGo(t *testing.T, dir string, pattern string) stream.Filter {
	return stream.Sequence(
		dirCmd(t, dir, "grep", "-rnE", "--include=*.go", "--exclude-dir=_examples", pattern, "."),
		// The checks below name the patterns they forbid.
		stream.GrepNot(`^\./internal/lint/`),
	)
}

func TestLint(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("lint checks skipped on Windows")
	}
	if testing.Short() {
		t.Skip("lint checks skipped in short mode")
	}

	pkg, err := build.Import(root, "../..", 0)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("TestStdlibErrors", func(t *testing.T) {
		t.Parallel()

		if err := stream.ForEach(
			grepGo(t, pkg.Dir, `^\s*"errors"$`),
			func(s string) {
				t.Errorf("\n%s <- please use \"github.com/cockroachdb/errors\" instead", s)
			}); err != nil {
			t.Error(err)
		}
	})

	t.Run("TestPkgErrors", func(t *testing.T) {
		t.Parallel()

		if err := stream.ForEach(
			grepGo(t, pkg.Dir, `"github.com/pkg/errors"`),
			func(s string) {
				t.Errorf("\n%s <- please use \"github.com/cockroachdb/errors\" instead", s)
			}); err != nil {
			t.Error(err)
		}
	})

	t.Run("TestFmtErrorf", func(t *testing.T) {
		t.Parallel()

		if err := stream.ForEach(
			grepGo(t, pkg.Dir, `fmt\.Errorf\(`),
			func(s string) {
				t.Errorf("\n%s <- please use \"errors.Errorf\" instead", s)
			}); err != nil {
			t.Error(err)
		}
	})

	t.Run("TestGoVet", func(t *testing.T) {
		t.Parallel()

		if err := stream.ForEach(
			stream.Sequence(
				dirCmd(t, pkg.Dir, "go", "vet", "./..."),
				stream.GrepNot(`^#`), // ignore comment lines
				ignoreGoMod(),
			), func(s string) {
				t.Errorf("\n%s", s)
			}); err != nil {
			t.Error(err)
		}
	})
}
