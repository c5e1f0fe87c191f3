// Copyright 2025 The Appletc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package deps builds the native tools a finished toolchain needs
// besides the compiler wrapper: ldid for fake code signing,
// apple-libtapi, and the cctools port of Apple's linker and binutils.
//
// The tools come as source trees and bring their own build systems,
// which read the working directory and the environment rather than
// taking flags. The builds therefore run under the scoped process
// mutations of package scoped and must not overlap with anything
// concurrent. Each stage builds in its own scratch copy of the
// source, so the original trees stay pristine.
package deps

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/kballard/go-shellquote"

	"github.com/applecross/appletc/internal/fileutil"
	"github.com/applecross/appletc/internal/runutil"
	"github.com/applecross/appletc/internal/scoped"
)

// buildJobs is the make parallelism for the cctools build. The other
// stages' build systems pick their own.
const buildJobs = 4

// A Builder builds the native cross tools into a toolchain's install
// tree.
type Builder struct {
	Runner  *runutil.Runner
	Log     *log.Logger // nil means the standard logger
	Tools   string      // directory holding the pristine tool source trees
	Install string      // toolchain install root; also the install prefix
	Scratch string      // scratch directory for build trees
	Triple  string      // target triple, e.g. "arm64-apple-darwin11"
}

// stages lists the native tool builds in dependency order: the
// cctools build links against the libtapi installed by the stage
// before it. Each stage's name is also its source subdirectory under
// the tools directory.
var stages = []struct {
	name  string
	build func(*Builder, context.Context) error
}{
	{"ldid", (*Builder).buildLdid},
	{"apple-libtapi", (*Builder).buildLibtapi},
	{"cctools", (*Builder).buildCctools},
}

// BuildAll runs every stage in order. The first failure stops the
// sequence; later stages are not attempted.
func (b *Builder) BuildAll(ctx context.Context) error {
	for _, s := range stages {
		b.logf("building %s", s.name)
		if err := s.build(b, ctx); err != nil {
			return fmt.Errorf("building %s: %v", s.name, err)
		}
	}
	return nil
}

// buildLdid builds and installs ldid: make install with the install
// prefix passed as a make variable.
func (b *Builder) buildLdid(ctx context.Context) error {
	dir, err := b.stageSource("ldid", filepath.Join(b.Scratch, "ldid"))
	if err != nil {
		return err
	}
	restore, err := scoped.Chdir(dir, false)
	if err != nil {
		return err
	}
	defer restore()
	return b.run(ctx, "make", "install", "INSTALLPREFIX="+b.Install)
}

// buildLibtapi builds and installs apple-libtapi. Its build.sh and
// install.sh read the install prefix from the environment, so the
// prefix is exported process-wide for the duration of the stage and
// restored on every exit path.
func (b *Builder) buildLibtapi(ctx context.Context) error {
	dir, err := b.stageSource("apple-libtapi", filepath.Join(b.Scratch, "apple-libtapi"))
	if err != nil {
		return err
	}
	restoreDir, err := scoped.Chdir(dir, false)
	if err != nil {
		return err
	}
	defer restoreDir()
	restoreEnv, err := scoped.Setenv("INSTALLPREFIX", b.Install)
	if err != nil {
		return err
	}
	defer restoreEnv()

	if err := b.run(ctx, "./build.sh"); err != nil {
		return err
	}
	return b.run(ctx, "./install.sh")
}

// buildCctools configures and builds cctools out of tree: the source
// is staged under src/ and the build runs in a sibling build/
// directory, created here.
func (b *Builder) buildCctools(ctx context.Context) error {
	if _, err := b.stageSource("cctools", filepath.Join(b.Scratch, "cctools", "src")); err != nil {
		return err
	}
	restore, err := scoped.Chdir(filepath.Join(b.Scratch, "cctools", "build"), true)
	if err != nil {
		return err
	}
	defer restore()

	if err := b.run(ctx, "../src/configure",
		"--prefix="+b.Install,
		"--target="+b.Triple,
		"--with-libtapi="+b.Install,
	); err != nil {
		return err
	}
	jobs := fmt.Sprintf("-j%d", buildJobs)
	if err := b.run(ctx, "make", jobs); err != nil {
		return err
	}
	return b.run(ctx, "make", jobs, "install")
}

// stageSource copies the named tool's pristine source tree into dst
// and returns dst.
func (b *Builder) stageSource(name, dst string) (string, error) {
	src := filepath.Join(b.Tools, name)
	if _, err := os.Stat(src); err != nil {
		return "", fmt.Errorf("tool source: %v", err)
	}
	if err := fileutil.CopyTree(src, dst); err != nil {
		return "", fmt.Errorf("staging %s: %v", name, err)
	}
	return dst, nil
}

// run executes one build command in the stage's current directory.
// Build output streams through; diagnostics are captured and carried
// in the error when the tool fails.
func (b *Builder) run(ctx context.Context, name string, args ...string) error {
	res, err := b.Runner.Run(ctx, runutil.Cmd{
		Name:          name,
		Args:          args,
		CaptureStderr: true,
	})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("%s: exit %d\n%s",
			shellquote.Join(append([]string{name}, args...)...), res.ExitCode, res.Stderr)
	}
	return nil
}

func (b *Builder) logf(format string, args ...any) {
	if b.Log != nil {
		b.Log.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}
