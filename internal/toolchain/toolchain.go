// Copyright 2025 The Appletc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package toolchain assembles standalone Apple cross-compilation
// toolchains: an install tree holding a normalized SDK, a compiler
// wrapper baked for one architecture and platform, and the native
// cross tools built from source.
//
// Assembly is a linear pipeline. Each step depends on the one before
// it, the first failure aborts the run, and a partial tree is left
// behind for inspection. Re-running with Force starts over.
package toolchain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/applecross/appletc/internal/deps"
	"github.com/applecross/appletc/internal/runutil"
	"github.com/applecross/appletc/internal/sdk"
	"github.com/applecross/appletc/internal/targets"
	"github.com/applecross/appletc/internal/wrapper"
)

// A Request describes one toolchain to assemble. Zero optional fields
// mean their defaults; the required fields are Arch, SDK, and
// InstallDir.
type Request struct {
	Arch       targets.Arch
	SDK        string // SDK input: a directory, .tar.gz, or .tar.xz
	InstallDir string
	MinVersion string // minimum OS version; empty means the platform default
	Clang      string // compiler the wrapper execs; default "clang"
	ClangXX    string // C++ compiler name; default Clang + "++"
	Tools      string // directory holding native tool sources; default "tools"
	Force      bool   // overwrite an existing install tree
	Verbose    bool
}

// normalized returns req with defaults filled in.
func (req Request) normalized() Request {
	if req.Clang == "" {
		req.Clang = "clang"
	}
	if req.ClangXX == "" {
		req.ClangXX = req.Clang + "++"
	}
	if req.Tools == "" {
		req.Tools = "tools"
	}
	return req
}

func (req Request) validate() error {
	if _, err := targets.ParseArch(string(req.Arch)); err != nil {
		return err
	}
	if req.SDK == "" {
		return errors.New("no SDK input named")
	}
	if req.InstallDir == "" {
		return errors.New("no install directory named")
	}
	return nil
}

// Layout is where a toolchain's pieces live under its install root.
type Layout struct {
	Root   string // the install directory itself
	SDKDir string // the normalized SDK
	BinDir string // wrapper and cross tools
	TmpDir string // build scratch, removed on success
}

func layoutFor(root string) Layout {
	return Layout{
		Root:   root,
		SDKDir: filepath.Join(root, "sdk"),
		BinDir: filepath.Join(root, "bin"),
		TmpDir: filepath.Join(root, "tmp"),
	}
}

// A Toolchain describes a finished assembly.
type Toolchain struct {
	Layout     Layout
	Arch       targets.Arch
	Triple     string
	SDK        sdk.Info
	MinVersion string
	Wrapper    string // path of the installed compiler wrapper
}

// An Assembler runs the assembly pipeline.
type Assembler struct {
	Log *log.Logger // nil means the standard logger

	// CC overrides the host C compiler used to build the wrapper.
	CC string
}

// smokeSource is compiled through the freshly installed wrapper to
// prove the toolchain can actually drive a compiler.
const smokeSource = "int main(void) { return 0; }\n"

// Assemble builds the toolchain req describes. On failure the partial
// install tree is left in place for inspection; nothing outside the
// install tree is modified either way.
func (a *Assembler) Assemble(ctx context.Context, req Request) (*Toolchain, error) {
	req = req.normalized()
	if err := req.validate(); err != nil {
		return nil, err
	}
	// The dependency builds chdir into scratch directories and hand
	// the install prefix to make and configure, and the smoke test
	// runs the wrapper with its own working directory, so every path
	// in the request must survive a changed working directory.
	for _, p := range []*string{&req.SDK, &req.InstallDir, &req.Tools} {
		abs, err := filepath.Abs(*p)
		if err != nil {
			return nil, err
		}
		*p = abs
	}

	// Refuse an existing install before any other side effect.
	if _, err := os.Stat(req.InstallDir); err == nil {
		if !req.Force {
			return nil, fmt.Errorf("install dir %q already exists (use -f to overwrite)", req.InstallDir)
		}
		if err := os.RemoveAll(req.InstallDir); err != nil {
			return nil, err
		}
	}

	a.logf("creating apple standalone toolchain for arch %s", req.Arch)
	lay := layoutFor(req.InstallDir)
	for _, dir := range []string{lay.Root, lay.BinDir, lay.TmpDir} {
		if err := os.MkdirAll(dir, 0777); err != nil {
			return nil, err
		}
	}

	if err := sdk.Extract(req.SDK, lay.SDKDir); err != nil {
		return nil, fmt.Errorf("extracting SDK: %v", err)
	}
	if err := sdk.Normalize(lay.SDKDir); err != nil {
		return nil, err
	}
	info, err := sdk.Inspect(lay.SDKDir)
	if err != nil {
		return nil, err
	}
	a.logf("detected apple SDK %q (version %s)", info.Name, info.Version)

	minVersion := req.MinVersion
	if minVersion == "" {
		minVersion, err = info.Platform.DefaultMinVersion()
		if err != nil {
			return nil, err
		}
		a.logf("defaulting to minimum version %s%s", info.Platform, minVersion)
	}

	runner := &runutil.Runner{Log: a.Log, Verbose: req.Verbose}

	params := wrapper.Params{
		Compiler:   req.Clang,
		Arch:       req.Arch,
		Platform:   info.Platform,
		MinVersion: minVersion,
	}
	source, err := wrapper.Render(params)
	if err != nil {
		return nil, err
	}
	builder := &wrapper.Builder{Runner: runner, CC: a.CC}
	executable, err := builder.Compile(ctx, source)
	if err != nil {
		return nil, err
	}
	wrapperPath, err := wrapper.Install(lay.BinDir, params, executable)
	if err != nil {
		return nil, err
	}
	a.logf("installed compiler wrapper %s", filepath.Base(wrapperPath))
	// TODO: synthesize a C++ wrapper for req.ClangXX once the extra
	// driver flags it needs (-x c++, standard library selection) are
	// confirmed against real SDKs. The request already carries the
	// name so flag compatibility is kept.

	builds := &deps.Builder{
		Runner:  runner,
		Log:     a.Log,
		Tools:   req.Tools,
		Install: lay.Root,
		Scratch: lay.TmpDir,
		Triple:  req.Arch.Triple(),
	}
	if err := builds.BuildAll(ctx); err != nil {
		return nil, err
	}

	if err := a.smokeTest(ctx, runner, lay, wrapperPath); err != nil {
		return nil, err
	}

	if err := os.RemoveAll(lay.TmpDir); err != nil {
		return nil, err
	}

	tc := &Toolchain{
		Layout:     lay,
		Arch:       req.Arch,
		Triple:     req.Arch.Triple(),
		SDK:        info,
		MinVersion: minVersion,
		Wrapper:    wrapperPath,
	}
	if err := writeManifest(ctx, tc); err != nil {
		return nil, fmt.Errorf("writing manifest: %v", err)
	}
	a.logf("toolchain for %s ready in %s", tc.Triple, lay.Root)
	return tc, nil
}

// smokeTest compiles a trivial program through the installed wrapper.
// It proves the wrapper can locate its SDK and drive the compiler.
func (a *Assembler) smokeTest(ctx context.Context, runner *runutil.Runner, lay Layout, wrapperPath string) error {
	dir := filepath.Join(lay.TmpDir, "smoke")
	if err := os.MkdirAll(dir, 0777); err != nil {
		return err
	}
	res, err := runner.Run(ctx, runutil.Cmd{
		Name:          wrapperPath,
		Args:          []string{"-x", "c", "-", "-o", "smoke-test"},
		Dir:           dir,
		Stdin:         []byte(smokeSource),
		CaptureStdout: true,
		CaptureStderr: true,
	})
	if err != nil {
		return fmt.Errorf("smoke test: %v", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("smoke test failed (exit %d):\n%s", res.ExitCode, res.Stderr)
	}
	a.logf("smoke test passed")
	return nil
}

func (a *Assembler) logf(format string, args ...any) {
	if a.Log != nil {
		a.Log.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}
