// Copyright 2025 The Appletc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package wrapper synthesizes the compiler driver of a toolchain: a
// small C program, compiled on the host, that execs the real compiler
// with the target triple, SDK sysroot, architecture, and minimum OS
// version already applied.
//
// The wrapper is a real executable rather than a shell script so that
// it can locate its own install tree through /proc/self/exe. A
// finished toolchain can therefore be moved anywhere and keeps
// working.
package wrapper

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/applecross/appletc/internal/runutil"
	"github.com/applecross/appletc/internal/targets"
)

// linkerVersion is baked into every wrapper as -mlinker-version. The
// value matches the cctools linker installed next to the wrapper.
const linkerVersion = "450.3"

//go:embed wrapper.c.tmpl
var wrapperSrc string

var wrapperTmpl = template.Must(template.New("wrapper.c").Parse(wrapperSrc))

// Params selects what a wrapper wraps. All fields are required and
// validated by Render before anything is generated.
type Params struct {
	Compiler   string           // compiler command the wrapper execs, e.g. "clang"
	Arch       targets.Arch     // target architecture, e.g. "arm64"
	Platform   targets.Platform // SDK platform, e.g. "iphoneos"
	MinVersion string           // default minimum OS version, e.g. "9.3"
}

// InstallName returns the file name the wrapper installs under: the
// target triple joined to the base name of the wrapped compiler,
// e.g. "arm64-apple-darwin11-clang".
func (p Params) InstallName() string {
	return p.Arch.Triple() + "-" + filepath.Base(p.Compiler)
}

// Render generates the wrapper's C source.
func Render(p Params) ([]byte, error) {
	if p.Compiler == "" {
		return nil, errors.New("wrapper: no compiler named")
	}
	if _, err := targets.ParseArch(string(p.Arch)); err != nil {
		return nil, fmt.Errorf("wrapper: %v", err)
	}
	if !p.Platform.Known() {
		return nil, fmt.Errorf("wrapper: unknown platform %q", p.Platform)
	}
	if p.MinVersion == "" {
		return nil, errors.New("wrapper: no minimum OS version")
	}

	data := struct {
		Name          string // the wrapper's own name, for diagnostics
		Compiler      string
		Arch          targets.Arch
		Triple        string
		PlatformUpper string
		PlatformLower string
		MinVersion    string
		LinkerVersion string
	}{
		Name:          p.InstallName(),
		Compiler:      p.Compiler,
		Arch:          p.Arch,
		Triple:        p.Arch.Triple(),
		PlatformUpper: strings.ToUpper(string(p.Platform)),
		PlatformLower: strings.ToLower(string(p.Platform)),
		MinVersion:    p.MinVersion,
		LinkerVersion: linkerVersion,
	}
	var buf bytes.Buffer
	if err := wrapperTmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("wrapper: rendering source: %v", err)
	}
	return buf.Bytes(), nil
}

// A Builder compiles rendered wrappers with the host C compiler.
type Builder struct {
	Runner *runutil.Runner

	// CC overrides the host compiler command. Empty means "cc",
	// resolved from PATH through env like a shebang would.
	CC string
}

// Compile feeds source to the host C compiler on standard input and
// returns the executable the compiler writes to standard output.
//
// The child's stdout is backed by a temporary file, not a pipe: the
// compiler is asked to write the executable to /dev/stdout, and GNU
// ld fails with "Illegal seek" when that does not support seeking.
func (b *Builder) Compile(ctx context.Context, source []byte) ([]byte, error) {
	cc := b.CC
	if cc == "" {
		cc = "cc"
	}
	out, err := os.CreateTemp("", "appletc-wrapper-")
	if err != nil {
		return nil, fmt.Errorf("wrapper compilation: %v", err)
	}
	defer os.Remove(out.Name())
	defer out.Close()

	res, err := b.Runner.Run(ctx, runutil.Cmd{
		Name:          "/usr/bin/env",
		Args:          []string{cc, "-o", "/dev/stdout", "-x", "c", "-"},
		Stdin:         source,
		Stdout:        out,
		CaptureStderr: true,
	})
	if err != nil {
		return nil, fmt.Errorf("wrapper compilation: %v", err)
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("wrapper compilation failed (exit %d):\n%s", res.ExitCode, res.Stderr)
	}
	executable, err := os.ReadFile(out.Name())
	if err != nil {
		return nil, fmt.Errorf("wrapper compilation: %v", err)
	}
	return executable, nil
}

// Install writes the compiled wrapper into binDir under its canonical
// name, executable by everyone, and returns its path.
func Install(binDir string, p Params, executable []byte) (string, error) {
	path := filepath.Join(binDir, p.InstallName())
	if err := os.WriteFile(path, executable, 0755); err != nil {
		return "", fmt.Errorf("installing wrapper: %v", err)
	}
	if err := os.Chmod(path, 0755); err != nil {
		return "", fmt.Errorf("installing wrapper: %v", err)
	}
	return path, nil
}
