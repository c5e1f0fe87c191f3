// Copyright 2025 The Appletc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package runutil runs the external tools the assembler depends on:
// the host C compiler, make, and the native tool build scripts.
//
// The runner reports exit statuses and never interprets them. Callers
// decide what a nonzero status means for their stage and build the
// error message from the captured diagnostics.
package runutil

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"os"
	"os/exec"

	"github.com/kballard/go-shellquote"

	"github.com/applecross/appletc/internal/envutil"
)

// A Cmd describes one external tool invocation.
type Cmd struct {
	Name string   // binary name (resolved via PATH) or path; a relative path is evaluated under Dir
	Args []string // arguments, not including the name

	// Dir is the working directory for the child. The empty string
	// means the child inherits the current directory of this process,
	// which the native tool builds change on purpose.
	Dir string

	// Env holds extra "key=value" entries layered over the current
	// process environment, later entries winning.
	Env []string

	// Stdin, if non-nil, is fed to the child on standard input.
	Stdin []byte

	// Stdout, if non-nil, receives the child's standard output and
	// takes precedence over CaptureStdout. Pass an *os.File when the
	// child must be able to seek on its stdout: linkers refuse to
	// write an executable to a pipe.
	Stdout io.Writer

	// CaptureStdout and CaptureStderr divert the respective stream
	// into the Result instead of passing it through to this process's
	// streams.
	CaptureStdout bool
	CaptureStderr bool
}

// A Result reports how an invocation went. ExitCode is the child's
// exit status, 0 on success. It is -1 if the child was killed by a
// signal.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// A Runner runs commands with shared logging configuration.
//
// In verbose mode the runner logs every command before running it and
// tees captured stderr to this process's stderr so builds can be
// watched live.
type Runner struct {
	Log     *log.Logger // nil means the standard logger
	Verbose bool
}

// Run starts the command and waits for it. A nonzero exit status is
// not an error: it is reported in Result.ExitCode. Run returns an
// error only when the child could not be started or waited on, or the
// context was canceled.
func (r *Runner) Run(ctx context.Context, c Cmd) (Result, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	if c.Dir != "" {
		envutil.SetDir(cmd, c.Dir)
	}
	if len(c.Env) > 0 {
		envutil.SetEnv(cmd, c.Env...)
	}
	if c.Stdin != nil {
		cmd.Stdin = bytes.NewReader(c.Stdin)
	}

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	switch {
	case c.Stdout != nil:
		cmd.Stdout = c.Stdout
	case c.CaptureStdout:
		// Never teed: captured stdout can be binary data, such as
		// the compiled wrapper.
		cmd.Stdout = &outBuf
	}
	if c.CaptureStderr {
		cmd.Stderr = &errBuf
		if r.Verbose {
			cmd.Stderr = io.MultiWriter(&errBuf, os.Stderr)
		}
	}

	if r.Verbose {
		words := append([]string{}, c.Env...)
		words = append(words, c.Name)
		words = append(words, c.Args...)
		if c.Dir != "" {
			r.logf("run: %s (in %s)", shellquote.Join(words...), c.Dir)
		} else {
			r.logf("run: %s", shellquote.Join(words...))
		}
	}

	err := cmd.Run()
	res := Result{Stdout: outBuf.Bytes(), Stderr: errBuf.Bytes()}
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		var exit *exec.ExitError
		if errors.As(err, &exit) {
			res.ExitCode = exit.ExitCode()
			return res, nil
		}
		return res, err
	}
	return res, nil
}

func (r *Runner) logf(format string, args ...any) {
	if r.Log != nil {
		r.Log.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}
