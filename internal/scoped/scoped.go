// Copyright 2025 The Appletc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package scoped temporarily mutates process-wide state: the working
// directory and the environment. The native tool builds need both, as
// their makefiles and build scripts read the current directory and the
// environment rather than taking flags.
//
// Both mutations are process-wide. Callers must not run anything
// concurrently between a call and its restore, and nested calls must be
// restored in reverse order. Everything else in this module threads
// directories and environments explicitly through exec.Cmd instead.
package scoped

import (
	"fmt"
	"os"
)

// Chdir changes the working directory of the process to dir, creating
// dir first (along with missing parents) when create is set. The
// returned restore function returns the process to the directory that
// was current when Chdir was called.
func Chdir(dir string, create bool) (restore func() error, err error) {
	prev, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("recording working directory: %v", err)
	}
	if create {
		if err := os.MkdirAll(dir, 0777); err != nil {
			return nil, err
		}
	}
	if err := os.Chdir(dir); err != nil {
		return nil, err
	}
	return func() error {
		if err := os.Chdir(prev); err != nil {
			return fmt.Errorf("restoring working directory: %v", err)
		}
		return nil
	}, nil
}

// Setenv sets the process-wide environment variable key to value. The
// returned restore function puts the variable back to its prior value,
// unsetting it if it was not set before.
func Setenv(key, value string) (restore func() error, err error) {
	prev, existed := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		return nil, err
	}
	return func() error {
		if !existed {
			return os.Unsetenv(key)
		}
		return os.Setenv(key, prev)
	}, nil
}
