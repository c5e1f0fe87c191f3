// Copyright 2025 The Appletc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCopyTree(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "copy")

	if err := os.MkdirAll(filepath.Join(src, "usr", "lib"), 0777); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(src, "empty"), 0777); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "usr", "lib", "libSystem.dylib"), []byte("dylib"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "build.sh"), []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("usr/lib/libSystem.dylib", filepath.Join(src, "libSystem.dylib")); err != nil {
		t.Fatal(err)
	}

	if err := CopyTree(src, dst); err != nil {
		t.Fatalf("CopyTree: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dst, "usr", "lib", "libSystem.dylib"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "dylib" {
		t.Errorf("copied content = %q; want %q", data, "dylib")
	}

	fi, err := os.Stat(filepath.Join(dst, "build.sh"))
	if err != nil {
		t.Fatal(err)
	}
	if got := fi.Mode().Perm(); got != 0755 {
		t.Errorf("build.sh mode = %o; want 0755", got)
	}

	dest, err := os.Readlink(filepath.Join(dst, "libSystem.dylib"))
	if err != nil {
		t.Fatal(err)
	}
	if dest != "usr/lib/libSystem.dylib" {
		t.Errorf("symlink target = %q; want %q", dest, "usr/lib/libSystem.dylib")
	}

	if fi, err := os.Stat(filepath.Join(dst, "empty")); err != nil || !fi.IsDir() {
		t.Errorf("empty directory not copied: fi=%v err=%v", fi, err)
	}
}

func TestCopyTreeMissingSource(t *testing.T) {
	if err := CopyTree(filepath.Join(t.TempDir(), "nope"), t.TempDir()); err == nil {
		t.Fatal("copying a missing tree did not report an error")
	}
}
