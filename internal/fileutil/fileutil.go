// Copyright 2025 The Appletc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fileutil copies file trees. The assembler copies trees in
// two places: materializing an SDK given as a directory, and staging
// native tool sources into scratch build directories so builds never
// dirty the originals.
package fileutil

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// CopyTree recursively copies the tree rooted at src to dst, creating
// dst if needed. Regular files keep their permission bits and symlinks
// are recreated with their original targets, unresolved. Other file
// types (devices, sockets, fifos) are rejected.
func CopyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		targ := filepath.Join(dst, rel)
		switch {
		case d.IsDir():
			return os.MkdirAll(targ, 0777)
		case d.Type()&fs.ModeSymlink != 0:
			dest, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(dest, targ)
		case d.Type().IsRegular():
			return copyFile(path, targ)
		default:
			return fmt.Errorf("copying %s: unsupported file type %v", path, d.Type())
		}
	})
}

func copyFile(src, dst string) error {
	fi, err := os.Stat(src)
	if err != nil {
		return err
	}
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sf.Close()
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fi.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(df, sf); err != nil {
		df.Close()
		return err
	}
	return df.Close()
}
