// Copyright 2025 The Appletc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sdk

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/applecross/appletc/internal/fileutil"
)

// Archive signatures. SDK inputs are identified by content, not name.
var (
	gzipMagic = []byte{0x1f, 0x8b}
	xzMagic   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

// Extract materializes the SDK input src into the directory dst.
// src may be a directory tree, a gzip-compressed tar archive, or an
// xz-compressed tar archive; anything else is rejected. dst is
// created and should not already exist.
func Extract(src, dst string) error {
	fi, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("SDK input: %v", err)
	}
	if fi.IsDir() {
		return fileutil.CopyTree(src, dst)
	}

	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("SDK input: %v", err)
	}
	defer f.Close()
	br := bufio.NewReader(f)
	// A short read means the file is smaller than the longest magic
	// number, which no recognized archive is.
	magic, err := br.Peek(len(xzMagic))
	if err != nil && err != io.EOF {
		return fmt.Errorf("reading %s: %v", src, err)
	}
	switch {
	case bytes.HasPrefix(magic, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return fmt.Errorf("reading %s: %v", src, err)
		}
		return unpackTar(tar.NewReader(zr), dst)
	case bytes.HasPrefix(magic, xzMagic):
		xr, err := xz.NewReader(br)
		if err != nil {
			return fmt.Errorf("reading %s: %v", src, err)
		}
		return unpackTar(tar.NewReader(xr), dst)
	}
	return fmt.Errorf("unrecognized SDK input %s: not a directory, gzip tar, or xz tar", src)
}

// unpackTar unpacks tr into the named directory. On error the
// directory may contain partial contents.
func unpackTar(tr *tar.Reader, dir string) error {
	if err := os.MkdirAll(dir, 0777); err != nil {
		return err
	}
	for {
		hdr, err := tr.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("reading archive: %v", err)
		}
		if hdr.Typeflag == tar.TypeXGlobalHeader {
			// git archive tarballs begin with one of these.
			continue
		}
		name := filepath.FromSlash(strings.TrimSuffix(hdr.Name, "/"))
		if name != filepath.Clean(name) || strings.HasPrefix(name, "..") || filepath.IsAbs(name) {
			return fmt.Errorf("invalid name in archive: %#q", hdr.Name)
		}
		targ := filepath.Join(dir, name)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(targ, 0777); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(targ), 0777); err != nil {
				return err
			}
			f, err := os.OpenFile(targ, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fs.FileMode(hdr.Mode&0777))
			if err != nil {
				return err
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(targ), 0777); err != nil {
				return err
			}
			if err := os.Symlink(hdr.Linkname, targ); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported entry type %q for %s in archive", hdr.Typeflag, hdr.Name)
		}
	}
	return nil
}
