// Copyright 2025 The Appletc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package toolchain

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/applecross/appletc/internal/targets"
)

// ManifestName is the completion manifest written at the install root.
// Its presence marks a finished toolchain.
const ManifestName = "toolchain.json"

// A Manifest records what a finished toolchain contains. It is written
// last, so a tree holding one passed every assembly step including the
// smoke test.
type Manifest struct {
	Arch       targets.Arch     `json:"arch"`
	Triple     string           `json:"triple"`
	Platform   targets.Platform `json:"platform"`
	SDKName    string           `json:"sdkName"`
	SDKVersion string           `json:"sdkVersion"`
	MinVersion string           `json:"minVersion"`
	Wrapper    string           `json:"wrapper"` // slash path relative to the root
	Files      []ManifestFile   `json:"files"`
}

// A ManifestFile describes one regular file in the install tree.
// Symlinks and directories are not listed.
type ManifestFile struct {
	Path   string `json:"path"` // slash path relative to the root
	Size   int64  `json:"size"`
	Mode   string `json:"mode"` // octal permission bits, like "0755"
	SHA256 string `json:"sha256"`
}

// writeManifest hashes the install tree and writes ManifestName at its
// root. The scratch directory and the manifest itself are excluded.
func writeManifest(ctx context.Context, tc *Toolchain) error {
	lay := tc.Layout
	wrapperRel, err := filepath.Rel(lay.Root, tc.Wrapper)
	if err != nil {
		return err
	}
	m := &Manifest{
		Arch:       tc.Arch,
		Triple:     tc.Triple,
		Platform:   tc.SDK.Platform,
		SDKName:    tc.SDK.Name,
		SDKVersion: tc.SDK.Version,
		MinVersion: tc.MinVersion,
		Wrapper:    filepath.ToSlash(wrapperRel),
	}
	m.Files, err = manifestFiles(lay)
	if err != nil {
		return err
	}
	if err := hashFiles(ctx, lay.Root, m.Files); err != nil {
		return err
	}

	js, err := json.MarshalIndent(m, "", "\t")
	if err != nil {
		return err
	}
	js = append(js, '\n')
	return os.WriteFile(filepath.Join(lay.Root, ManifestName), js, 0666)
}

// manifestFiles lists the regular files under the install root in
// lexical order, sizes and modes filled in and hashes left empty.
func manifestFiles(lay Layout) ([]ManifestFile, error) {
	tmpRel, err := filepath.Rel(lay.Root, lay.TmpDir)
	if err != nil {
		return nil, err
	}
	var files []ManifestFile
	err = filepath.WalkDir(lay.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(lay.Root, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if rel == tmpRel {
				return filepath.SkipDir
			}
			return nil
		}
		if rel == ManifestName || !d.Type().IsRegular() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, ManifestFile{
			Path: filepath.ToSlash(rel),
			Size: fi.Size(),
			Mode: fmt.Sprintf("%04o", fi.Mode().Perm()),
		})
		return nil
	})
	return files, err
}

// hashFiles fills in the SHA256 field of every entry, hashing files in
// parallel. An SDK can hold tens of thousands of headers, so this is
// the slowest part of manifest writing.
func hashFiles(ctx context.Context, root string, files []ManifestFile) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i := range files {
		f := &files[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sum, err := hashFile(filepath.Join(root, filepath.FromSlash(f.Path)))
			if err != nil {
				return err
			}
			f.SHA256 = sum
			return nil
		})
	}
	return g.Wait()
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// ReadManifest reads the completion manifest of a toolchain install
// tree, reporting fs.ErrNotExist when the tree was never finished.
func ReadManifest(root string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(root, ManifestName))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("malformed manifest in %s: %v", root, err)
	}
	return &m, nil
}
