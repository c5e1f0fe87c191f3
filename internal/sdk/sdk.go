// Copyright 2025 The Appletc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sdk materializes and inspects Apple SDKs.
//
// An SDK arrives as a directory tree or a tar archive, possibly with
// one layer of wrapping directory (iPhoneOS9.3.sdk/...). The package
// extracts it, normalizes it so the settings file sits at the SDK
// root, and reads the settings the rest of the assembler needs: the
// SDK's canonical name, version, and platform.
package sdk

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"howett.net/plist"

	"github.com/applecross/appletc/internal/targets"
)

// SettingsName is the settings file every well-formed SDK carries at
// its root.
const SettingsName = "SDKSettings.plist"

// Normalize errors. Both are wrapped with the directory involved.
var (
	ErrNoSDK        = errors.New("no SDK settings found")
	ErrAmbiguousSDK = errors.New("multiple SDK candidates")
)

// Info describes an SDK, read from its settings file. It is computed
// once per run and never modified afterwards.
type Info struct {
	Name     string           // canonical name, e.g. "iphoneos9.3"
	Version  string           // SDK version, e.g. "9.3"
	Platform targets.Platform // platform identifier, e.g. "iphoneos"
}

// Normalize rearranges the extracted tree rooted at root so that the
// SDK settings file is at root itself. Archives often wrap the SDK in
// a single directory; Normalize hoists that directory's children up
// one level and removes it.
//
// If the settings file is already at root, Normalize does nothing, so
// normalizing twice is safe. If no directory under root holds a
// settings file the error wraps ErrNoSDK; if several do, it wraps
// ErrAmbiguousSDK and the tree is left exactly as it was.
func Normalize(root string) error {
	if _, err := os.Stat(filepath.Join(root, SettingsName)); err == nil {
		return nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	var candidates []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, e.Name(), SettingsName)); err == nil {
			candidates = append(candidates, e.Name())
		}
	}
	switch len(candidates) {
	case 0:
		return fmt.Errorf("%s: %w", root, ErrNoSDK)
	case 1:
		// Hoist below.
	default:
		return fmt.Errorf("%s: %w: %s", root, ErrAmbiguousSDK, strings.Join(candidates, ", "))
	}

	sub := filepath.Join(root, candidates[0])
	children, err := os.ReadDir(sub)
	if err != nil {
		return err
	}
	for _, c := range children {
		if err := os.Rename(filepath.Join(sub, c.Name()), filepath.Join(root, c.Name())); err != nil {
			return err
		}
	}
	return os.Remove(sub)
}

// settings mirrors the keys of SDKSettings.plist that matter here.
// Apple's settings files carry many more; they are ignored.
type settings struct {
	CanonicalName     string `plist:"CanonicalName"`
	Version           string `plist:"Version"`
	DefaultProperties struct {
		PlatformName string `plist:"PLATFORM_NAME"`
	} `plist:"DefaultProperties"`
}

// Inspect reads the settings file of the normalized SDK at root.
// A settings file missing any of the required keys is rejected.
func Inspect(root string) (Info, error) {
	path := filepath.Join(root, SettingsName)
	data, err := os.ReadFile(path)
	if err != nil {
		return Info{}, fmt.Errorf("reading SDK settings: %v", err)
	}
	var s settings
	if _, err := plist.Unmarshal(data, &s); err != nil {
		return Info{}, fmt.Errorf("parsing %s: %v", path, err)
	}
	if s.CanonicalName == "" || s.Version == "" || s.DefaultProperties.PlatformName == "" {
		return Info{}, fmt.Errorf("malformed SDK settings in %s: need CanonicalName, Version, and DefaultProperties.PLATFORM_NAME", path)
	}
	return Info{
		Name:     s.CanonicalName,
		Version:  s.Version,
		Platform: targets.Platform(s.DefaultProperties.PlatformName),
	}, nil
}
