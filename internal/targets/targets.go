// Copyright 2025 The Appletc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package targets defines the Apple target vocabulary shared by the
// toolchain assembler: architectures, target triples, and the platforms
// named by SDK settings.
package targets

import "fmt"

// Arch is a target CPU architecture understood by Apple compilers,
// e.g. "arm64".
type Arch string

// The supported architectures, in the order they are documented.
var Arches = []Arch{"x86", "x86_64", "arm", "arm64"}

// tripleSuffix is the fixed vendor-os portion of every target triple.
// Apple toolchains select the platform through the SDK sysroot and the
// -m<platform>-version-min flag; the triple stays the same for iOS and
// macOS targets of the same architecture.
const tripleSuffix = "apple-darwin11"

// ParseArch validates s against the supported architecture set.
func ParseArch(s string) (Arch, error) {
	for _, a := range Arches {
		if s == string(a) {
			return a, nil
		}
	}
	return "", fmt.Errorf("unsupported architecture %q (supported: %v)", s, Arches)
}

// Triple returns the full target triple for the architecture,
// e.g. "arm64-apple-darwin11".
func (a Arch) Triple() string {
	return string(a) + "-" + tripleSuffix
}

// Platform is an Apple platform identifier as SDK settings spell it,
// e.g. "iphoneos" or "macosx".
type Platform string

// minVersions maps each known platform to the oldest OS release a
// toolchain targets when the caller does not pick a minimum version.
var minVersions = map[Platform]string{
	"iphoneos": "4.0",
	"macosx":   "10.5",
}

// Known reports whether p is a platform this tool knows how to target.
func (p Platform) Known() bool {
	_, ok := minVersions[p]
	return ok
}

// DefaultMinVersion returns the default minimum OS version for the
// platform. It fails for platforms with no recorded default; callers
// must then be told a version explicitly.
func (p Platform) DefaultMinVersion() (string, error) {
	v, ok := minVersions[p]
	if !ok {
		return "", fmt.Errorf("no default minimum version for platform %q", p)
	}
	return v, nil
}
