// Copyright 2025 The Appletc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Binary appletc assembles a standalone Apple cross-compilation
// toolchain: one relocatable directory holding an Apple SDK, a
// compiler wrapper preconfigured for the chosen architecture, and the
// native tools (ldid, apple-libtapi, cctools) built from source.
//
// Usage:
//
//	appletc -sdk=iPhoneOS9.3.sdk.tar.xz -arch=arm64 -install-dir=$HOME/ios-toolchain
//
// The result compiles for the target out of the box:
//
//	$HOME/ios-toolchain/bin/arm64-apple-darwin11-clang hello.c
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/applecross/appletc/internal/targets"
	"github.com/applecross/appletc/internal/toolchain"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("appletc: ")

	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: appletc -sdk=<sdk> -arch=<arch> -install-dir=<dir> [options]")
		flag.PrintDefaults()
	}
	sdk := flag.String("sdk", "", "Apple SDK to use: a directory, .tar.gz, or .tar.xz archive (required)")
	arch := flag.String("arch", "", fmt.Sprintf("target architecture, one of %v (required)", targets.Arches))
	installDir := flag.String("install-dir", "", "directory to create the toolchain in (required)")
	minVersion := flag.String("min-version", "", "minimum OS version to target (default: the platform's own)")
	clang := flag.String("clang", "clang", "C compiler for the wrapper to exec")
	clangxx := flag.String("clangxx", "", "C++ compiler name (default: the -clang value plus \"++\")")
	tools := flag.String("tools", "tools", "directory holding the ldid, apple-libtapi, and cctools sources")
	var force bool
	flag.BoolVar(&force, "f", false, "overwrite an existing install directory")
	flag.BoolVar(&force, "force", false, "same as -f")
	verbose := flag.Bool("v", false, "log every command run")
	flag.Parse()

	if flag.NArg() != 0 || *sdk == "" || *arch == "" || *installDir == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	asm := &toolchain.Assembler{}
	_, err := asm.Assemble(ctx, toolchain.Request{
		Arch:       targets.Arch(*arch),
		SDK:        *sdk,
		InstallDir: *installDir,
		MinVersion: *minVersion,
		Clang:      *clang,
		ClangXX:    *clangxx,
		Tools:      *tools,
		Force:      force,
		Verbose:    *verbose,
	})
	if err != nil {
		log.Fatalln(err)
	}
}
