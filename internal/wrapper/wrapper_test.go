// Copyright 2025 The Appletc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wrapper

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/applecross/appletc/internal/runutil"
)

var iosParams = Params{
	Compiler:   "clang",
	Arch:       "arm64",
	Platform:   "iphoneos",
	MinVersion: "9.3",
}

func TestRender(t *testing.T) {
	src, err := Render(iosParams)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	source := string(src)

	// The compiler invocation the wrapper builds, in argument order.
	inOrder := []string{
		`"clang",`,
		`"-target", "arm64-apple-darwin11",`,
		`"-isysroot", sdk,`,
		`"-arch", "arm64",`,
		`min_version,`,
		`"-mlinker-version=450.3",`,
		`execvp("clang"`,
	}
	pos := 0
	for _, want := range inOrder {
		i := strings.Index(source[pos:], want)
		if i < 0 {
			t.Fatalf("rendered source lacks %q after offset %d:\n%s", want, pos, source)
		}
		pos += i + len(want)
	}

	for _, want := range []string{
		`readlink("/proc/self/exe"`,
		`"%s/../sdk"`,
		`"IPHONEOS_SDK_SYSROOT"`,
		`"IPHONEOS_DEPLOYMENT_TARGET"`,
		`-miphoneos-version-min=%s`,
		`"9.3"`,
		`setenv("CODESIGN_ALLOCATE", "arm64-apple-darwin11-codesign_allocate", 1)`,
		`setenv("IOS_FAKE_CODE_SIGN", "1", 1)`,
		`setenv("COMPILER_PATH", dir, 1)`,
	} {
		if !strings.Contains(source, want) {
			t.Errorf("rendered source lacks %q", want)
		}
	}
}

func TestRenderMacOSX(t *testing.T) {
	src, err := Render(Params{
		Compiler:   "/opt/llvm/bin/clang",
		Arch:       "x86_64",
		Platform:   "macosx",
		MinVersion: "10.11",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	source := string(src)
	for _, want := range []string{
		`"MACOSX_SDK_SYSROOT"`,
		`"MACOSX_DEPLOYMENT_TARGET"`,
		`-mmacosx-version-min=%s`,
		`"10.11"`,
		`"-target", "x86_64-apple-darwin11",`,
		`execvp("/opt/llvm/bin/clang"`,
	} {
		if !strings.Contains(source, want) {
			t.Errorf("rendered source lacks %q", want)
		}
	}
}

func TestRenderValidation(t *testing.T) {
	tests := []struct {
		name string
		p    Params
	}{
		{"no compiler", Params{Arch: "arm64", Platform: "iphoneos", MinVersion: "9.3"}},
		{"bad arch", Params{Compiler: "clang", Arch: "mips", Platform: "iphoneos", MinVersion: "9.3"}},
		{"bad platform", Params{Compiler: "clang", Arch: "arm64", Platform: "watchos", MinVersion: "9.3"}},
		{"no min version", Params{Compiler: "clang", Arch: "arm64", Platform: "iphoneos"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Render(tt.p); err == nil {
				t.Errorf("Render(%+v) accepted invalid params", tt.p)
			}
		})
	}
}

func TestInstallName(t *testing.T) {
	tests := []struct {
		p    Params
		want string
	}{
		{Params{Compiler: "clang", Arch: "arm64"}, "arm64-apple-darwin11-clang"},
		{Params{Compiler: "/opt/llvm/bin/clang-15", Arch: "x86"}, "x86-apple-darwin11-clang-15"},
	}
	for _, tt := range tests {
		if got := tt.p.InstallName(); got != tt.want {
			t.Errorf("InstallName(%q, %q) = %q; want %q", tt.p.Compiler, tt.p.Arch, got, tt.want)
		}
	}
}

// plantTool writes an executable shell script into a fresh directory
// and prepends that directory to PATH for the test.
func plantTool(t *testing.T, name, script string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
	return path
}

func TestCompile(t *testing.T) {
	// The fake compiler echoes its input back, so the "executable"
	// must equal the source and proves stdin was wired through.
	plantTool(t, "fakecc", "#!/bin/sh\ncat\n")

	b := &Builder{Runner: &runutil.Runner{}, CC: "fakecc"}
	got, err := b.Compile(context.Background(), []byte("int main(void) { return 0; }\n"))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if string(got) != "int main(void) { return 0; }\n" {
		t.Errorf("Compile output = %q", got)
	}
}

func TestCompileFailure(t *testing.T) {
	plantTool(t, "fakecc", "#!/bin/sh\ncat >/dev/null\necho 'catastrophic parse error' >&2\nexit 1\n")

	b := &Builder{Runner: &runutil.Runner{}, CC: "fakecc"}
	_, err := b.Compile(context.Background(), []byte("int main(void) { return 0; }\n"))
	if err == nil {
		t.Fatal("Compile succeeded with a failing compiler")
	}
	if !strings.Contains(err.Error(), "wrapper compilation failed") ||
		!strings.Contains(err.Error(), "catastrophic parse error") {
		t.Errorf("Compile error lacks diagnostics: %v", err)
	}
}

func TestInstall(t *testing.T) {
	binDir := t.TempDir()
	path, err := Install(binDir, iosParams, []byte("#!/bin/sh\nexit 0\n"))
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if want := filepath.Join(binDir, "arm64-apple-darwin11-clang"); path != want {
		t.Errorf("Install path = %q; want %q", path, want)
	}
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := fi.Mode().Perm(); got != 0755 {
		t.Errorf("installed mode = %o; want 0755", got)
	}
}

// TestCompiledWrapper builds a real wrapper with the host C compiler
// and checks the invocation it constructs, by pointing it at a fake
// compiler that records its arguments and environment.
func TestCompiledWrapper(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("the wrapper resolves itself through /proc/self/exe; linux only")
	}
	if _, err := exec.LookPath("cc"); err != nil {
		t.Skip("no host C compiler in PATH")
	}

	ctx := context.Background()
	p := Params{Compiler: "fakeclang", Arch: "arm64", Platform: "iphoneos", MinVersion: "9.3"}

	src, err := Render(p)
	if err != nil {
		t.Fatal(err)
	}
	b := &Builder{Runner: &runutil.Runner{}}
	exe, err := b.Compile(ctx, src)
	if err != nil {
		t.Fatal(err)
	}

	install := t.TempDir()
	binDir := filepath.Join(install, "bin")
	if err := os.MkdirAll(binDir, 0777); err != nil {
		t.Fatal(err)
	}
	wrapperPath, err := Install(binDir, p, exe)
	if err != nil {
		t.Fatal(err)
	}

	plantTool(t, "fakeclang", `#!/bin/sh
for a in "$@"; do printf '%s\n' "$a"; done
printf 'CODESIGN_ALLOCATE=%s\n' "$CODESIGN_ALLOCATE"
printf 'IOS_FAKE_CODE_SIGN=%s\n' "$IOS_FAKE_CODE_SIGN"
printf 'COMPILER_PATH=%s\n' "$COMPILER_PATH"
`)

	// readlink(/proc/self/exe) yields the physical path, so the
	// recorded argv is phrased in resolved paths.
	physBin, err := filepath.EvalSymlinks(binDir)
	if err != nil {
		t.Fatal(err)
	}

	run := func(t *testing.T, args ...string) []string {
		t.Helper()
		var r runutil.Runner
		res, err := r.Run(ctx, runutil.Cmd{
			Name:          wrapperPath,
			Args:          args,
			CaptureStdout: true,
			CaptureStderr: true,
		})
		if err != nil {
			t.Fatal(err)
		}
		if res.ExitCode != 0 {
			t.Fatalf("wrapper exited %d:\n%s", res.ExitCode, res.Stderr)
		}
		return strings.Split(strings.TrimRight(string(res.Stdout), "\n"), "\n")
	}

	t.Run("defaults", func(t *testing.T) {
		got := run(t, "-c", "hello.c")
		want := []string{
			"-target", "arm64-apple-darwin11",
			"-isysroot", physBin + "/../sdk",
			"-arch", "arm64",
			"-miphoneos-version-min=9.3",
			"-mlinker-version=450.3",
			"-c", "hello.c",
			"CODESIGN_ALLOCATE=arm64-apple-darwin11-codesign_allocate",
			"IOS_FAKE_CODE_SIGN=1",
			"COMPILER_PATH=" + physBin,
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("wrapper invocation mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("IPHONEOS_SDK_SYSROOT", "/custom/sysroot")
		t.Setenv("IPHONEOS_DEPLOYMENT_TARGET", "10.2")
		got := run(t, "-c", "hello.c")
		want := []string{
			"-target", "arm64-apple-darwin11",
			"-isysroot", "/custom/sysroot",
			"-arch", "arm64",
			"-miphoneos-version-min=10.2",
			"-mlinker-version=450.3",
			"-c", "hello.c",
			"CODESIGN_ALLOCATE=arm64-apple-darwin11-codesign_allocate",
			"IOS_FAKE_CODE_SIGN=1",
			"COMPILER_PATH=" + physBin,
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("wrapper invocation mismatch (-want +got):\n%s", diff)
		}
	})
}
