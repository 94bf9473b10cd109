// SPDX-License-Identifier: MPL-2.0

package assemble

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"

	"github.com/mobundle/mobundle/internal/closure"
	"github.com/mobundle/mobundle/internal/target"
	"github.com/mobundle/mobundle/internal/testutil/toolexectest"
	"github.com/mobundle/mobundle/internal/toolexec"
	"github.com/mobundle/mobundle/pkg/types"
)

// copyInputToOutput emulates zipalign by copying its input to its output.
func copyInputToOutput(cmd toolexec.Command) (*toolexec.Result, error) {
	n := len(cmd.Args)
	if err := copyFile(cmd.Args[n-2], cmd.Args[n-1]); err != nil {
		return nil, err
	}
	return &toolexec.Result{}, nil
}

// writeBundle emulates bundletool by copying the first module to --output.
func writeBundle(cmd toolexec.Command) (*toolexec.Result, error) {
	var modules, output string
	for _, a := range cmd.Args {
		if v, ok := strings.CutPrefix(a, "--modules="); ok {
			modules = strings.Split(v, ",")[0]
		}
		if v, ok := strings.CutPrefix(a, "--output="); ok {
			output = v
		}
	}
	if err := copyFile(modules, output); err != nil {
		return nil, err
	}
	return &toolexec.Result{}, nil
}

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := zip.NewWriter(f)
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(files[name])); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func readZip(t *testing.T, path string) map[string]*zip.File {
	t.Helper()
	r, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	t.Cleanup(func() { r.Close() })
	out := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		out[f.Name] = f
	}
	return out
}

func library(t *testing.T, dir, name string, tgt target.Target) closure.Library {
	t.Helper()
	p := filepath.Join(dir, tgt.ABI(), name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte("ELF "+name), 0o644); err != nil {
		t.Fatal(err)
	}
	return closure.Library{Name: name, Path: p, Target: tgt}
}

func mustABI(t *testing.T, abi string) target.Target {
	t.Helper()
	tgt, err := target.FromABI(target.Android, abi)
	if err != nil {
		t.Fatal(err)
	}
	return tgt
}

func TestAPKMergesLibrariesAndAligns(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	base := filepath.Join(dir, "base.apk")
	writeZip(t, base, map[string]string{
		"AndroidManifest.xml":     "<manifest/>",
		"resources.arsc":          "arsc",
		"lib/arm64-v8a/libold.so": "stale",
	})
	arm64 := mustABI(t, "arm64-v8a")
	x86 := mustABI(t, "x86_64")
	libs := []closure.Library{
		library(t, filepath.Join(dir, "libs"), "libapp.so", arm64),
		library(t, filepath.Join(dir, "libs"), "libc++_shared.so", arm64),
		library(t, filepath.Join(dir, "libs"), "libapp.so", x86),
	}

	runner := toolexectest.NewRunner().Handle("zipalign", copyInputToOutput)
	a := New(runner, WithZipalign("zipalign"))
	out := filepath.Join(dir, "out", "app.apk")
	stages, err := a.APK(context.Background(), APKRequest{
		Base:      base,
		Libraries: libs,
		WorkDir:   filepath.Join(dir, "work"),
		Output:    out,
	})
	if err != nil {
		t.Fatalf("APK() error = %v", err)
	}
	runner.AssertSequence(t, "zipalign")

	var names []string
	for _, s := range stages {
		names = append(names, s.Name)
	}
	if want := []string{"unaligned", "merged", "aligned"}; !slices.Equal(names, want) {
		t.Errorf("stages = %v, want %v", names, want)
	}

	files := readZip(t, out)
	for _, name := range []string{
		"AndroidManifest.xml",
		"resources.arsc",
		"lib/arm64-v8a/libapp.so",
		"lib/arm64-v8a/libc++_shared.so",
		"lib/x86_64/libapp.so",
		"lib/arm64-v8a/libold.so",
	} {
		if _, ok := files[name]; !ok {
			t.Errorf("entry %q missing from aligned APK", name)
		}
	}
	for name, f := range files {
		if strings.HasSuffix(name, ".so") && strings.HasPrefix(name, "lib/") && name != "lib/arm64-v8a/libold.so" && f.Method != zip.Store {
			t.Errorf("entry %q method = %d, want Store", name, f.Method)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "work", "lib", "x86_64", "libapp.so")); err != nil {
		t.Errorf("library mirror missing: %v", err)
	}
}

func TestAPKMissingBase(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	runner := toolexectest.NewRunner()
	_, err := New(runner).APK(context.Background(), APKRequest{
		Base:    filepath.Join(dir, "missing.apk"),
		WorkDir: dir,
		Output:  filepath.Join(dir, "app.apk"),
	})
	if !errors.Is(err, types.ErrMissingInput) {
		t.Fatalf("APK() error = %v, want ErrMissingInput", err)
	}
	if len(runner.Calls()) != 0 {
		t.Errorf("unexpected commands: %v", runner.Names())
	}
}

func TestAPKWithoutLibrariesCreatesWorkDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	base := filepath.Join(dir, "base.apk")
	writeZip(t, base, map[string]string{"AndroidManifest.xml": "<manifest/>"})

	runner := toolexectest.NewRunner().Handle("zipalign", copyInputToOutput)
	out := filepath.Join(dir, "out", "app.apk")
	_, err := New(runner, WithZipalign("zipalign")).APK(context.Background(), APKRequest{
		Base:    base,
		WorkDir: filepath.Join(dir, "fresh", "work"),
		Output:  out,
	})
	if err != nil {
		t.Fatalf("APK() error = %v", err)
	}
	if _, ok := readZip(t, out)["AndroidManifest.xml"]; !ok {
		t.Error("manifest missing from aligned APK")
	}
}

func TestAPKZipalignFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	base := filepath.Join(dir, "base.apk")
	writeZip(t, base, map[string]string{"AndroidManifest.xml": "<manifest/>"})

	runner := toolexectest.NewRunner().Handle("zipalign", toolexectest.Fail(1, "bad alignment"))
	_, err := New(runner, WithZipalign("zipalign")).APK(context.Background(), APKRequest{
		Base:    base,
		WorkDir: filepath.Join(dir, "work"),
		Output:  filepath.Join(dir, "app.apk"),
	})
	if !errors.Is(err, toolexec.ErrToolFailed) {
		t.Fatalf("APK() error = %v, want ErrToolFailed", err)
	}
}

func TestAPKAlignerProducesNothing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	base := filepath.Join(dir, "base.apk")
	writeZip(t, base, map[string]string{"AndroidManifest.xml": "<manifest/>"})

	_, err := New(toolexectest.NewRunner()).APK(context.Background(), APKRequest{
		Base:    base,
		WorkDir: filepath.Join(dir, "work"),
		Output:  filepath.Join(dir, "app.apk"),
	})
	var missing *types.MissingInputError
	if !errors.As(err, &missing) || missing.Kind != "aligned package" {
		t.Fatalf("APK() error = %v, want missing aligned package", err)
	}
}

func TestAABModuleLayout(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	base := filepath.Join(dir, "base.apk")
	writeZip(t, base, map[string]string{
		"AndroidManifest.xml":    "<manifest/>",
		"resources.pb":           "pb",
		"res/values/strings.xml": "strings",
		"assets/data.txt":        "data",
		"META-INF/extra.txt":     "x",
	})
	libs := []closure.Library{library(t, filepath.Join(dir, "libs"), "libapp.so", mustABI(t, "arm64-v8a"))}

	runner := toolexectest.NewRunner().Handle("java", writeBundle)
	a := New(runner, WithBundletool("java", "/opt/bundletool.jar"))
	out := filepath.Join(dir, "out", "app.aab")
	stages, err := a.AAB(context.Background(), AABRequest{
		Base:      base,
		Libraries: libs,
		WorkDir:   filepath.Join(dir, "work"),
		Output:    out,
	})
	if err != nil {
		t.Fatalf("AAB() error = %v", err)
	}
	if len(stages) != 4 || stages[3].Path != out {
		t.Errorf("stages = %+v", stages)
	}

	files := readZip(t, out)
	for _, name := range []string{
		"manifest/AndroidManifest.xml",
		"resources.pb",
		"res/values/strings.xml",
		"assets/data.txt",
		"root/META-INF/extra.txt",
		"lib/arm64-v8a/libapp.so",
	} {
		if _, ok := files[name]; !ok {
			t.Errorf("entry %q missing from module", name)
		}
	}
	if _, ok := files["AndroidManifest.xml"]; ok {
		t.Error("manifest left at the module root")
	}

	calls := runner.CallsTo("java")
	if len(calls) != 1 || !slices.Contains(calls[0].Args, "build-bundle") {
		t.Errorf("bundletool calls = %v", calls)
	}
}

func TestAABRequiresBundletool(t *testing.T) {
	t.Parallel()

	_, err := New(toolexectest.NewRunner()).AAB(context.Background(), AABRequest{})
	if !errors.Is(err, types.ErrMissingInput) {
		t.Fatalf("AAB() error = %v, want ErrMissingInput", err)
	}
}

func TestModuleEntryName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"AndroidManifest.xml", "manifest/AndroidManifest.xml"},
		{"resources.pb", "resources.pb"},
		{"res/drawable/icon.png", "res/drawable/icon.png"},
		{"assets/a/b.txt", "assets/a/b.txt"},
		{"lib/x86/libfoo.so", "lib/x86/libfoo.so"},
		{"dex/classes.dex", "dex/classes.dex"},
		{"kotlin/foo.kotlin_builtins", "root/kotlin/foo.kotlin_builtins"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := moduleEntryName(tt.in); got != tt.want {
				t.Errorf("moduleEntryName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func writeAppInputs(t *testing.T, dir string) (plist, res, assets string) {
	t.Helper()
	plist = filepath.Join(dir, "Info.plist")
	res = filepath.Join(dir, "res")
	assets = filepath.Join(dir, "assets")
	for p, content := range map[string]string{
		plist:                              "<plist/>",
		filepath.Join(res, "icon.png"):     "png",
		filepath.Join(assets, "level.dat"): "lvl",
	} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return plist, res, assets
}

func TestAppSingleBinary(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	plist, res, assets := writeAppInputs(t, dir)
	bin := filepath.Join(dir, "hello")
	if err := os.WriteFile(bin, []byte("macho"), 0o644); err != nil {
		t.Fatal(err)
	}

	runner := toolexectest.NewRunner()
	app, err := New(runner).App(context.Background(), AppRequest{
		Name:       "Hello",
		Executable: "hello",
		Binaries:   []string{bin},
		InfoPlist:  plist,
		Resources:  res,
		Assets:     assets,
		OutDir:     filepath.Join(dir, "out"),
	})
	if err != nil {
		t.Fatalf("App() error = %v", err)
	}
	if filepath.Base(app) != "Hello.app" {
		t.Errorf("App() = %q", app)
	}
	if len(runner.Calls()) != 0 {
		t.Errorf("single binary should not invoke lipo: %v", runner.Names())
	}

	fi, err := os.Stat(filepath.Join(app, "hello"))
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode().Perm()&0o100 == 0 {
		t.Errorf("executable mode = %v", fi.Mode())
	}
	for _, rel := range []string{"Info.plist", "icon.png", filepath.Join("assets", "level.dat")} {
		if _, err := os.Stat(filepath.Join(app, rel)); err != nil {
			t.Errorf("%s missing: %v", rel, err)
		}
	}
}

func TestAppUniversalBinary(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	plist, _, _ := writeAppInputs(t, dir)
	var bins []string
	for _, arch := range []string{"arm64", "x86_64"} {
		p := filepath.Join(dir, arch, "hello")
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(arch), 0o755); err != nil {
			t.Fatal(err)
		}
		bins = append(bins, p)
	}

	runner := toolexectest.NewRunner().Handle("lipo", toolexectest.WriteArgFile("-output", "fat"))
	app, err := New(runner, WithLipo("lipo")).App(context.Background(), AppRequest{
		Name:       "Hello",
		Executable: "hello",
		Binaries:   bins,
		InfoPlist:  plist,
		OutDir:     filepath.Join(dir, "out"),
	})
	if err != nil {
		t.Fatalf("App() error = %v", err)
	}
	runner.AssertSequence(t, "lipo")
	data, err := os.ReadFile(filepath.Join(app, "hello"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "fat" {
		t.Errorf("executable = %q, want lipo output", data)
	}
}

func TestAppMissingInputs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	plist, _, _ := writeAppInputs(t, dir)
	bin := filepath.Join(dir, "hello")
	if err := os.WriteFile(bin, []byte("macho"), 0o755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		req  AppRequest
	}{
		{"no binaries", AppRequest{Executable: "hello", InfoPlist: plist}},
		{"missing binary", AppRequest{Executable: "hello", Binaries: []string{filepath.Join(dir, "nope")}, InfoPlist: plist}},
		{"missing plist", AppRequest{Executable: "hello", Binaries: []string{bin}, InfoPlist: filepath.Join(dir, "nope.plist")}},
		{"missing resources", AppRequest{Executable: "hello", Binaries: []string{bin}, InfoPlist: plist, Resources: filepath.Join(dir, "nores")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := tt.req
			req.Name = "Hello"
			req.OutDir = filepath.Join(t.TempDir(), "out")
			if _, err := New(toolexectest.NewRunner()).App(context.Background(), req); !errors.Is(err, types.ErrMissingInput) {
				t.Errorf("App() error = %v, want ErrMissingInput", err)
			}
		})
	}
}

func TestIPAPayload(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	app := filepath.Join(dir, "Hello.app")
	if err := os.MkdirAll(filepath.Join(app, "assets"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(app, "hello"), []byte("macho"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(app, "assets", "a.txt"), []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "dist", "Hello.ipa")
	stages, err := New(toolexectest.NewRunner()).IPA(app, out)
	if err != nil {
		t.Fatalf("IPA() error = %v", err)
	}
	if stages[len(stages)-1].Path != out {
		t.Errorf("last stage = %+v", stages[len(stages)-1])
	}

	files := readZip(t, out)
	for _, name := range []string{"Payload/Hello.app/hello", "Payload/Hello.app/assets/a.txt"} {
		if _, ok := files[name]; !ok {
			t.Errorf("entry %q missing from ipa", name)
		}
	}
	if mode := files["Payload/Hello.app/hello"].Mode(); mode.Perm()&0o100 == 0 {
		t.Errorf("executable mode in ipa = %v", mode)
	}
	if _, err := os.Stat(filepath.Join(dir, "dist", "Payload")); !os.IsNotExist(err) {
		t.Errorf("Payload directory not removed: %v", err)
	}
}

func TestIPAMissingApp(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := New(toolexectest.NewRunner()).IPA(filepath.Join(dir, "Nope.app"), filepath.Join(dir, "x.ipa"))
	if !errors.Is(err, types.ErrMissingInput) {
		t.Fatalf("IPA() error = %v, want ErrMissingInput", err)
	}
}

func TestExtractArchiveRejectsTraversal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "evil.zip")
	writeZip(t, src, map[string]string{"../escape.txt": "x"})
	if err := extractArchive(src, filepath.Join(dir, "out")); err == nil {
		t.Fatal("extractArchive() accepted a path outside the destination")
	}
}
