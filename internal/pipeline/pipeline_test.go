// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/zip"

	"github.com/mobundle/mobundle/internal/closure"
	"github.com/mobundle/mobundle/internal/project"
	"github.com/mobundle/mobundle/internal/publish"
	"github.com/mobundle/mobundle/internal/signer"
	"github.com/mobundle/mobundle/internal/target"
	"github.com/mobundle/mobundle/internal/testutil"
	"github.com/mobundle/mobundle/internal/testutil/sdkfixture"
	"github.com/mobundle/mobundle/internal/testutil/toolexectest"
	"github.com/mobundle/mobundle/internal/toolexec"
	"github.com/mobundle/mobundle/pkg/types"
)

const (
	apksignerOutput = "Verifies\nSigner #1 certificate SHA-256 digest: abcdef0123\n"
	keytoolOutput   = "Alias name: androiddebugkey\nCertificate fingerprints:\n\t SHA256: AB:CD:EF:01:23\n"
)

var noEnv = testutil.MapEnv(nil)

func argAfter(args []string, flag string) string {
	i := slices.Index(args, flag)
	if i < 0 || i+1 >= len(args) {
		return ""
	}
	return args[i+1]
}

// fakeCargo writes the artifact cargo would produce for the command.
func fakeCargo(failTriple string) toolexectest.Handler {
	return func(cmd toolexec.Command) (*toolexec.Result, error) {
		triple := argAfter(cmd.Args, "--target")
		if triple == failTriple {
			return toolexectest.Fail(101, "error: could not compile `hello-world`")(cmd)
		}
		profile := "debug"
		if slices.Contains(cmd.Args, "--release") {
			profile = "release"
		}
		out := filepath.Join(argAfter(cmd.Args, "--target-dir"), triple, profile)
		name := argAfter(cmd.Args, "--bin")
		if slices.Contains(cmd.Args, "--lib") {
			name = "libhello_world.so"
		}
		if err := os.MkdirAll(out, 0o755); err != nil {
			return nil, err
		}
		return &toolexec.Result{}, os.WriteFile(filepath.Join(out, name), []byte("binary "+triple), 0o755)
	}
}

// fakeReadelf reports libhello_world.so needing libfoo.so, liblog.so and the
// C++ runtime, and libfoo.so needing a library that does not exist.
func fakeReadelf(cmd toolexec.Command) (*toolexec.Result, error) {
	needed := map[string][]string{
		"libhello_world.so": {"libfoo.so", "liblog.so", "libc++_shared.so"},
		"libfoo.so":         {"libgone.so", "libc.so"},
	}[filepath.Base(cmd.Args[len(cmd.Args)-1])]
	var b strings.Builder
	for _, n := range needed {
		b.WriteString(" 0x0000000000000001 (NEEDED)             Shared library: [" + n + "]\n")
	}
	return &toolexec.Result{Stdout: b.String()}, nil
}

// fakeAapt2 links a minimal zip so later stages can rewrite it.
func fakeAapt2(cmd toolexec.Command) (*toolexec.Result, error) {
	if cmd.Args[0] != "link" {
		return &toolexec.Result{}, nil
	}
	f, err := os.Create(argAfter(cmd.Args, "-o"))
	if err != nil {
		return nil, err
	}
	w := zip.NewWriter(f)
	fw, err := w.Create("AndroidManifest.xml")
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write([]byte("<manifest/>")); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return &toolexec.Result{}, f.Close()
}

func fakeZipalign(cmd toolexec.Command) (*toolexec.Result, error) {
	n := len(cmd.Args)
	data, err := os.ReadFile(cmd.Args[n-2])
	if err != nil {
		return nil, err
	}
	return &toolexec.Result{}, os.WriteFile(cmd.Args[n-1], data, 0o644)
}

func fakeApksigner(verify string) toolexectest.Handler {
	return func(cmd toolexec.Command) (*toolexec.Result, error) {
		if cmd.Args[0] == "verify" {
			return toolexectest.Stdout(verify)(cmd)
		}
		return &toolexec.Result{}, nil
	}
}

func fakeKeytool(cmd toolexec.Command) (*toolexec.Result, error) {
	if cmd.Args[0] == "-genkeypair" {
		return toolexectest.WriteArgFile("-keystore", "jks")(cmd)
	}
	return toolexectest.Stdout(keytoolOutput)(cmd)
}

func androidRunner(failTriple, verify string) *toolexectest.Runner {
	return toolexectest.NewRunner().
		Handle("cargo", fakeCargo(failTriple)).
		Handle("llvm-readelf", fakeReadelf).
		Handle("aapt2", fakeAapt2).
		Handle("zipalign", fakeZipalign).
		Handle("apksigner", fakeApksigner(verify)).
		Handle("keytool", fakeKeytool)
}

func newProject(t *testing.T) *project.Project {
	t.Helper()
	dir := t.TempDir()
	sdkfixture.WriteFile(t, filepath.Join(dir, "Cargo.toml"), "[package]\nname = \"hello-world\"\n")
	for _, abi := range []string{"arm64-v8a", "x86_64"} {
		sdkfixture.WriteFile(t, filepath.Join(dir, "prebuilt", abi, "libfoo.so"), "foo "+abi)
	}
	return &project.Project{
		ManifestPath:  filepath.Join(dir, "Cargo.toml"),
		Dir:           dir,
		WorkspaceRoot: dir,
		Name:          "hello-world",
		Version:       semver.MustParse("1.2.3"),
		LibName:       "hello_world",
		BinNames:      []string{"hello-world"},
		Metadata: project.Metadata{
			Namespace: "acme",
			Android:   project.AndroidMetadata{RuntimeLibs: []string{"prebuilt"}},
		},
	}
}

func newAndroid(t *testing.T, s Settings, runner *toolexectest.Runner) (*AndroidPipeline, *BuildContext) {
	t.Helper()
	if s.KeystoreDir == "" {
		s.KeystoreDir = t.TempDir()
	}
	bc := NewBuildContext(newProject(t), s, noEnv)
	tc := sdkfixture.NewAndroid(t, "25.2.9519653").Discover(t)
	p, err := NewAndroidPipeline(bc, runner, tc, WithLookupEnv(noEnv))
	if err != nil {
		t.Fatalf("NewAndroidPipeline() error = %v", err)
	}
	return p, bc
}

func androidTargets(t *testing.T, abis ...string) []target.Target {
	t.Helper()
	ts, err := target.ParseList(target.Android, abis)
	if err != nil {
		t.Fatal(err)
	}
	return ts
}

func libraryNames(libs []closure.Library) []string {
	out := make([]string, len(libs))
	for i, l := range libs {
		out[i] = l.Target.ABI() + "/" + l.Name
	}
	return out
}

func TestAndroidPipelineAPK(t *testing.T) {
	t.Parallel()

	runner := androidRunner("", apksignerOutput)
	p, bc := newAndroid(t, Settings{Profile: types.Release, Jobs: 2, Verify: true}, runner)

	report, err := p.Run(t.Context(), androidTargets(t, "arm64-v8a", "x86_64"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	wantArtifact := filepath.Join(bc.TargetDir(), "android", "release", "hello-world.apk")
	if report.Artifact != wantArtifact {
		t.Errorf("Artifact = %q, want %q", report.Artifact, wantArtifact)
	}
	if _, err := os.Stat(report.Artifact); err != nil {
		t.Fatalf("artifact missing: %v", err)
	}

	wantLibs := []string{
		"arm64-v8a/libhello_world.so", "arm64-v8a/libfoo.so", "arm64-v8a/libc++_shared.so",
		"x86_64/libhello_world.so", "x86_64/libfoo.so", "x86_64/libc++_shared.so",
	}
	if got := libraryNames(report.Libraries); !slices.Equal(got, wantLibs) {
		t.Errorf("Libraries = %v, want %v", got, wantLibs)
	}
	if len(report.Missing) != 2 || report.Missing[0].Name != "libgone.so" {
		t.Errorf("Missing = %v", report.Missing)
	}
	if report.Verification == nil || !slices.Equal(report.Verification.Fingerprints, []string{"abcdef0123"}) {
		t.Errorf("Verification = %+v", report.Verification)
	}

	data, err := os.ReadFile(filepath.Join(bc.OutputDir("android"), "AndroidManifest.xml"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`package="com.acme.hello_world"`, `android:versionCode="66051"`, `android:versionName="1.2.3"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("manifest missing %s:\n%s", want, data)
		}
	}

	r, err := zip.OpenReader(report.Artifact)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	var entries []string
	for _, f := range r.File {
		entries = append(entries, f.Name)
	}
	for _, want := range []string{"AndroidManifest.xml", "lib/arm64-v8a/libhello_world.so", "lib/x86_64/libc++_shared.so"} {
		if !slices.Contains(entries, want) {
			t.Errorf("apk entries %v missing %s", entries, want)
		}
	}

	var stages []Stage
	for _, a := range report.History {
		if len(stages) == 0 || stages[len(stages)-1] != a.Stage {
			stages = append(stages, a.Stage)
		}
	}
	if want := []Stage{StageCompile, StageManifest, StageLink, StageAssemble, StageSign}; !slices.Equal(stages, want) {
		t.Errorf("history stages = %v, want %v", stages, want)
	}
	if n := len(runner.CallsTo("cargo")); n != 2 {
		t.Errorf("cargo calls = %d, want 2", n)
	}
}

func TestAndroidPipelineStrictDependencies(t *testing.T) {
	t.Parallel()

	p, _ := newAndroid(t, Settings{StrictDependencies: true}, androidRunner("", apksignerOutput))
	_, err := p.Run(t.Context(), androidTargets(t, "arm64-v8a"))

	var sErr *StageError
	if !errors.As(err, &sErr) || sErr.Stage != StageResolve || sErr.Target.ABI() != "arm64-v8a" {
		t.Fatalf("Run() error = %v, want resolve stage error", err)
	}
	if !errors.Is(err, closure.ErrDependencyNotFound) {
		t.Errorf("Run() error = %v, want ErrDependencyNotFound", err)
	}
}

func TestAndroidPipelineFailFast(t *testing.T) {
	t.Parallel()

	runner := androidRunner("aarch64-linux-android", apksignerOutput)
	p, _ := newAndroid(t, Settings{Jobs: 1}, runner)
	report, err := p.Run(t.Context(), androidTargets(t, "arm64-v8a", "x86_64"))
	if report != nil {
		t.Errorf("Run() report = %+v, want nil", report)
	}

	var sErr *StageError
	if !errors.As(err, &sErr) || sErr.Stage != StageCompile || sErr.Target.ABI() != "arm64-v8a" {
		t.Fatalf("Run() error = %v, want compile error for arm64-v8a", err)
	}
	if !errors.Is(err, toolexec.ErrToolFailed) {
		t.Errorf("Run() error = %v, want ErrToolFailed", err)
	}
	if n := len(runner.CallsTo("aapt2")); n != 0 {
		t.Errorf("packaging ran after a failed target: %d aapt2 calls", n)
	}
}

func TestAndroidPipelineKeepGoing(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	runner := androidRunner("", apksignerOutput).Handle("cargo", func(cmd toolexec.Command) (*toolexec.Result, error) {
		calls.Add(1)
		return toolexectest.Fail(101, "boom")(cmd)
	})

	p, _ := newAndroid(t, Settings{Jobs: 1, KeepGoing: true}, runner)
	_, err := p.Run(t.Context(), androidTargets(t, "arm64-v8a", "x86_64"))
	if err == nil {
		t.Fatal("Run() succeeded")
	}
	if calls.Load() != 2 {
		t.Errorf("cargo calls = %d, want every target attempted", calls.Load())
	}
	for _, abi := range []string{"arm64-v8a", "x86_64"} {
		if !strings.Contains(err.Error(), "compile ["+abi+"]") {
			t.Errorf("joined error %q does not mention %s", err, abi)
		}
	}
}

func TestAndroidPipelineVerificationFailureKeepsArtifact(t *testing.T) {
	t.Parallel()

	other := "Signer #1 certificate SHA-256 digest: 999999\n"
	p, _ := newAndroid(t, Settings{Verify: true}, androidRunner("", other))
	report, err := p.Run(t.Context(), androidTargets(t, "arm64-v8a"))

	var sErr *StageError
	if !errors.As(err, &sErr) || sErr.Stage != StageVerify {
		t.Fatalf("Run() error = %v, want verify stage error", err)
	}
	if !errors.Is(err, signer.ErrVerificationFailed) {
		t.Errorf("Run() error = %v, want ErrVerificationFailed", err)
	}
	if _, err := os.Stat(report.Artifact); err != nil {
		t.Errorf("artifact removed after failed verification: %v", err)
	}
}

func TestAndroidPipelineMissingBuildTool(t *testing.T) {
	t.Parallel()

	fx := sdkfixture.NewAndroid(t, "25.2.9519653")
	if err := os.Remove(filepath.Join(fx.SDK, "build-tools", "34.0.0", "zipalign")); err != nil {
		t.Fatal(err)
	}
	bc := NewBuildContext(newProject(t), Settings{}, noEnv)
	_, err := NewAndroidPipeline(bc, toolexectest.NewRunner(), fx.Discover(t))

	var sErr *StageError
	if !errors.As(err, &sErr) || sErr.Stage != StageDiscover {
		t.Fatalf("NewAndroidPipeline() error = %v, want discover stage error", err)
	}
}

func TestApplePipeline(t *testing.T) {
	t.Parallel()

	runner := toolexectest.NewRunner().
		Handle("cargo", fakeCargo("")).
		Handle("lipo", toolexectest.WriteArgFile("-output", "universal"))
	bc := NewBuildContext(newProject(t), Settings{Verify: true}, noEnv)
	p := NewApplePipeline(bc, runner, sdkfixture.NewXcode(t).Discover(t), WithLookupEnv(noEnv))

	targets, err := target.ParseList(target.Apple, []string{"aarch64-apple-ios-sim", "x86_64-apple-ios"})
	if err != nil {
		t.Fatal(err)
	}
	report, err := p.Run(t.Context(), targets)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if want := filepath.Join(bc.OutputDir("apple"), "hello-world.ipa"); report.Artifact != want {
		t.Errorf("Artifact = %q, want %q", report.Artifact, want)
	}
	r, err := zip.OpenReader(report.Artifact)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	var entries []string
	for _, f := range r.File {
		entries = append(entries, f.Name)
	}
	for _, want := range []string{"Payload/hello-world.app/hello-world", "Payload/hello-world.app/Info.plist"} {
		if !slices.Contains(entries, want) {
			t.Errorf("ipa entries %v missing %s", entries, want)
		}
	}
	if got := runner.Names(); !slices.Equal(got, []string{"cargo", "cargo", "lipo", "codesign", "codesign"}) {
		t.Errorf("commands = %v", got)
	}
}

func TestApplePipelineRejectsMixedTargets(t *testing.T) {
	t.Parallel()

	bc := NewBuildContext(newProject(t), Settings{}, noEnv)
	runner := toolexectest.NewRunner()
	p := NewApplePipeline(bc, runner, sdkfixture.NewXcode(t).Discover(t))
	targets, err := target.ParseList(target.Apple, []string{"arm64", "arm64-sim"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Run(context.Background(), targets); !errors.Is(err, ErrMixedSimulator) {
		t.Errorf("Run() error = %v, want ErrMixedSimulator", err)
	}
	if len(runner.Calls()) != 0 {
		t.Errorf("unexpected commands: %v", runner.Names())
	}
}

func TestStageError(t *testing.T) {
	t.Parallel()

	arm64 := target.Default(target.Android)
	base := errors.New("boom")
	tests := []struct {
		err  *StageError
		want string
	}{
		{&StageError{Stage: StageCompile, Target: arm64, Err: base}, "compile [arm64-v8a]: boom"},
		{&StageError{Stage: StageLink, Err: base}, "link: boom"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
		if !errors.Is(tt.err, base) {
			t.Errorf("%v does not unwrap to the cause", tt.err)
		}
	}
}

func TestBuildContext(t *testing.T) {
	t.Parallel()

	proj := newProject(t)
	features := []string{"a"}
	bc := NewBuildContext(proj, Settings{Profile: types.Release, Features: features, Namespace: "override"}, noEnv)
	features[0] = "mutated"

	if got := bc.Settings().Features; !slices.Equal(got, []string{"a"}) {
		t.Errorf("Settings().Features = %v, want a copy", got)
	}
	if bc.Settings().Jobs < 1 {
		t.Error("Jobs not defaulted")
	}
	if got := bc.Identity().AndroidPackage(); got != "com.override.hello_world" {
		t.Errorf("Identity().AndroidPackage() = %q", got)
	}
	if want := filepath.Join(proj.Dir, "target", "apple", "release"); bc.OutputDir("apple") != want {
		t.Errorf("OutputDir() = %q, want %q", bc.OutputDir("apple"), want)
	}
}

type recordingPutter struct{ keys []string }

func (r *recordingPutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	r.keys = append(r.keys, aws.ToString(in.Key))
	return &s3.PutObjectOutput{}, nil
}

func TestAndroidPipelinePublishes(t *testing.T) {
	t.Parallel()

	putter := &recordingPutter{}
	bc := NewBuildContext(newProject(t), Settings{KeystoreDir: t.TempDir()}, noEnv)
	tc := sdkfixture.NewAndroid(t, "21.4.7075529").Discover(t)
	p, err := NewAndroidPipeline(bc, androidRunner("", apksignerOutput), tc,
		WithLookupEnv(noEnv),
		WithPublisher(publish.New(putter, "artifacts", "nightly")))
	if err != nil {
		t.Fatal(err)
	}

	report, err := p.Run(t.Context(), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if want := []string{"nightly/hello-world/1.2.3/hello-world.apk"}; !slices.Equal(putter.keys, want) {
		t.Errorf("uploaded keys = %v, want %v", putter.keys, want)
	}
	if report.Upload == nil || report.Upload.Bucket != "artifacts" {
		t.Errorf("Upload = %+v", report.Upload)
	}
}
