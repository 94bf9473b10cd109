// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
)

// Id identifies a catalogued issue.
type Id int

const (
	ProjectNotFoundId Id = iota + 1
	ManifestInvalidId
	ConfigLoadFailedId
	UnsupportedTargetId
	AndroidSDKNotFoundId
	AndroidNDKNotFoundId
	XcodeNotFoundId
	BuildToolMissingId
	CompilationFailedId
	DependencyNotFoundId
	ManifestIncompleteId
	BundletoolMissingId
	SigningFailedId
	VerificationFailedId
	PublishFailedId
	PermissionDeniedId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink  // documentation for the issue
	extLinks []HttpLink  // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the issue as terminal Markdown with the given glamour style
// ("dark", "light", "notty" or a path to a JSON style).
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range i.docLinks {
			md.WriteString("- <" + string(link) + ">\n")
		}
		for _, link := range i.extLinks {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), stylePath)
}

var (
	glamourRender = glamour.Render
	render        = glamourRender

	projectNotFoundIssue = &Issue{
		id: ProjectNotFoundId,
		mdMsg: `
# No Cargo.toml found!

mobundle packages Rust crates and looks for a Cargo.toml in the current
directory and its parents.

## Things you can try:
- Run the command from inside your crate:
~~~
$ cd /path/to/crate
$ mobundle build android
~~~
- Or point at the manifest explicitly:
~~~
$ mobundle build android --manifest-path /path/to/crate/Cargo.toml
~~~`,
		docLinks: []HttpLink{"https://doc.rust-lang.org/cargo/reference/manifest.html"},
	}

	manifestInvalidIssue = &Issue{
		id: ManifestInvalidId,
		mdMsg: `
# Cargo.toml could not be used!

The package manifest is not valid TOML, has no [package] table, or its
version is not a semantic version.

## Things you can try:
- Check the manifest with cargo:
~~~
$ cargo metadata --no-deps --format-version 1
~~~
- Packaging settings live under [package.metadata.mobundle]:
~~~toml
[package.metadata.mobundle]
namespace = "acme"
app_name = "Hello"

[package.metadata.mobundle.android]
targets = ["arm64-v8a", "x86_64"]
min_sdk = 23
~~~`,
		docLinks: []HttpLink{"https://doc.rust-lang.org/cargo/reference/manifest.html#the-metadata-table"},
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

The global config.cue did not match the expected schema.

## Things you can try:
- Show where the file is and what is in effect:
~~~
$ mobundle config path
$ mobundle config show
~~~
- Remove the file to fall back to the defaults.`,
		docLinks: []HttpLink{"https://cuelang.org/docs/tour/"},
	}

	unsupportedTargetIssue = &Issue{
		id: UnsupportedTargetId,
		mdMsg: `
# Unsupported target!

## Supported Android targets:
armeabi-v7a, arm64-v8a, x86, x86_64

## Supported Apple targets:
aarch64-apple-ios, aarch64-apple-ios-sim, x86_64-apple-ios

## Things you can try:
- List every target with its triple:
~~~
$ mobundle targets
~~~`,
		docLinks: []HttpLink{"https://doc.rust-lang.org/rustc/platform-support.html"},
	}

	androidSDKNotFoundIssue = &Issue{
		id: AndroidSDKNotFoundId,
		mdMsg: `
# Android SDK not found!

## Things you can try:
- Set one of ANDROID_SDK_ROOT, ANDROID_SDK_PATH or ANDROID_HOME.
- Or set android.sdk_path in the global config.
- Install build-tools and a platform:
~~~
$ sdkmanager "build-tools;34.0.0" "platforms;android-34"
~~~`,
		docLinks: []HttpLink{"https://developer.android.com/tools/sdkmanager"},
	}

	androidNDKNotFoundIssue = &Issue{
		id: AndroidNDKNotFoundId,
		mdMsg: `
# Android NDK not found!

## Things you can try:
- Set ANDROID_NDK_ROOT, or install the NDK inside the SDK:
~~~
$ sdkmanager "ndk;26.3.11579264"
~~~
- Or set android.ndk_path in the global config.`,
		docLinks: []HttpLink{"https://developer.android.com/ndk/downloads"},
	}

	xcodeNotFoundIssue = &Issue{
		id: XcodeNotFoundId,
		mdMsg: `
# Xcode not found!

Apple targets need Xcode with the iOS SDKs.

## Things you can try:
- Select the active developer directory:
~~~
$ sudo xcode-select -s /Applications/Xcode.app/Contents/Developer
~~~
- Or set DEVELOPER_DIR or apple.developer_dir in the global config.`,
	}

	buildToolMissingIssue = &Issue{
		id: BuildToolMissingId,
		mdMsg: `
# A build tool is missing!

aapt2, zipalign, apksigner, llvm-readelf or keytool could not be found.

## Things you can try:
- Check what mobundle can see:
~~~
$ mobundle doctor
~~~
- Install a recent build-tools package with sdkmanager.
- Make sure a JDK is installed for keytool.`,
	}

	compilationFailedIssue = &Issue{
		id: CompilationFailedId,
		mdMsg: `
# cargo build failed!

The compiler output above shows the cause.

## Things you can try:
- Make sure the Rust target is installed:
~~~
$ rustup target add aarch64-linux-android
~~~
- Android libraries need crate-type = ["cdylib"] in [lib].`,
		docLinks: []HttpLink{"https://rust-lang.github.io/rustup/cross-compilation.html"},
	}

	dependencyNotFoundIssue = &Issue{
		id: DependencyNotFoundId,
		mdMsg: `
# Shared library dependency not found!

A library your crate links against is not on any search path, so it cannot
be packaged.

## Things you can try:
- Add its directory to [package.metadata.mobundle.android] runtime_libs.
- Run without --strict-dependencies to package anyway.`,
	}

	manifestIncompleteIssue = &Issue{
		id: ManifestIncompleteId,
		mdMsg: `
# Generated manifest is incomplete!

## Things you can try:
- Check package and version fields in Cargo.toml.
- Print the manifest mobundle would write:
~~~
$ mobundle manifest android
$ mobundle manifest apple
~~~`,
	}

	bundletoolMissingIssue = &Issue{
		id: BundletoolMissingId,
		mdMsg: `
# bundletool is required for .aab output!

## Things you can try:
- Download bundletool-all.jar and pass it:
~~~
$ mobundle build android --bundle --bundletool ~/bin/bundletool-all.jar
~~~
- Or set android.bundletool_path in the global config.`,
		extLinks: []HttpLink{"https://github.com/google/bundletool/releases"},
	}

	signingFailedIssue = &Issue{
		id: SigningFailedId,
		mdMsg: `
# Signing failed!

## Things you can try:
- Check the keystore path, alias and password in [package.metadata.mobundle.android.keystore].
- Recreate the debug keystore:
~~~
$ mobundle keystore ensure
~~~
- For Apple targets, list the identities available:
~~~
$ security find-identity -v -p codesigning
~~~`,
	}

	verificationFailedIssue = &Issue{
		id: VerificationFailedId,
		mdMsg: `
# Signature verification failed!

The artifact was kept so it can be inspected.

## Things you can try:
~~~
$ apksigner verify --print-certs app.apk
$ codesign --verify --deep --strict --verbose=2 Hello.app
~~~`,
	}

	publishFailedIssue = &Issue{
		id: PublishFailedId,
		mdMsg: `
# Upload failed!

## Things you can try:
- Check publish.bucket and publish.region in the global config.
- Check your AWS credentials:
~~~
$ aws sts get-caller-identity
~~~`,
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied!

## Things you can try:
- Check that the target directory is writable.
- Check that the SDK tools are executable:
~~~
$ ls -l "$ANDROID_SDK_ROOT/build-tools"/*/aapt2
~~~`,
	}

	issues = map[Id]*Issue{
		projectNotFoundIssue.Id():    projectNotFoundIssue,
		manifestInvalidIssue.Id():    manifestInvalidIssue,
		configLoadFailedIssue.Id():   configLoadFailedIssue,
		unsupportedTargetIssue.Id():  unsupportedTargetIssue,
		androidSDKNotFoundIssue.Id(): androidSDKNotFoundIssue,
		androidNDKNotFoundIssue.Id(): androidNDKNotFoundIssue,
		xcodeNotFoundIssue.Id():      xcodeNotFoundIssue,
		buildToolMissingIssue.Id():   buildToolMissingIssue,
		compilationFailedIssue.Id():  compilationFailedIssue,
		dependencyNotFoundIssue.Id(): dependencyNotFoundIssue,
		manifestIncompleteIssue.Id(): manifestIncompleteIssue,
		bundletoolMissingIssue.Id():  bundletoolMissingIssue,
		signingFailedIssue.Id():      signingFailedIssue,
		verificationFailedIssue.Id(): verificationFailedIssue,
		publishFailedIssue.Id():      publishFailedIssue,
		permissionDeniedIssue.Id():   permissionDeniedIssue,
	}
)

// Values returns every catalogued issue ordered by Id.
func Values() []*Issue {
	all := maps.Values(issues)
	slices.SortFunc(all, func(a, b *Issue) int { return cmp.Compare(a.id, b.id) })
	return all
}

func Get(id Id) *Issue {
	return issues[id]
}
