// SPDX-License-Identifier: MPL-2.0

package tools

import (
	"strings"

	"github.com/mobundle/mobundle/internal/toolexec"
)

type (
	// Readelf dumps the dynamic section of a shared object (`llvm-readelf -d`).
	Readelf struct {
		Path string
		File string
	}

	// Aapt2Compile compiles one resource file into a .flat in OutDir.
	Aapt2Compile struct {
		Path   string
		Input  string
		OutDir string
	}

	// Aapt2Link links compiled resources and the manifest into a base package.
	Aapt2Link struct {
		Path       string
		Manifest   string
		AndroidJar string
		Output     string
		Flats      []string
		AssetsDir  string
		// ProtoFormat emits protobuf resources, as required by bundletool.
		ProtoFormat    bool
		AutoAddOverlay bool
	}

	// Zipalign aligns uncompressed entries (and .so files on page boundaries).
	Zipalign struct {
		Path   string
		Input  string
		Output string
	}

	// Bundletool runs `bundletool build-bundle` through the JVM.
	Bundletool struct {
		Java    string
		Jar     string
		Modules []string
		Output  string
	}
)

// Command renders `llvm-readelf -d <file>`.
func (r Readelf) Command() toolexec.Command {
	return toolexec.Command{Name: orDefault(r.Path, "llvm-readelf"), Args: []string{"-d", r.File}}
}

// Command renders `aapt2 compile <input> -o <dir>`.
func (a Aapt2Compile) Command() toolexec.Command {
	return toolexec.Command{
		Name: orDefault(a.Path, "aapt2"),
		Args: []string{"compile", a.Input, "-o", a.OutDir},
	}
}

// Command renders `aapt2 link`.
func (a Aapt2Link) Command() toolexec.Command {
	args := []string{"link", "-o", a.Output, "--manifest", a.Manifest, "-I", a.AndroidJar}
	if a.ProtoFormat {
		args = append(args, "--proto-format")
	}
	if a.AutoAddOverlay {
		args = append(args, "--auto-add-overlay")
	}
	if a.AssetsDir != "" {
		args = append(args, "-A", a.AssetsDir)
	}
	args = append(args, a.Flats...)
	return toolexec.Command{Name: orDefault(a.Path, "aapt2"), Args: args}
}

// Command renders `zipalign -f -p 4 <in> <out>`.
func (z Zipalign) Command() toolexec.Command {
	return toolexec.Command{
		Name: orDefault(z.Path, "zipalign"),
		Args: []string{"-f", "-p", "4", z.Input, z.Output},
	}
}

// Command renders `java -jar bundletool.jar build-bundle`.
func (b Bundletool) Command() toolexec.Command {
	return toolexec.Command{
		Name: orDefault(b.Java, "java"),
		Args: []string{"-jar", b.Jar, "build-bundle", "--modules=" + strings.Join(b.Modules, ","), "--output=" + b.Output, "--overwrite"},
	}
}
