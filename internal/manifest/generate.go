// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"slices"
	"strings"

	"github.com/mobundle/mobundle/pkg/types"
)

const (
	// NativeActivity is the framework activity that loads the native library.
	NativeActivity = "android.app.NativeActivity"
	// LibNameMetaData tells NativeActivity which library to load.
	LibNameMetaData = "android.app.lib_name"

	// DefaultMinSDK is the minimum API level when neither the project nor
	// the global configuration sets one.
	DefaultMinSDK = 21

	defaultConfigChanges = "orientation|keyboardHidden|screenSize|screenLayout|uiMode"
	actionMain           = "android.intent.action.MAIN"
	categoryLauncher     = "android.intent.category.LAUNCHER"
)

type (
	// Option adjusts the defaults used by Generate.
	Option func(*defaults)

	defaults struct {
		minSDK    int
		targetSDK int
		libName   string
	}
)

// WithSDK sets the default minimum and target API levels. A zero target
// defaults to the minimum.
func WithSDK(minSDK, targetSDK int) Option {
	return func(d *defaults) {
		if minSDK > 0 {
			d.minSDK = minSDK
		}
		if targetSDK > 0 {
			d.targetSDK = targetSDK
		}
	}
}

// WithLibName sets the library NativeActivity loads (without "lib" and ".so").
func WithLibName(name string) Option {
	return func(d *defaults) { d.libName = name }
}

// Generate returns a complete manifest: a deep copy of user with every
// missing field filled from the identity, the profile and the options.
// user may be nil.
func Generate(user *AndroidManifest, id types.Identity, profile types.Profile, opts ...Option) *AndroidManifest {
	d := defaults{minSDK: DefaultMinSDK, libName: strings.ReplaceAll(id.Name, "-", "_")}
	for _, opt := range opts {
		opt(&d)
	}
	if d.targetSDK == 0 {
		d.targetSDK = d.minSDK
	}

	m := clone(user)
	m.Namespace = AndroidNamespace
	if m.Package == "" {
		m.Package = id.AndroidPackage()
	}
	if m.VersionCode == nil {
		m.VersionCode = ptr(id.VersionCode())
	}
	if m.VersionName == "" {
		m.VersionName = id.VersionName()
	}
	if m.SDK.MinSDKVersion == nil {
		m.SDK.MinSDKVersion = ptr(d.minSDK)
	}
	if m.SDK.TargetSDKVersion == nil {
		m.SDK.TargetSDKVersion = ptr(max(d.targetSDK, *m.SDK.MinSDKVersion))
	}

	app := &m.Application
	if app.Label == "" {
		app.Label = id.DisplayName()
	}
	if app.HasCode == nil {
		app.HasCode = ptr(false)
	}
	if app.Debuggable == nil && profile.IsDebug() {
		app.Debuggable = ptr(true)
	}

	act := &app.Activity
	if act.Name == "" {
		act.Name = NativeActivity
	}
	if act.ConfigChanges == "" {
		act.ConfigChanges = defaultConfigChanges
	}
	if !slices.ContainsFunc(act.MetaData, func(md MetaData) bool { return md.Name == LibNameMetaData }) {
		act.MetaData = append(act.MetaData, MetaData{Name: LibNameMetaData, Value: d.libName})
	}
	if len(act.IntentFilters) == 0 {
		act.IntentFilters = []IntentFilter{{Actions: []string{actionMain}, Categories: []string{categoryLauncher}}}
	}
	if act.Exported == nil {
		act.Exported = ptr(len(act.IntentFilters) > 0)
	}
	return m
}

func ptr[T any](v T) *T { return &v }

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func clone(src *AndroidManifest) *AndroidManifest {
	if src == nil {
		return &AndroidManifest{}
	}
	m := *src
	m.VersionCode = clonePtr(src.VersionCode)
	m.SDK = SDK{
		MinSDKVersion:    clonePtr(src.SDK.MinSDKVersion),
		TargetSDKVersion: clonePtr(src.SDK.TargetSDKVersion),
		MaxSDKVersion:    clonePtr(src.SDK.MaxSDKVersion),
	}
	m.UsesFeatures = slices.Clone(src.UsesFeatures)
	m.UsesPermissions = slices.Clone(src.UsesPermissions)

	app := src.Application
	app.HasCode = clonePtr(app.HasCode)
	app.Debuggable = clonePtr(app.Debuggable)
	app.ExtractNativeLibs = clonePtr(app.ExtractNativeLibs)
	app.MetaData = slices.Clone(app.MetaData)
	app.Activity.Exported = clonePtr(app.Activity.Exported)
	app.Activity.MetaData = slices.Clone(app.Activity.MetaData)
	filters := make([]IntentFilter, len(app.Activity.IntentFilters))
	for i, f := range app.Activity.IntentFilters {
		filters[i] = IntentFilter{
			Actions:    slices.Clone(f.Actions),
			Categories: slices.Clone(f.Categories),
			Data:       slices.Clone(f.Data),
		}
	}
	if len(filters) == 0 {
		filters = nil
	}
	app.Activity.IntentFilters = filters
	m.Application = app
	return &m
}
