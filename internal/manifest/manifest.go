// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// AndroidNamespace is the XML namespace bound to the android: prefix.
const AndroidNamespace = "http://schemas.android.com/apk/res/android"

// ErrIncomplete is returned by Validate when a field the package manager
// requires is empty.
var ErrIncomplete = errors.New("incomplete manifest")

type (
	// AndroidManifest is the root <manifest> element.
	AndroidManifest struct {
		XMLName         xml.Name     `xml:"manifest" toml:"-"`
		Namespace       string       `xml:"xmlns:android,attr" toml:"-"`
		Package         string       `xml:"package,attr" toml:"package,omitempty"`
		SharedUserID    string       `xml:"android:sharedUserId,attr,omitempty" toml:"shared_user_id,omitempty"`
		VersionCode     *int         `xml:"android:versionCode,attr,omitempty" toml:"version_code,omitempty"`
		VersionName     string       `xml:"android:versionName,attr,omitempty" toml:"version_name,omitempty"`
		SDK             SDK          `xml:"uses-sdk" toml:"sdk,omitempty"`
		UsesFeatures    []Feature    `xml:"uses-feature" toml:"uses_feature,omitempty"`
		UsesPermissions []Permission `xml:"uses-permission" toml:"uses_permission,omitempty"`
		Application     Application  `xml:"application" toml:"application,omitempty"`
	}

	// SDK is <uses-sdk>.
	SDK struct {
		MinSDKVersion    *int `xml:"android:minSdkVersion,attr,omitempty" toml:"min_sdk_version,omitempty"`
		TargetSDKVersion *int `xml:"android:targetSdkVersion,attr,omitempty" toml:"target_sdk_version,omitempty"`
		MaxSDKVersion    *int `xml:"android:maxSdkVersion,attr,omitempty" toml:"max_sdk_version,omitempty"`
	}

	// Feature is <uses-feature>.
	Feature struct {
		Name string `xml:"android:name,attr,omitempty" toml:"name,omitempty"`
		// GLESVersion is the OpenGL ES version as a hex string, e.g. "0x00030002".
		GLESVersion string `xml:"android:glEsVersion,attr,omitempty" toml:"opengles_version,omitempty"`
		Version     *int   `xml:"android:version,attr,omitempty" toml:"version,omitempty"`
		Required    *bool  `xml:"android:required,attr,omitempty" toml:"required,omitempty"`
	}

	// Permission is <uses-permission>.
	Permission struct {
		Name          string `xml:"android:name,attr" toml:"name"`
		MaxSDKVersion *int   `xml:"android:maxSdkVersion,attr,omitempty" toml:"max_sdk_version,omitempty"`
	}

	// Application is <application>.
	Application struct {
		Label             string     `xml:"android:label,attr,omitempty" toml:"label,omitempty"`
		Icon              string     `xml:"android:icon,attr,omitempty" toml:"icon,omitempty"`
		Theme             string     `xml:"android:theme,attr,omitempty" toml:"theme,omitempty"`
		HasCode           *bool      `xml:"android:hasCode,attr,omitempty" toml:"has_code,omitempty"`
		Debuggable        *bool      `xml:"android:debuggable,attr,omitempty" toml:"debuggable,omitempty"`
		ExtractNativeLibs *bool      `xml:"android:extractNativeLibs,attr,omitempty" toml:"extract_native_libs,omitempty"`
		MetaData          []MetaData `xml:"meta-data" toml:"meta_data,omitempty"`
		Activity          Activity   `xml:"activity" toml:"activity,omitempty"`
	}

	// Activity is the single <activity> hosting the native code.
	Activity struct {
		Name              string         `xml:"android:name,attr" toml:"name,omitempty"`
		Label             string         `xml:"android:label,attr,omitempty" toml:"label,omitempty"`
		ConfigChanges     string         `xml:"android:configChanges,attr,omitempty" toml:"config_changes,omitempty"`
		LaunchMode        string         `xml:"android:launchMode,attr,omitempty" toml:"launch_mode,omitempty"`
		ScreenOrientation string         `xml:"android:screenOrientation,attr,omitempty" toml:"orientation,omitempty"`
		Exported          *bool          `xml:"android:exported,attr,omitempty" toml:"exported,omitempty"`
		MetaData          []MetaData     `xml:"meta-data" toml:"meta_data,omitempty"`
		IntentFilters     []IntentFilter `xml:"intent-filter" toml:"intent_filter,omitempty"`
	}

	// MetaData is <meta-data>.
	MetaData struct {
		Name     string `xml:"android:name,attr" toml:"name"`
		Value    string `xml:"android:value,attr,omitempty" toml:"value,omitempty"`
		Resource string `xml:"android:resource,attr,omitempty" toml:"resource,omitempty"`
	}

	// IntentFilter is <intent-filter>. Actions and categories are plain
	// names in configuration and become android:name elements in XML.
	IntentFilter struct {
		Actions    []string     `toml:"actions,omitempty"`
		Categories []string     `toml:"categories,omitempty"`
		Data       []IntentData `toml:"data,omitempty"`
	}

	// IntentData is <data> inside an intent filter.
	IntentData struct {
		Scheme   string `xml:"android:scheme,attr,omitempty" toml:"scheme,omitempty"`
		Host     string `xml:"android:host,attr,omitempty" toml:"host,omitempty"`
		Port     string `xml:"android:port,attr,omitempty" toml:"port,omitempty"`
		Path     string `xml:"android:path,attr,omitempty" toml:"path,omitempty"`
		MimeType string `xml:"android:mimeType,attr,omitempty" toml:"mime_type,omitempty"`
	}

	// nameElement renders <action android:name="..."/> and friends.
	nameElement struct {
		Name string `xml:"android:name,attr"`
	}

	// IncompleteError names the required field that is empty.
	IncompleteError struct {
		Field string
	}
)

// MarshalXML renders actions, categories and data in input order.
func (f IntentFilter) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	for _, a := range f.Actions {
		if err := e.EncodeElement(nameElement{Name: a}, xml.StartElement{Name: xml.Name{Local: "action"}}); err != nil {
			return err
		}
	}
	for _, c := range f.Categories {
		if err := e.EncodeElement(nameElement{Name: c}, xml.StartElement{Name: xml.Name{Local: "category"}}); err != nil {
			return err
		}
	}
	for _, d := range f.Data {
		if err := e.EncodeElement(d, xml.StartElement{Name: xml.Name{Local: "data"}}); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}

// Marshal serialises the manifest with an XML declaration.
func Marshal(m *AndroidManifest) ([]byte, error) {
	body, err := xml.MarshalIndent(m, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.Write(body)
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// WriteFile writes AndroidManifest.xml into dir and returns its path.
func WriteFile(m *AndroidManifest, dir string) (string, error) {
	data, err := Marshal(m)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "AndroidManifest.xml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	return path, nil
}

// Validate checks the fields the package manager needs to parse the file.
func (m *AndroidManifest) Validate() error {
	switch {
	case m.Namespace == "":
		return &IncompleteError{Field: "xmlns:android"}
	case m.Package == "":
		return &IncompleteError{Field: "package"}
	case m.VersionCode == nil:
		return &IncompleteError{Field: "android:versionCode"}
	case m.SDK.MinSDKVersion == nil:
		return &IncompleteError{Field: "uses-sdk android:minSdkVersion"}
	case m.Application.Activity.Name == "":
		return &IncompleteError{Field: "activity android:name"}
	}
	return nil
}

// Error implements the error interface.
func (e *IncompleteError) Error() string {
	return fmt.Sprintf("manifest field %s is empty", e.Field)
}

// Unwrap returns ErrIncomplete for errors.Is() compatibility.
func (e *IncompleteError) Unwrap() error { return ErrIncomplete }
