// SPDX-License-Identifier: MPL-2.0

// Package signer signs and verifies packaged artifacts.
//
// Android packages are signed with apksigner (APK) or jarsigner (app bundle)
// using a key from a Java keystore; a KeystoreRepository provisions the
// shared debug key on first use. Apple application folders are signed with
// codesign. Signing mutates the artifact in place, and a failed verification
// leaves the artifact on disk for inspection.
package signer
