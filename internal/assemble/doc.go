// SPDX-License-Identifier: MPL-2.0

// Package assemble turns the linked base package and the per-target library
// closures into the final, unsigned artifact.
//
//	APK  base.apk -> unaligned.apk (libraries merged) -> aligned .apk
//	AAB  base.apk -> extracted tree -> module zip -> .aab (bundletool)
//	IPA  .app folder -> (signed by the caller) -> Payload copy -> .ipa
//
// Every transition writes a new file; a tool failure aborts the build and
// leaves intermediate files in place for inspection.
package assemble
