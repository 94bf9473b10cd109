// SPDX-License-Identifier: MPL-2.0

// Package publish uploads signed artifacts to an S3-compatible bucket under
// <prefix>/<package>/<version>/<file>.
package publish
