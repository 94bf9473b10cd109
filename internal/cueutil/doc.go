// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates CUE documents against an embedded schema and
// decodes them into Go values.
//
// Parsing runs in three steps: compile the schema, compile the user data and
// unify it with the schema definition, then validate and decode. Errors carry
// the offending file and a JSON-style path such as "android.min_sdk".
package cueutil
