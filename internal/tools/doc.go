// SPDX-License-Identifier: MPL-2.0

// Package tools builds the argument vectors of the external tools the
// packaging pipeline drives. Each builder is a plain struct whose Command
// method renders a toolexec.Command; nothing here executes a process.
package tools
