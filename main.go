// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/mobundle/mobundle/cmd/mobundle"

func main() {
	cmd.Execute()
}
