// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/pullpkg/pullpkg/cmd/pullpkg"

func main() {
	cmd.Execute()
}
