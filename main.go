// SPDX-License-Identifier: MPL-2.0

package main

import cmd "vendrun-cli/cmd/vendrun"

func main() {
	cmd.Execute()
}
