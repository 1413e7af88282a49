// SPDX-FileCopyrightText: 2024 The tib authors
//
// SPDX-License-Identifier: MIT

package main

import (
	"os"

	"github.com/tegratools/tib/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
