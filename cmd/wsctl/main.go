/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Command wsctl inspects workspace configuration and policy documents.
package main

import (
	"fmt"
	"os"
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
