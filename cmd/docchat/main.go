// Package main provides the entry point for the docchat CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/docchat/cmd/docchat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
