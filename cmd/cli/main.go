// Package main is the entry point for the cdlconv CLI binary.
package main

import (
	"os"

	cli "cdlconv/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
