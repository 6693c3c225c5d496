// Package main provides the entry point for the rds-snapshot-copy CLI tool.
package main

import (
	"github.com/cesarempathy/rds-snapshot-copy/cmd"
)

func main() {
	cmd.Execute()
}
