// Package main provides the entry point for the autocut command line.
package main

import "github.com/maauso/autocut/internal/cli"

func main() {
	cli.Main()
}
