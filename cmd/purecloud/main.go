// Package main is the entry point for the purecloud CLI.
package main

import "github.com/purecloudlabs/purecloud-cli/internal/cli"

func main() {
	cli.Execute()
}
