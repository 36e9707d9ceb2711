// Package main is the entry point for the cohorts application
package main

import "github.com/ethpandaops/cohorts/cmd"

func main() {
	cmd.Execute()
}
