// ./main.go
package main

import (
	"github.com/adscope/adscope/cmd"
)

// main is the entry point for the adscope application. The cmd package
// handles all command-line parsing, configuration, and execution.
func main() {
	cmd.Execute()
}
