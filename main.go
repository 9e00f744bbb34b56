package main

import (
	"fmt"
	"os"

	"github.com/temirov/periodic-audit/cmd/cli"
)

const (
	exitErrorTemplateConstant = "%v\n"
)

// main executes one periodic-audit run.
func main() {
	if executionError := cli.Execute(); executionError != nil {
		fmt.Fprintf(os.Stderr, exitErrorTemplateConstant, executionError)
		os.Exit(1)
	}
}
