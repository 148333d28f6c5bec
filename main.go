// The main package for the datasetcrawler executable.
package main

import (
	"github.com/JakeFAU/datasetcrawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
