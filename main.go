// The main package for the coursefinder crawler executable.
package main

import (
	"github.com/JakeFAU/coursefinder-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
