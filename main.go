// The main package for the topic-crawler executable.
package main

import (
	"github.com/JakeFAU/topic-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
