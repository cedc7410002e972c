// The main package for the catalog-scraper executable.
package main

import (
	"github.com/shelfwise/catalog-scraper/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
