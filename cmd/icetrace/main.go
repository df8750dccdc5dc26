// Command icetrace records and queries manufacturing provenance: companies,
// machines, recipes and the phases and measures of every product.
package main

import (
	"fmt"
	"os"
)

const programName = "icetrace"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
