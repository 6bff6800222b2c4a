// psmnorm - unified PSM table builder
package main

import (
	"fmt"
	"os"

	"github.com/ChrisMcGann/psmnorm/cmd/psmnorm/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
