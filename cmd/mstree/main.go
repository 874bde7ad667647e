// MSTree - Mass spectrometry scan hierarchy tool
package main

import (
	"fmt"
	"os"

	"github.com/ChrisMcGann/MSTree/cmd/mstree/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
