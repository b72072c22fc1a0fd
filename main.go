package main

import (
	"fmt"
	"os"

	"github.com/kyleking/ae-columns/cmd"
	"github.com/kyleking/ae-columns/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		var structErr *errors.Error
		if errors.As(err, &structErr) {
			for _, s := range structErr.Suggestions {
				fmt.Fprintf(os.Stderr, "  - %s\n", s)
			}
		}

		os.Exit(1)
	}
}
