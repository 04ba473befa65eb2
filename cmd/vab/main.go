// Package main provides the entry point for the vab CLI.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/vabrowser/vab/cmd/vab/cmd"
	vaberrors "github.com/vabrowser/vab/internal/errors"
)

func main() {
	// A .env in the working directory can carry VAB_* overrides.
	// Missing file is fine.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		var ae *vaberrors.Error
		if errors.As(err, &ae) {
			fmt.Fprint(os.Stderr, vaberrors.FormatForCLI(ae))
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
