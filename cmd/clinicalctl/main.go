// Package main provides the clinicalctl command line tool.
package main

import (
	"os"

	"github.com/medassist/clinical-core/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
