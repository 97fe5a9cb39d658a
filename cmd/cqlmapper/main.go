package main

import (
	"os"

	"github.com/axonops/cqlmapper/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
