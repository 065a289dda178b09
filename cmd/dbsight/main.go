package main

import (
	"os"

	"github.com/vitebski/dbsight/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
