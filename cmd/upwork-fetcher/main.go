package main

import (
	"os"

	"github.com/jobwatch/upwork-fetcher/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
