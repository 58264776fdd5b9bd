package main

import (
	"os"

	"github.com/haskel/pstated/internal/cli"
)

var (
	version = "0.1.0"
)

func main() {
	cli.SetVersion(version)
	os.Exit(cli.Execute())
}
