package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/readhaven/cover-services/models/common"
	"github.com/readhaven/cover-services/services"
	"github.com/readhaven/cover-services/util/cli"
)

func main() {
	help := false
	flag.BoolVar(&help, "help", false, "Print help message")
	flag.Parse()

	if help {
		printHelp()
		os.Exit(0)
	}

	server := services.NewAdminServer(common.NewContext())
	server.Serve()
}

func printHelp() {
	message := `
cover_admin runs the operator HTTP service for the cover pipeline. It serves
the S3 cleanup endpoints (dry-run and move-flagged), resolution trace
lookups from Redis, and a health check, on the configured admin port.
`
	fmt.Println(message)
	fmt.Println(cli.EnvMessage)
}
