package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/readhaven/cover-services/models/common"
	"github.com/readhaven/cover-services/util"
	"github.com/readhaven/cover-services/util/cli"
	"github.com/readhaven/cover-services/workers"
)

func main() {
	cli.Init()
	opts := cli.ParseOpts()
	if opts.PrintHelp {
		printHelp()
		cli.PrintDefaults()
		os.Exit(0)
	}

	// Refuse to start a second instance. Two refreshers on one host
	// would fight over the same NSQ channel and Redis locks.
	config := common.NewConfig()
	pidPath := filepath.Join(config.BaseWorkingDir, "cover_refresher.pid")
	pid := util.ReadPidFile(pidPath)
	if pid != 0 && pid != os.Getpid() && util.ProcessIsRunning(pid) {
		fmt.Fprintf(os.Stderr, "cover_refresher is already running with pid %d\n", pid)
		os.Exit(1)
	}
	if err := util.WritePidFile(pidPath); err != nil {
		fmt.Fprintf(os.Stderr, "Cannot write pid file %s: %v\n", pidPath, err)
		os.Exit(1)
	}
	defer util.DeletePidFile(pidPath)

	// If anything goes wrong, this panics.
	// Otherwise, it starts handling NSQ messages immediately.
	worker := workers.NewCoverRefresher(
		opts.ChannelBufferSize,
		opts.NumWorkers,
		opts.MaxAttempts,
	)

	// This channel blocks until we get an interrupt,
	// so our program does not exit without Control-C
	// or other kill signal.
	<-worker.NSQConsumer.StopChan
}

func printHelp() {
	message := `
cover_refresher runs as a service to refresh book covers in the background.
It reads refresh requests from the NSQ cover refresh queue, re-runs provider
fetch and selection for each book key with the caches bypassed, and replaces
the stored cover in both cache tiers when a provider offers something better.
`
	fmt.Println(message)
	fmt.Println(cli.EnvMessage)
}
