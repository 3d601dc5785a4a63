// Command queuekit runs queue sweeps and applies driver schemas.
//
//	queuekit migrate            # create tables or indexes for QUEUE_DRIVER
//	queuekit work               # sweep QUEUE_QUEUES until SIGINT/SIGTERM
//	queuekit --env-file .env.production work
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
