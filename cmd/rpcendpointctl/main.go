// Command rpcendpointctl is the command-line front door around the
// rpc.Dispatcher: it can host a daemon over a Unix socket (serve), act as
// a one-shot client against a running daemon over that socket (call,
// notify), or tail a daemon's log file (logs).
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
