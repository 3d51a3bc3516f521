package main

import (
	"github.com/spf13/cobra"
)

var workDir string

var rootCmd = &cobra.Command{
	Use:   "rpcendpointctl",
	Short: "Drive a JSON-RPC 2.0 endpoint dispatcher",
	Long: `rpcendpointctl hosts and exercises the rpcendpoint JSON-RPC dispatcher:
"serve" runs a daemon accepting connections over a Unix socket, "call" and
"notify" speak to a running daemon over its Unix socket to exercise it,
and "logs" tails a daemon's log file.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&workDir, "workdir", ".", "working directory identifying the daemon instance")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(notifyCmd)
	rootCmd.AddCommand(logsCmd)
}
