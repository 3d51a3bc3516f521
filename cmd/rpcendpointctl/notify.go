package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	notifyMethod string
	notifyParams string
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Send a fire-and-forget notification to a running daemon",
	RunE:  runNotify,
}

func init() {
	notifyCmd.Flags().StringVar(&notifyMethod, "method", "ping", "notification method to send")
	notifyCmd.Flags().StringVar(&notifyParams, "params", `{"text":"hi"}`, "notification params as a JSON object")
}

func runNotify(cmd *cobra.Command, args []string) error {
	params, err := parseParams(notifyParams)
	if err != nil {
		return err
	}

	d, conn, err := dialDispatcher()
	if err != nil {
		return err
	}
	defer conn.Close()
	defer d.Stop()

	if err := d.SendNotification(notifyMethod, params); err != nil {
		return fmt.Errorf("notify %s: %w", notifyMethod, err)
	}
	return nil
}
