package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	callMethod  string
	callParams  string
	callTimeout time.Duration
)

var callCmd = &cobra.Command{
	Use:   "call",
	Short: "Send a request to a running daemon and print its response",
	RunE:  runCall,
}

func init() {
	callCmd.Flags().StringVar(&callMethod, "method", "echo", "method to invoke")
	callCmd.Flags().StringVar(&callParams, "params", `{"text":"hello"}`, "request params as a JSON object")
	callCmd.Flags().DurationVar(&callTimeout, "timeout", 5*time.Second, "how long to wait for the response")
}

func runCall(cmd *cobra.Command, args []string) error {
	params, err := parseParams(callParams)
	if err != nil {
		return err
	}

	d, conn, err := dialDispatcher()
	if err != nil {
		return err
	}
	defer conn.Close()
	defer d.Stop()

	resp, _, err := d.WaitResponse(callMethod, params, callTimeout)
	if err != nil {
		return fmt.Errorf("call %s: %w", callMethod, err)
	}
	if resp.Error != nil {
		return fmt.Errorf("call %s: %s (code %d)", callMethod, resp.Error.Message, resp.Error.Code)
	}

	out, err := json.MarshalIndent(resp.Result, "", "  ")
	if err != nil {
		fmt.Println(string(resp.Result))
		return nil
	}
	fmt.Println(string(out))
	return nil
}
