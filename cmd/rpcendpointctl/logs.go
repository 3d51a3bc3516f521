package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/firi/rpcendpoint/internal/daemon"
)

var logsTail bool

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Print the daemon's log file for --workdir",
	RunE:  runLogs,
}

func init() {
	logsCmd.Flags().BoolVar(&logsTail, "follow", false, "keep printing new lines as they're written")
}

func runLogs(cmd *cobra.Command, args []string) error {
	logPath := daemon.GetLogPath(workDir)

	data, err := os.ReadFile(logPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", logPath, err)
	}
	fmt.Print(string(data))

	if !logsTail {
		return nil
	}
	return followFile(logPath, int64(len(data)))
}

// followFile polls logPath for appended bytes, printing them as they
// arrive, until the process is interrupted.
func followFile(logPath string, offset int64) error {
	for {
		time.Sleep(500 * time.Millisecond)

		f, err := os.Open(logPath)
		if err != nil {
			continue
		}
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			f.Close()
			continue
		}
		n, _ := io.Copy(os.Stdout, f)
		offset += n
		f.Close()
	}
}
