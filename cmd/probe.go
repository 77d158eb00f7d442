// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Thermoquad/tracker/pkg/telemetry"
	"github.com/spf13/cobra"
)

var probeTimeout int

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test connection by waiting for a valid telemetry reading",
	Long: `Wait for a valid "D: <distance>, A: <angle>" line until timeout.

Malformed and overflowing lines are counted and skipped.

Exit codes:
  0 - Reading received before timeout
  1 - Timeout reached without receiving a valid reading
  2 - Connection error

Useful for checking the beacon wiring before running the control loop.`,
	Args: cobra.NoArgs,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeTimeout, "timeout", 10, "Timeout in seconds to wait for a reading")
}

// errNoReading is returned by scanReading when the deadline passes first
var errNoReading = errors.New("no valid reading before deadline")

// scanReading reads r until a line parses as a reading. Malformed lines are
// counted and skipped. A zero deadline waits forever; otherwise r must return
// periodically (read timeout) for the deadline to be checked.
func scanReading(r io.Reader, capacity int, deadline time.Time) (telemetry.Reading, int, error) {
	framer := telemetry.NewLineFramer(capacity)
	buf := make([]byte, 128)
	rejected := 0

	for {
		if !deadline.IsZero() && time.Now().After(deadline) {
			return telemetry.Reading{}, rejected, errNoReading
		}

		n, err := r.Read(buf)
		if err != nil {
			return telemetry.Reading{}, rejected, err
		}

		for i := 0; i < n; i++ {
			line, ok := framer.Feed(buf[i])
			if !ok || len(line.Data) == 0 {
				continue
			}
			reading, err := telemetry.ParseReading(line.String())
			if err != nil {
				rejected++
				continue
			}
			return reading, rejected, nil
		}
	}
}

func runProbe(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Tracker - Probe\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", probeTimeout)
	fmt.Printf("Waiting for valid telemetry line...\n\n")

	readingChan := make(chan telemetry.Reading, 1)
	errChan := make(chan error, 1)

	go func() {
		reading, rejected, err := scanReading(conn, cfg.LineCapacity, time.Time{})
		if err != nil {
			errChan <- err
			return
		}
		if rejected > 0 {
			fmt.Printf("(skipped %d malformed lines)\n", rejected)
		}
		readingChan <- reading
	}()

	select {
	case reading := <-readingChan:
		fmt.Printf("SUCCESS: Received valid reading\n")
		fmt.Printf("  Distance: %d cm\n", reading.Distance)
		fmt.Printf("  Angle: %d°\n", reading.Angle)
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(probeTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid reading received within %d seconds\n", probeTimeout)
		os.Exit(1)
	}

	return nil
}
