// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Thermoquad/tracker/pkg/telemetry"
	"github.com/spf13/cobra"
	"go.bug.st/serial"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

var discoverTimeout int

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find serial ports carrying telemetry and list I2C buses",
	Long: `Open every serial port on the system and listen for a valid
"D: <distance>, A: <angle>" line, then list the I2C buses the motor
board may be attached to.

Ports are probed one at a time at the configured baud rate.

Exit codes:
  0 - At least one port delivered a valid reading
  1 - No port delivered a reading
  2 - Ports could not be enumerated`,
	Args: cobra.NoArgs,
	RunE: runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)
	discoverCmd.Flags().IntVar(&discoverTimeout, "timeout", 3, "Seconds to listen on each port")
}

// portResult is the outcome of probing one serial port
type portResult struct {
	port     string
	reading  telemetry.Reading
	rejected int
	err      error
}

func (r portResult) String() string {
	switch {
	case r.err == nil:
		return fmt.Sprintf("%-20s OK   %s", r.port, r.reading)
	case errors.Is(r.err, errNoReading) && r.rejected > 0:
		return fmt.Sprintf("%-20s --   %d malformed lines, no valid reading", r.port, r.rejected)
	case errors.Is(r.err, errNoReading):
		return fmt.Sprintf("%-20s --   silent", r.port)
	default:
		return fmt.Sprintf("%-20s ERR  %v", r.port, r.err)
	}
}

func probePort(port string, baud int, capacity int, timeout time.Duration) portResult {
	conn, err := OpenSerialConnection(port, baud, 100*time.Millisecond)
	if err != nil {
		return portResult{port: port, err: err}
	}
	defer conn.Close()

	reading, rejected, err := scanReading(conn, capacity, time.Now().Add(timeout))
	return portResult{port: port, reading: reading, rejected: rejected, err: err}
}

func runDiscover(cmd *cobra.Command, args []string) error {
	fmt.Printf("Tracker - Discovery\n")
	fmt.Printf("Baud rate: %d\n", cfg.Serial.Baud)
	fmt.Printf("Timeout: %d seconds per port\n\n", discoverTimeout)

	ports, err := serial.GetPortsList()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list serial ports: %v\n", err)
		os.Exit(2)
	}

	found := 0
	fmt.Printf("--- Serial ports ---\n")
	if len(ports) == 0 {
		fmt.Printf("No serial ports found\n")
	}
	for _, port := range ports {
		result := probePort(port, cfg.Serial.Baud, cfg.LineCapacity, time.Duration(discoverTimeout)*time.Second)
		if result.err == nil {
			found++
		}
		fmt.Println(result)
	}

	fmt.Printf("\n--- I2C buses ---\n")
	if _, err := host.Init(); err != nil {
		fmt.Printf("Host drivers unavailable: %v\n", err)
	} else {
		refs := i2creg.All()
		if len(refs) == 0 {
			fmt.Printf("No I2C buses found\n")
		}
		for _, ref := range refs {
			aliases := ""
			if len(ref.Aliases) > 0 {
				aliases = " (" + strings.Join(ref.Aliases, ", ") + ")"
			}
			fmt.Printf("%-20s #%d%s\n", ref.Name, ref.Number, aliases)
		}
	}

	fmt.Printf("\n--- Discovery summary ---\n")
	fmt.Printf("Telemetry ports found: %d\n", found)
	if found == 0 {
		fmt.Printf("No telemetry received. Check the beacon wiring and baud rate.\n")
		os.Exit(1)
	}
	return nil
}
