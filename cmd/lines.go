// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/Thermoquad/tracker/internal/log"
	"github.com/Thermoquad/tracker/pkg/telemetry"
	"github.com/Thermoquad/tracker/pkg/tracker"
	"github.com/spf13/cobra"
)

var linesCmd = &cobra.Command{
	Use:   "lines",
	Short: "Display received telemetry lines and readings",
	Long: `Continuously frame and parse telemetry lines as they arrive, without
echoing or driving the motors.

Each line is printed with its timestamp and either the parsed distance and
angle or the reason it was rejected.

Supports both serial and WebSocket connections.`,
	Args: cobra.NoArgs,
	RunE: runLines,
}

func init() {
	rootCmd.AddCommand(linesCmd)
}

func runLines(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Tracker - Telemetry Lines\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	framer := telemetry.NewLineFramer(cfg.LineCapacity)
	buf := make([]byte, 128)

	for {
		n, err := conn.Read(buf)
		if err != nil {
			if errors.Is(err, tracker.ErrChannelClosed) {
				log.Info("connection closed")
				return nil
			}
			log.Warn("read error", "err", err)
			continue
		}

		for i := 0; i < n; i++ {
			line, ok := framer.Feed(buf[i])
			if !ok || len(line.Data) == 0 {
				continue
			}
			fmt.Println(describeLine(line, time.Now()))
		}
	}
}

// describeLine renders a framed line with its parse result
func describeLine(line telemetry.Line, t time.Time) string {
	reading, err := telemetry.ParseReading(line.String())
	if err != nil {
		return fmt.Sprintf("[%s] %s -> \033[1;31m%v\033[0m",
			t.Format("15:04:05.000"), telemetry.FormatLine(line), err)
	}
	return telemetry.FormatReading(reading, t)
}
