// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Thermoquad/tracker/internal/log"
	"github.com/Thermoquad/tracker/pkg/cutebot"
	"github.com/Thermoquad/tracker/pkg/steering"
	"github.com/Thermoquad/tracker/pkg/telemetry"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	showAll bool
	logFile string
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the control loop with a live terminal UI",
	Long: `Run the same control loop as "track" and display the latest reading,
motor command gauges, statistics and recent events in a terminal UI.

By default only errors and state changes are listed. Use --show-all to list
every received line and motor command too.

Log output is discarded while the UI owns the terminal unless --log-file is set.`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log I2C writes instead of sending them")
	monitorCmd.Flags().StringVar(&recordPath, "record", "", "Record loop events to a CBOR session file")
	monitorCmd.Flags().BoolVar(&showAll, "show-all", false, "List every line and motor command")
	monitorCmd.Flags().StringVar(&logFile, "log-file", "", "Write log output to this file")
}

// msgSender is the part of tea.Program used to deliver loop events
type msgSender interface {
	Send(msg tea.Msg)
}

// programEvents forwards loop events to the TUI as messages.
// It runs on the loop goroutine.
type programEvents struct {
	sender msgSender
}

func (e *programEvents) send(msg loopEventMsg) {
	if e.sender != nil {
		e.sender.Send(msg)
	}
}

func (e *programEvents) LEDSet(side string, c cutebot.Color) {
	e.send(loopEventMsg{message: fmt.Sprintf("Headlight %s set to %s", side, c)})
}

func (e *programEvents) LineReceived(line telemetry.Line) {
	e.send(loopEventMsg{message: "Line " + telemetry.FormatLine(line), verbose: true})
}

func (e *programEvents) MalformedLine(line telemetry.Line, err error) {
	e.send(loopEventMsg{message: fmt.Sprintf("MALFORMED %s: %v", telemetry.FormatLine(line), err), isError: true})
}

func (e *programEvents) ReadingParsed(r telemetry.Reading) {
	e.send(loopEventMsg{reading: &r, silent: true})
}

func (e *programEvents) TargetReached(r telemetry.Reading) {
	cmd := steering.Stop
	e.send(loopEventMsg{message: fmt.Sprintf("Target reached at %s, motors stopped", r), command: &cmd, reached: true})
}

func (e *programEvents) MotorsAdjusted(r telemetry.Reading, cmd steering.MotorCommand) {
	e.send(loopEventMsg{message: "Motors " + cmd.String(), command: &cmd, verbose: true})
}

func (e *programEvents) TransportFailure(op string, err error) {
	e.send(loopEventMsg{message: fmt.Sprintf("I2C %s failed: %v", op, err), isError: true})
}

func (e *programEvents) ChannelError(err error) {
	e.send(loopEventMsg{message: fmt.Sprintf("Serial error: %v", err), isError: true})
}

func runMonitor(cmd *cobra.Command, args []string) error {
	var logOut io.Writer = io.Discard
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	log.InitWriter(logOut, cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	events := &programEvents{}
	c, err := newController(events)
	if err != nil {
		return err
	}
	defer c.Close()

	m := newMonitorModel(c.connInfo, cfg.SteeringTarget(), c.stats, showAll, cancel)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	events.sender = p

	done := make(chan struct{})
	go func() {
		defer close(done)
		err := c.Run(ctx)
		p.Send(loopDoneMsg{err: err})
	}()

	_, runErr := p.Run()
	cancel()
	<-done

	fmt.Print(c.stats.String())

	if runErr != nil && ctx.Err() == nil {
		return fmt.Errorf("TUI error: %w", runErr)
	}
	return nil
}
