// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Thermoquad/tracker/internal/log"
	"github.com/Thermoquad/tracker/pkg/session"
	"github.com/Thermoquad/tracker/pkg/tracker"
	"github.com/spf13/cobra"
)

var (
	recordPath    string
	statsInterval int
)

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Run the target tracking control loop",
	Long: `Run the control loop: echo every byte received from the beacon, frame it
into lines, parse "D: <distance>, A: <angle>" readings and steer the Cutebot
towards the target.

The motors are stopped once the reading is within tolerance of the target,
and again when the command exits.

Use --dry-run to log I2C writes instead of driving the hardware, and --record
to save every loop event to a CBOR session file for later replay.`,
	Args: cobra.NoArgs,
	RunE: runTrack,
}

func init() {
	rootCmd.AddCommand(trackCmd)
	trackCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log I2C writes instead of sending them")
	trackCmd.Flags().StringVar(&recordPath, "record", "", "Record loop events to a CBOR session file")
	trackCmd.Flags().IntVar(&statsInterval, "stats-interval", 0, "Log statistics every N seconds (0 disables)")
}

// controller bundles everything a running loop needs.
// The connection is closed at most once, by cancellation or by Close.
type controller struct {
	conn     Connection
	connOnce sync.Once
	connInfo string
	loop     *tracker.Loop
	stop     func() error
	stats    *tracker.Statistics
	recorder *session.Recorder
	closers  []io.Closer
}

// newController opens the connection, motor board and optional recording
// and builds a loop reporting to stats, the log, the recorder and extra.
func newController(extra ...tracker.Events) (*controller, error) {
	c := &controller{stats: tracker.NewStatistics()}

	conn, connInfo, err := OpenConnection(cfg)
	if err != nil {
		return nil, err
	}
	c.conn, c.connInfo = conn, connInfo

	driver, bus, err := OpenActuator(cfg.I2C, dryRun)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.closers = append(c.closers, bus)
	c.stop = driver.Stop

	events := tracker.MultiEvents{c.stats, tracker.NewLogEvents(log.With("component", "loop"))}
	events = append(events, extra...)

	path := recordPath
	if path == "" {
		path = cfg.Record
	}
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to create session file: %w", err)
		}
		c.closers = append(c.closers, f)

		c.recorder, err = session.NewRecorder(f, cfg.SteeringTarget())
		if err != nil {
			c.Close()
			return nil, err
		}
		events = append(events, c.recorder)
		log.Info("recording session", "file", path, "session", c.recorder.ID())
	}

	opts := cfg.LoopOptions()
	opts.Events = events
	c.loop = tracker.New(tracker.NewStreamChannel(conn), driver, opts)
	return c, nil
}

// Run drives the loop until ctx is done or the connection closes.
// The connection is closed on cancellation to unblock pending reads.
func (c *controller) Run(ctx context.Context) error {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			c.closeConnection()
		case <-done:
		}
	}()

	err := c.loop.Run(ctx)
	close(done)
	wg.Wait()
	if ctx.Err() != nil {
		c.closeConnection()
	}

	if stopErr := c.stop(); stopErr != nil {
		log.Warn("failed to stop motors on exit", "err", stopErr)
	}
	if c.recorder != nil {
		if recErr := c.recorder.Err(); recErr != nil {
			log.Warn("session recording incomplete", "err", recErr)
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, tracker.ErrChannelClosed) {
		return nil
	}
	return err
}

// Close releases the session file, bus and connection
func (c *controller) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i].Close()
	}
	c.closeConnection()
}

func (c *controller) closeConnection() {
	c.connOnce.Do(func() {
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

func runTrack(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	c, err := newController()
	if err != nil {
		return err
	}
	defer c.Close()

	target := cfg.SteeringTarget()
	fmt.Printf("Tracker - Control Loop\n")
	fmt.Printf("Connection: %s\n", c.connInfo)
	fmt.Printf("Target: %d cm @ %d° (±%d°, ±%d%%)\n",
		target.Distance, target.Angle, target.AngleTolerance, target.DistanceTolerancePercent)
	if dryRun {
		fmt.Printf("Dry run: I2C writes are logged only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	if statsInterval > 0 {
		go func() {
			ticker := time.NewTicker(time.Duration(statsInterval) * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					snap := c.stats.Snapshot()
					log.Info("statistics",
						"lines", snap.TotalLines,
						"readings", snap.ValidReadings,
						"malformed", snap.MalformedLines,
						"commands", snap.MotorCommands,
						"errors", snap.Errors(),
						"line_rate", fmt.Sprintf("%.1f", snap.LineRate))
				}
			}
		}()
	}

	runErr := c.Run(ctx)

	fmt.Println()
	fmt.Print(c.stats.String())
	return runErr
}
