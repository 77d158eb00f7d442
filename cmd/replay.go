// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Thermoquad/tracker/pkg/session"
	"github.com/Thermoquad/tracker/pkg/steering"
	"github.com/Thermoquad/tracker/pkg/tracker"
	"github.com/spf13/cobra"
)

var (
	replayQuiet    bool
	replayDistance uint16
	replayAngle    int16
)

var replayCmd = &cobra.Command{
	Use:   "replay FILE",
	Short: "Print a recorded session and re-check its steering decisions",
	Long: `Read a CBOR session written by "track --record" or "monitor --record".

Every record is printed in order. Each recorded reading is run through the
steering controller again, against the recorded target or the one given by
--distance/--angle, and any motor command that differs from the recorded one
is flagged. A statistics summary follows.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVarP(&replayQuiet, "quiet", "q", false, "Only print mismatches and the summary")
	replayCmd.Flags().Uint16Var(&replayDistance, "distance", 0, "Override the target distance (cm)")
	replayCmd.Flags().Int16Var(&replayAngle, "angle", 0, "Override the target angle (degrees)")
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	defer f.Close()

	r, err := session.NewReader(f)
	if err != nil {
		return err
	}

	header := r.Header()
	target := header.Target.SteeringTarget()
	if cmd.Flags().Changed("distance") {
		target.Distance = replayDistance
	}
	if cmd.Flags().Changed("angle") {
		target.Angle = replayAngle
	}

	fmt.Println(session.FormatRecord(header))
	if target != header.Target.SteeringTarget() {
		fmt.Printf("Replaying against target D=%d A=%d\n", target.Distance, target.Angle)
	}
	fmt.Println()

	stats := tracker.NewStatistics()
	mismatches := 0

	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		session.Dispatch(rec, stats)
		if !replayQuiet {
			fmt.Println(session.FormatRecord(rec))
		}

		if msg, ok := checkDecision(rec, target); !ok {
			mismatches++
			fmt.Printf("  \033[1;33mMISMATCH:\033[0m %s\n", msg)
		}
	}

	fmt.Println()
	fmt.Print(stats.String())
	fmt.Printf("Decision mismatches: %d\n", mismatches)
	return nil
}

// checkDecision recomputes the steering decision for a MOTORS or
// TARGET_REACHED record. Other kinds always pass.
func checkDecision(rec session.Record, target steering.Target) (string, bool) {
	var recorded steering.MotorCommand
	switch rec.Kind {
	case session.KindMotors:
		recorded = rec.Command()
	case session.KindTargetReached:
		recorded = steering.Stop
	default:
		return "", true
	}

	want := steering.Decide(rec.Reading(), target)
	if want == recorded {
		return "", true
	}
	return fmt.Sprintf("%s recorded %s, now %s", rec.Reading(), recorded, want), false
}
