// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package steering converts distance/bearing fixes into differential motor commands.
package steering

import (
	"fmt"

	"github.com/Thermoquad/tracker/pkg/telemetry"
)

// Steering constants
const (
	// BaseSpeed is the forward speed of the outer wheel while turning
	BaseSpeed = 20

	// FullTurnAngle is the bearing at which the inner wheel stops completely
	FullTurnAngle = 45.0
)

// Target is the fixed position the robot tries to hold
type Target struct {
	Distance                 uint16 // Centimetres
	Angle                    int16  // Degrees
	AngleTolerance           uint16 // Degrees
	DistanceTolerancePercent uint16 // Percent of Distance
}

// DefaultTarget holds 150 cm straight ahead, within ±2° and 10%
var DefaultTarget = Target{
	Distance:                 150,
	Angle:                    0,
	AngleTolerance:           2,
	DistanceTolerancePercent: 10,
}

// MotorCommand is a pair of signed wheel speeds in [-100, 100]
type MotorCommand struct {
	Left  int8
	Right int8
}

// Stop is the command that halts both motors
var Stop = MotorCommand{}

// IsStop returns true if both motors are commanded to zero
func (c MotorCommand) IsStop() bool {
	return c == Stop
}

// String returns a compact representation of the command
func (c MotorCommand) String() string {
	return fmt.Sprintf("L=%d R=%d", c.Left, c.Right)
}

// AngleDiff returns the absolute bearing error in degrees
func AngleDiff(r telemetry.Reading, t Target) int {
	return abs(int(r.Angle) - int(t.Angle))
}

// DistanceDiffPercent returns the distance error as a truncated percentage of
// the target distance. A zero target distance always yields 100.
func DistanceDiffPercent(r telemetry.Reading, t Target) int {
	if t.Distance == 0 {
		return 100
	}
	return abs(int(r.Distance)-int(t.Distance)) * 100 / int(t.Distance)
}

// Reached returns true if the reading is within both tolerances of the target
func Reached(r telemetry.Reading, t Target) bool {
	return AngleDiff(r, t) <= int(t.AngleTolerance) &&
		DistanceDiffPercent(r, t) <= int(t.DistanceTolerancePercent)
}

// Decide computes the motor command for a reading.
// It returns Stop when the target is reached, and a proportional turn toward
// the reported bearing otherwise. The result depends only on its arguments.
func Decide(r telemetry.Reading, t Target) MotorCommand {
	if Reached(r, t) {
		return Stop
	}
	return Turn(r.Angle)
}

// Turn returns the differential command for a bearing.
// The wheel on the side of the target slows down linearly with the bearing and
// stops at FullTurnAngle; the other wheel keeps BaseSpeed. The factor is computed
// in single precision and speeds are truncated, so 27° yields 7 rather than 8.
func Turn(angle int16) MotorCommand {
	factor := max(-1, min(1, float32(angle)/FullTurnAngle))
	if factor < 0 {
		factor = -factor
	}
	inner := int8(float32(BaseSpeed * (1 - factor)))

	switch {
	case angle > 0:
		return MotorCommand{Left: BaseSpeed, Right: inner}
	case angle < 0:
		return MotorCommand{Left: inner, Right: BaseSpeed}
	default:
		return MotorCommand{Left: BaseSpeed, Right: BaseSpeed}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
