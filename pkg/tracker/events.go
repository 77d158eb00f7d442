// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tracker

import (
	"log/slog"

	"github.com/Thermoquad/tracker/pkg/cutebot"
	"github.com/Thermoquad/tracker/pkg/steering"
	"github.com/Thermoquad/tracker/pkg/telemetry"
)

// Events receives notifications from the control loop.
// Calls are made synchronously from the loop goroutine.
type Events interface {
	// LEDSet reports a boot LED color after a successful write.
	// side is LEDLeft or LEDRight.
	LEDSet(side string, c cutebot.Color)

	// LineReceived reports every non-empty framed line
	LineReceived(line telemetry.Line)

	// MalformedLine reports a line that did not parse; the loop ignores it
	MalformedLine(line telemetry.Line, err error)

	// ReadingParsed reports a valid fix
	ReadingParsed(r telemetry.Reading)

	// TargetReached reports that the motors were stopped at the target
	TargetReached(r telemetry.Reading)

	// MotorsAdjusted reports a steering command that was written to the motors
	MotorsAdjusted(r telemetry.Reading, cmd steering.MotorCommand)

	// TransportFailure reports a failed actuator write; op names the command
	TransportFailure(op string, err error)

	// ChannelError reports a serial read or write failure
	ChannelError(err error)
}

// NopEvents ignores all events. Embed it to implement a subset of Events.
type NopEvents struct{}

func (NopEvents) LEDSet(side string, c cutebot.Color)                           {}
func (NopEvents) LineReceived(line telemetry.Line)                              {}
func (NopEvents) MalformedLine(line telemetry.Line, err error)                  {}
func (NopEvents) ReadingParsed(r telemetry.Reading)                             {}
func (NopEvents) TargetReached(r telemetry.Reading)                             {}
func (NopEvents) MotorsAdjusted(r telemetry.Reading, cmd steering.MotorCommand) {}
func (NopEvents) TransportFailure(op string, err error)                         {}
func (NopEvents) ChannelError(err error)                                        {}

// MultiEvents fans events out to several receivers in order
type MultiEvents []Events

func (m MultiEvents) LEDSet(side string, c cutebot.Color) {
	for _, e := range m {
		e.LEDSet(side, c)
	}
}

func (m MultiEvents) LineReceived(line telemetry.Line) {
	for _, e := range m {
		e.LineReceived(line)
	}
}

func (m MultiEvents) MalformedLine(line telemetry.Line, err error) {
	for _, e := range m {
		e.MalformedLine(line, err)
	}
}

func (m MultiEvents) ReadingParsed(r telemetry.Reading) {
	for _, e := range m {
		e.ReadingParsed(r)
	}
}

func (m MultiEvents) TargetReached(r telemetry.Reading) {
	for _, e := range m {
		e.TargetReached(r)
	}
}

func (m MultiEvents) MotorsAdjusted(r telemetry.Reading, cmd steering.MotorCommand) {
	for _, e := range m {
		e.MotorsAdjusted(r, cmd)
	}
}

func (m MultiEvents) TransportFailure(op string, err error) {
	for _, e := range m {
		e.TransportFailure(op, err)
	}
}

func (m MultiEvents) ChannelError(err error) {
	for _, e := range m {
		e.ChannelError(err)
	}
}

// LogEvents writes events to a structured logger
type LogEvents struct {
	logger *slog.Logger
}

// NewLogEvents creates a logging event receiver
func NewLogEvents(logger *slog.Logger) *LogEvents {
	return &LogEvents{logger: logger}
}

func (l *LogEvents) LEDSet(side string, c cutebot.Color) {
	l.logger.Info("LED set", "side", side, "color", c.String())
}

func (l *LogEvents) LineReceived(line telemetry.Line) {
	l.logger.Debug("line received", "line", line.String(), "overflow", line.Overflow)
}

func (l *LogEvents) MalformedLine(line telemetry.Line, err error) {
	l.logger.Debug("telemetry dropped", "line", line.String(), "error", err)
}

func (l *LogEvents) ReadingParsed(r telemetry.Reading) {
	l.logger.Info("received", "distance", r.Distance, "angle", r.Angle)
}

func (l *LogEvents) TargetReached(r telemetry.Reading) {
	l.logger.Info("target reached, motors stopped", "distance", r.Distance, "angle", r.Angle)
}

func (l *LogEvents) MotorsAdjusted(r telemetry.Reading, cmd steering.MotorCommand) {
	l.logger.Info("motors adjusted", "left", cmd.Left, "right", cmd.Right)
}

func (l *LogEvents) TransportFailure(op string, err error) {
	l.logger.Error("actuator write failed", "op", op, "error", err)
}

func (l *LogEvents) ChannelError(err error) {
	l.logger.Warn("serial channel error", "error", err)
}
