// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package tracker runs the target-tracking control loop: it reads beacon fixes
// from the serial channel, decides a steering command and drives the Cutebot.
package tracker

import (
	"context"
	"errors"
	"time"

	"github.com/Thermoquad/tracker/pkg/cutebot"
	"github.com/Thermoquad/tracker/pkg/steering"
	"github.com/Thermoquad/tracker/pkg/telemetry"
)

// Status messages written back to the serial peer
const (
	MsgGreeting      = "Please type characters to echo:\r\n"
	MsgLeftLEDReady   = "Left RGB LED initialized\r\n"
	MsgLeftLEDFailed  = "Error: Failed to set left RGB LED\r\n"
	MsgRightLEDReady  = "Right RGB LED initialized\r\n"
	MsgRightLEDFailed = "Error: Failed to set right RGB LED\r\n"
	MsgTargetReached  = "Target reached! Motors stopped\r\n"
	MsgStopFailed     = "Error: Failed to stop motors\r\n"
)

// LED sides as reported by Events.LEDSet
const (
	LEDLeft  = "left"
	LEDRight = "right"
)

// errorBackoff is the pause after a transient channel error
const errorBackoff = 10 * time.Millisecond

// Actuator drives the motors and LEDs
type Actuator interface {
	SetMotors(left, right int) error
	SetRGBLeft(c cutebot.Color) error
	SetRGBRight(c cutebot.Color) error
}

// Options configures a Loop
type Options struct {
	Target       steering.Target
	LineCapacity int           // Line buffer size, 0 for telemetry.DefaultLineCapacity
	PollInterval time.Duration // Sleep when no byte is available, 0 to poll continuously
	LeftColor    cutebot.Color // Boot color of the left LED
	RightColor   cutebot.Color // Boot color of the right LED
	Events       Events        // nil to discard events
}

// DefaultOptions returns the stock configuration
func DefaultOptions() Options {
	return Options{
		Target:       steering.DefaultTarget,
		LineCapacity: telemetry.DefaultLineCapacity,
		LeftColor:    cutebot.Red,
		RightColor:   cutebot.Blue,
	}
}

// Loop is the single-threaded control loop. It owns its line buffer and must
// only be driven from one goroutine.
type Loop struct {
	channel      SerialChannel
	actuator     Actuator
	framer       *telemetry.LineFramer
	target       steering.Target
	pollInterval time.Duration
	leftColor    cutebot.Color
	rightColor   cutebot.Color
	events       Events
}

// New creates a control loop
func New(channel SerialChannel, actuator Actuator, opts Options) *Loop {
	events := opts.Events
	if events == nil {
		events = NopEvents{}
	}
	return &Loop{
		channel:      channel,
		actuator:     actuator,
		framer:       telemetry.NewLineFramer(opts.LineCapacity),
		target:       opts.Target,
		pollInterval: opts.PollInterval,
		leftColor:    opts.LeftColor,
		rightColor:   opts.RightColor,
		events:       events,
	}
}

// Target returns the steering target
func (l *Loop) Target() steering.Target {
	return l.target
}

// Start greets the serial peer and sets the boot LED colors.
// Each LED is written and reported on its own; a failed left LED does not
// keep the right one from being set.
func (l *Loop) Start() {
	l.writeStatus(MsgGreeting)

	l.setLED(LEDLeft, l.leftColor, l.actuator.SetRGBLeft, MsgLeftLEDReady, MsgLeftLEDFailed)
	l.setLED(LEDRight, l.rightColor, l.actuator.SetRGBRight, MsgRightLEDReady, MsgRightLEDFailed)
}

func (l *Loop) setLED(side string, c cutebot.Color, set func(cutebot.Color) error, ready, failed string) {
	if err := set(c); err != nil {
		l.events.TransportFailure("rgb-"+side, err)
		l.writeStatus(failed)
		return
	}
	l.events.LEDSet(side, c)
	l.writeStatus(ready)
}

// Step polls the channel once and processes at most one byte.
// Returns true if a byte was consumed. Errors come from the channel only;
// actuator failures are reported through Events.
func (l *Loop) Step() (bool, error) {
	b, ok, err := l.channel.TryReceive()
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	if err := l.channel.Send(b); err != nil {
		l.events.ChannelError(err)
	}

	if line, done := l.framer.Feed(b); done {
		l.handleLine(line)
	}
	return true, nil
}

// Run starts the loop and processes bytes until ctx is cancelled or the
// channel is closed. Transient channel errors are reported and retried.
func (l *Loop) Run(ctx context.Context) error {
	l.Start()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		consumed, err := l.Step()
		if err != nil {
			if errors.Is(err, ErrChannelClosed) {
				return err
			}
			l.events.ChannelError(err)
			if !sleep(ctx, errorBackoff) {
				return ctx.Err()
			}
			continue
		}

		if !consumed && l.pollInterval > 0 {
			if !sleep(ctx, l.pollInterval) {
				return ctx.Err()
			}
		}
	}
}

// handleLine parses a completed line and issues the resulting motor command
func (l *Loop) handleLine(line telemetry.Line) {
	if len(line.Data) == 0 {
		return
	}
	l.events.LineReceived(line)

	reading, err := telemetry.ParseReading(line.String())
	if err != nil {
		l.events.MalformedLine(line, err)
		return
	}
	l.events.ReadingParsed(reading)

	cmd := steering.Decide(reading, l.target)

	if cmd.IsStop() {
		if err := l.actuator.SetMotors(0, 0); err != nil {
			l.events.TransportFailure("stop", err)
			l.writeStatus(MsgStopFailed)
			return
		}
		l.events.TargetReached(reading)
		l.writeStatus(MsgTargetReached)
		return
	}

	if err := l.actuator.SetMotors(int(cmd.Left), int(cmd.Right)); err != nil {
		l.events.TransportFailure("motors", err)
		return
	}
	l.events.MotorsAdjusted(reading, cmd)
}

// writeStatus sends a text message to the serial peer
func (l *Loop) writeStatus(msg string) {
	for i := 0; i < len(msg); i++ {
		if err := l.channel.Send(msg[i]); err != nil {
			l.events.ChannelError(err)
			return
		}
	}
}

// sleep waits for d, returning false if ctx is cancelled first
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
