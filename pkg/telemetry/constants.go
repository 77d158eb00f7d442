// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package telemetry implements the ASCII position-fix protocol spoken by the
// ranging beacon attached to the robot's serial port.
//
// A fix is a single line such as "D: 150, A: -12" carrying the distance to the
// target in centimetres and its bearing in degrees. This package provides the
// byte-level line framer and the fix parser.
package telemetry

// Line framing
const (
	Terminator = '\n'

	// DefaultLineCapacity is the size of the line buffer. One slot is kept
	// for the terminator, so at most DefaultLineCapacity-1 bytes are stored.
	DefaultLineCapacity = 32
)

// Field tags
const (
	TagDistance = "D:"
	TagAngle    = "A:"

	// FieldDelimiter ends a value when it is not the last one on the line
	FieldDelimiter = ','

	// valueOffset is the distance from the start of a tag to its value
	// (tag plus one separating space)
	valueOffset = 3
)
