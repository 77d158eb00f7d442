// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package cutebot drives the motor and LED controller of the Cutebot chassis
// over I²C.
//
// The controller is write-only. Every command is a single write to the fixed
// device address whose first byte selects the register:
//
//	motor:  [register, speed]      speed = value + 100, saturated to 0..200
//	LED:    [register, r, g, b]
package cutebot

// Address is the 7-bit I²C address of the controller
const Address = 0x10

// Registers
const (
	RegMotorLeft  = 0x01
	RegMotorRight = 0x02
	RegRGBLeft    = 0x04
	RegRGBRight   = 0x08
)

// Speed encoding limits
const (
	MinSpeed = -100
	MaxSpeed = 100

	speedOffset     = 100
	maxEncodedSpeed = 200
)
