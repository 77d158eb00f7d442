// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cutebot

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
)

// TransportError reports a failed register write
type TransportError struct {
	Register byte
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("i2c write to register 0x%02X failed: %v", e.Register, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Driver encodes motor and LED commands for the controller.
// It keeps no mirror of the device state; every call results in fresh writes.
type Driver struct {
	dev *i2c.Dev
}

// New creates a driver for the controller at Address on the given bus
func New(bus i2c.Bus) *Driver {
	return NewWithAddress(bus, Address)
}

// NewWithAddress creates a driver for a controller strapped to another address
func NewWithAddress(bus i2c.Bus, addr uint16) *Driver {
	return &Driver{dev: &i2c.Dev{Bus: bus, Addr: addr}}
}

// String returns the bus and address the driver writes to
func (d *Driver) String() string {
	return d.dev.String()
}

// EncodeSpeed converts a signed speed to its register value.
// Values outside [MinSpeed, MaxSpeed] saturate instead of being rejected.
func EncodeSpeed(speed int) byte {
	v := speed + speedOffset
	if v < 0 {
		return 0
	}
	if v > maxEncodedSpeed {
		return maxEncodedSpeed
	}
	return byte(v)
}

// SetMotors sets both wheel speeds, left first.
// The right wheel is not written if the left write fails.
func (d *Driver) SetMotors(left, right int) error {
	if err := d.write(RegMotorLeft, EncodeSpeed(left)); err != nil {
		return err
	}
	return d.write(RegMotorRight, EncodeSpeed(right))
}

// Stop halts both motors
func (d *Driver) Stop() error {
	return d.SetMotors(0, 0)
}

// SetRGB sets both LEDs, left first.
// The right LED is not written if the left write fails.
func (d *Driver) SetRGB(left, right Color) error {
	if err := d.SetRGBLeft(left); err != nil {
		return err
	}
	return d.SetRGBRight(right)
}

// SetRGBLeft sets the left LED
func (d *Driver) SetRGBLeft(c Color) error {
	return d.write(RegRGBLeft, c.R, c.G, c.B)
}

// SetRGBRight sets the right LED
func (d *Driver) SetRGBRight(c Color) error {
	return d.write(RegRGBRight, c.R, c.G, c.B)
}

func (d *Driver) write(register byte, data ...byte) error {
	payload := make([]byte, 0, 1+len(data))
	payload = append(payload, register)
	payload = append(payload, data...)

	if err := d.dev.Tx(payload, nil); err != nil {
		return &TransportError{Register: register, Err: err}
	}
	return nil
}
