// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tracker

import (
	"errors"
	"fmt"
	"io"
)

// ErrChannelClosed is returned once the serial peer has gone away for good
var ErrChannelClosed = errors.New("serial channel closed")

// SerialChannel is the byte-oriented link to the beacon
type SerialChannel interface {
	// Send writes a single byte
	Send(b byte) error

	// TryReceive returns the next byte if one is available.
	// It must not block longer than the underlying transport's read timeout.
	TryReceive() (byte, bool, error)
}

// StreamChannel adapts an io.ReadWriter (serial port, WebSocket) to SerialChannel.
//
// A Read that returns no data is reported as "no byte available", so the poll
// interval is bounded by the transport's read timeout. A transport without a
// timeout blocks the loop until data arrives.
type StreamChannel struct {
	rw    io.ReadWriter
	buf   []byte
	start int
	end   int
}

// NewStreamChannel wraps rw
func NewStreamChannel(rw io.ReadWriter) *StreamChannel {
	return &StreamChannel{
		rw:  rw,
		buf: make([]byte, 128),
	}
}

// Send writes b to the stream
func (c *StreamChannel) Send(b byte) error {
	_, err := c.rw.Write([]byte{b})
	return err
}

// TryReceive returns the next buffered byte, reading from the stream when the
// buffer is empty
func (c *StreamChannel) TryReceive() (byte, bool, error) {
	if c.start == c.end {
		n, err := c.rw.Read(c.buf)
		if n <= 0 {
			if errors.Is(err, io.EOF) {
				return 0, false, fmt.Errorf("%w: %v", ErrChannelClosed, err)
			}
			return 0, false, err
		}
		c.start, c.end = 0, n
	}

	b := c.buf[c.start]
	c.start++
	return b, true, nil
}

// Buffered returns the number of received bytes not yet consumed
func (c *StreamChannel) Buffered() int {
	return c.end - c.start
}
