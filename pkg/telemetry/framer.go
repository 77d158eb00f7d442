// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

// Line is a completed line produced by the framer
type Line struct {
	Data     []byte // Line content, terminator excluded
	Overflow bool   // True if the line was cut because the buffer filled up
}

// String returns the line content as text
func (l Line) String() string {
	return string(l.Data)
}

// LineFramer accumulates serial bytes into terminator-delimited lines.
//
// The buffer never stores more than capacity-1 bytes. A byte that arrives while
// the buffer is full completes the current line and is discarded, exactly like
// a terminator.
type LineFramer struct {
	buffer      []byte
	bufferIndex int
}

// NewLineFramer creates a framer with the given buffer capacity.
// Capacities below 2 fall back to DefaultLineCapacity.
func NewLineFramer(capacity int) *LineFramer {
	if capacity < 2 {
		capacity = DefaultLineCapacity
	}
	return &LineFramer{
		buffer: make([]byte, capacity),
	}
}

// Reset drops any partially accumulated line
func (f *LineFramer) Reset() {
	f.bufferIndex = 0
}

// Len returns the number of bytes currently buffered
func (f *LineFramer) Len() int {
	return f.bufferIndex
}

// Capacity returns the buffer capacity (including the reserved slot)
func (f *LineFramer) Capacity() int {
	return len(f.buffer)
}

// Feed processes a single byte.
// Returns the completed line and true when b terminates a line or arrives
// while the buffer is full; otherwise the byte is stored and false is returned.
// Completed lines may be empty.
func (f *LineFramer) Feed(b byte) (Line, bool) {
	full := f.bufferIndex >= len(f.buffer)-1
	if b != Terminator && !full {
		f.buffer[f.bufferIndex] = b
		f.bufferIndex++
		return Line{}, false
	}

	line := Line{
		Data:     make([]byte, f.bufferIndex),
		Overflow: b != Terminator,
	}
	copy(line.Data, f.buffer[:f.bufferIndex])

	f.Reset()
	return line, true
}
