// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package session records control loop events to a CBOR stream and reads
// them back for offline replay.
//
// A session file is a sequence of CBOR-encoded Record values. The first record
// is always a header carrying the session ID and the steering target in effect.
package session

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Thermoquad/tracker/pkg/cutebot"
	"github.com/Thermoquad/tracker/pkg/steering"
	"github.com/Thermoquad/tracker/pkg/telemetry"
	"github.com/Thermoquad/tracker/pkg/tracker"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// Kind identifies the event stored in a record
type Kind uint8

// Record kinds
const (
	KindHeader Kind = iota
	KindLEDs
	KindLine
	KindMalformed
	KindReading
	KindTargetReached
	KindMotors
	KindTransportFailure
	KindChannelError
)

var kindNames = map[Kind]string{
	KindHeader:           "HEADER",
	KindLEDs:             "LEDS",
	KindLine:             "LINE",
	KindMalformed:        "MALFORMED",
	KindReading:          "READING",
	KindTargetReached:    "TARGET_REACHED",
	KindMotors:           "MOTORS",
	KindTransportFailure: "TRANSPORT_FAILURE",
	KindChannelError:     "CHANNEL_ERROR",
}

// String returns the kind name
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint8(k))
}

// Record is one recorded event. Only the fields relevant to Kind are set.
type Record struct {
	Kind     Kind      `cbor:"0,keyasint"`
	Time     time.Time `cbor:"1,keyasint"`
	Session  string    `cbor:"2,keyasint,omitempty"`
	Target   *Target   `cbor:"3,keyasint,omitempty"`
	Line     []byte    `cbor:"4,keyasint,omitempty"`
	Overflow bool      `cbor:"5,keyasint,omitempty"`
	Distance uint16    `cbor:"6,keyasint,omitempty"`
	Angle    int16     `cbor:"7,keyasint,omitempty"`
	Left     int8      `cbor:"8,keyasint,omitempty"`
	Right    int8      `cbor:"9,keyasint,omitempty"`
	Op       string    `cbor:"10,keyasint,omitempty"`
	Error    string    `cbor:"11,keyasint,omitempty"`
	Color    string    `cbor:"12,keyasint,omitempty"`
}

// Target is the steering target stored in the header
type Target struct {
	Distance                 uint16 `cbor:"0,keyasint"`
	Angle                    int16  `cbor:"1,keyasint"`
	AngleTolerance           uint16 `cbor:"2,keyasint"`
	DistanceTolerancePercent uint16 `cbor:"3,keyasint"`
}

// SteeringTarget converts the stored target back to a steering.Target
func (t Target) SteeringTarget() steering.Target {
	return steering.Target(t)
}

// Reading returns the fix carried by a READING, TARGET_REACHED or MOTORS record
func (r Record) Reading() telemetry.Reading {
	return telemetry.Reading{Distance: r.Distance, Angle: r.Angle}
}

// Command returns the motor command carried by a MOTORS record
func (r Record) Command() steering.MotorCommand {
	return steering.MotorCommand{Left: r.Left, Right: r.Right}
}

var _ tracker.Events = (*Recorder)(nil)

// Recorder writes loop events to w. It implements tracker.Events.
// Write errors are kept and returned by Err; recording stops at the first one.
type Recorder struct {
	mu  sync.Mutex
	enc *cbor.Encoder
	id  string
	err error
	now func() time.Time
}

// NewRecorder starts a new session on w and writes its header
func NewRecorder(w io.Writer, target steering.Target) (*Recorder, error) {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		return nil, fmt.Errorf("failed to create CBOR encoder: %w", err)
	}

	r := &Recorder{
		enc: em.NewEncoder(w),
		id:  uuid.NewString(),
		now: time.Now,
	}

	t := Target(target)
	r.write(Record{Kind: KindHeader, Session: r.id, Target: &t})
	if r.err != nil {
		return nil, r.err
	}
	return r, nil
}

// ID returns the session identifier
func (r *Recorder) ID() string {
	return r.id
}

// Err returns the first write error, if any
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Recorder) write(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return
	}
	rec.Time = r.now()
	if err := r.enc.Encode(rec); err != nil {
		r.err = fmt.Errorf("failed to record %s: %w", rec.Kind, err)
	}
}

func (r *Recorder) LEDSet(side string, c cutebot.Color) {
	r.write(Record{Kind: KindLEDs, Op: side, Color: c.Hex()})
}

func (r *Recorder) LineReceived(line telemetry.Line) {
	r.write(Record{Kind: KindLine, Line: line.Data, Overflow: line.Overflow})
}

func (r *Recorder) MalformedLine(line telemetry.Line, err error) {
	r.write(Record{Kind: KindMalformed, Line: line.Data, Overflow: line.Overflow, Error: err.Error()})
}

func (r *Recorder) ReadingParsed(reading telemetry.Reading) {
	r.write(Record{Kind: KindReading, Distance: reading.Distance, Angle: reading.Angle})
}

func (r *Recorder) TargetReached(reading telemetry.Reading) {
	r.write(Record{Kind: KindTargetReached, Distance: reading.Distance, Angle: reading.Angle})
}

func (r *Recorder) MotorsAdjusted(reading telemetry.Reading, cmd steering.MotorCommand) {
	r.write(Record{
		Kind:     KindMotors,
		Distance: reading.Distance,
		Angle:    reading.Angle,
		Left:     cmd.Left,
		Right:    cmd.Right,
	})
}

func (r *Recorder) TransportFailure(op string, err error) {
	r.write(Record{Kind: KindTransportFailure, Op: op, Error: err.Error()})
}

func (r *Recorder) ChannelError(err error) {
	r.write(Record{Kind: KindChannelError, Error: err.Error()})
}

// Reader reads records from a session stream
type Reader struct {
	dec    *cbor.Decoder
	header Record
}

// NewReader reads and validates the session header
func NewReader(rd io.Reader) (*Reader, error) {
	r := &Reader{dec: cbor.NewDecoder(rd)}

	if err := r.dec.Decode(&r.header); err != nil {
		return nil, fmt.Errorf("failed to read session header: %w", err)
	}
	if r.header.Kind != KindHeader || r.header.Target == nil {
		return nil, fmt.Errorf("not a session stream: first record is %s", r.header.Kind)
	}
	return r, nil
}

// Header returns the session header
func (r *Reader) Header() Record {
	return r.header
}

// Next returns the next record, or io.EOF at the end of the stream
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("failed to decode record: %w", err)
	}
	return rec, nil
}

// Dispatch replays rec into events. Header records and unknown kinds are
// ignored; recorded error strings are passed on as plain errors.
func Dispatch(rec Record, events tracker.Events) {
	line := telemetry.Line{Data: rec.Line, Overflow: rec.Overflow}

	switch rec.Kind {
	case KindLEDs:
		c, _ := cutebot.ParseColor(rec.Color)
		events.LEDSet(rec.Op, c)
	case KindLine:
		events.LineReceived(line)
	case KindMalformed:
		events.MalformedLine(line, errors.New(rec.Error))
	case KindReading:
		events.ReadingParsed(rec.Reading())
	case KindTargetReached:
		events.TargetReached(rec.Reading())
	case KindMotors:
		events.MotorsAdjusted(rec.Reading(), rec.Command())
	case KindTransportFailure:
		events.TransportFailure(rec.Op, errors.New(rec.Error))
	case KindChannelError:
		events.ChannelError(errors.New(rec.Error))
	}
}

// FormatRecord renders a record in human-readable form
func FormatRecord(rec Record) string {
	timestamp := rec.Time.Format("15:04:05.000")
	switch rec.Kind {
	case KindHeader:
		t := rec.Target
		return fmt.Sprintf("[%s] SESSION %s target D=%d A=%d (±%d°, ±%d%%)",
			timestamp, rec.Session, t.Distance, t.Angle, t.AngleTolerance, t.DistanceTolerancePercent)
	case KindLEDs:
		return fmt.Sprintf("[%s] LEDS %s %s", timestamp, rec.Op, rec.Color)
	case KindLine:
		return fmt.Sprintf("[%s] LINE %s", timestamp, telemetry.FormatLine(telemetry.Line{Data: rec.Line, Overflow: rec.Overflow}))
	case KindMalformed:
		return fmt.Sprintf("[%s] MALFORMED %s", timestamp, rec.Error)
	case KindReading:
		return fmt.Sprintf("[%s] READING %s", timestamp, rec.Reading())
	case KindTargetReached:
		return fmt.Sprintf("[%s] TARGET_REACHED %s", timestamp, rec.Reading())
	case KindMotors:
		return fmt.Sprintf("[%s] MOTORS %s", timestamp, rec.Command())
	case KindTransportFailure:
		return fmt.Sprintf("[%s] TRANSPORT_FAILURE %s: %s", timestamp, rec.Op, rec.Error)
	case KindChannelError:
		return fmt.Sprintf("[%s] CHANNEL_ERROR %s", timestamp, rec.Error)
	}
	return fmt.Sprintf("[%s] %s", timestamp, rec.Kind)
}
