// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tracker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/tracker/pkg/cutebot"
	"github.com/Thermoquad/tracker/pkg/steering"
	"github.com/Thermoquad/tracker/pkg/telemetry"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

// ============================================================
// Test doubles
// ============================================================

// fakeChannel replays input and then returns queued errors, then nothing
type fakeChannel struct {
	input   []byte
	pos     int
	errs    []error
	sent    bytes.Buffer
	sendErr error
}

func (c *fakeChannel) TryReceive() (byte, bool, error) {
	if c.pos < len(c.input) {
		b := c.input[c.pos]
		c.pos++
		return b, true, nil
	}
	if len(c.errs) > 0 {
		err := c.errs[0]
		if len(c.errs) > 1 {
			c.errs = c.errs[1:]
		}
		return 0, false, err
	}
	return 0, false, nil
}

func (c *fakeChannel) Send(b byte) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent.WriteByte(b)
	return nil
}

type fakeActuator struct {
	motors      [][2]int
	rgb         []string // "side color" per successful LED write
	motorErrors int      // Number of SetMotors calls that fail before succeeding
	leftErr     error
	rightErr    error
}

var errNack = errors.New("nack")

func (a *fakeActuator) SetMotors(left, right int) error {
	if a.motorErrors > 0 {
		a.motorErrors--
		return &cutebot.TransportError{Register: cutebot.RegMotorLeft, Err: errNack}
	}
	a.motors = append(a.motors, [2]int{left, right})
	return nil
}

func (a *fakeActuator) SetRGBLeft(c cutebot.Color) error {
	if a.leftErr != nil {
		return a.leftErr
	}
	a.rgb = append(a.rgb, "left "+c.String())
	return nil
}

func (a *fakeActuator) SetRGBRight(c cutebot.Color) error {
	if a.rightErr != nil {
		return a.rightErr
	}
	a.rgb = append(a.rgb, "right "+c.String())
	return nil
}

// recordingEvents keeps a log of event names
type recordingEvents struct {
	NopEvents
	log []string
}

func (r *recordingEvents) LEDSet(side string, c cutebot.Color) {
	r.log = append(r.log, "led "+side+" "+c.String())
}

func (r *recordingEvents) LineReceived(line telemetry.Line) {
	r.log = append(r.log, fmt.Sprintf("line %q overflow=%v", line.String(), line.Overflow))
}

func (r *recordingEvents) MalformedLine(line telemetry.Line, err error) {
	r.log = append(r.log, "malformed")
}

func (r *recordingEvents) ReadingParsed(reading telemetry.Reading) {
	r.log = append(r.log, "reading "+reading.String())
}

func (r *recordingEvents) TargetReached(reading telemetry.Reading) {
	r.log = append(r.log, "reached")
}

func (r *recordingEvents) MotorsAdjusted(reading telemetry.Reading, cmd steering.MotorCommand) {
	r.log = append(r.log, "motors "+cmd.String())
}

func (r *recordingEvents) TransportFailure(op string, err error) {
	r.log = append(r.log, "transport "+op)
}

func (r *recordingEvents) ChannelError(err error) {
	r.log = append(r.log, "channel")
}

func newTestLoop(input string) (*Loop, *fakeChannel, *fakeActuator, *recordingEvents) {
	ch := &fakeChannel{input: []byte(input)}
	act := &fakeActuator{}
	events := &recordingEvents{}
	opts := DefaultOptions()
	opts.Events = events
	return New(ch, act, opts), ch, act, events
}

// drain steps the loop until the channel has no more input
func drain(t *testing.T, l *Loop) {
	t.Helper()
	for i := 0; i < 10000; i++ {
		consumed, err := l.Step()
		if err != nil {
			t.Fatalf("Step() error: %v", err)
		}
		if !consumed {
			return
		}
	}
	t.Fatal("loop did not drain")
}

func assertLog(t *testing.T, got, want []string) {
	t.Helper()
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("events:\n  got  %q\n  want %q", got, want)
	}
}

// ============================================================
// Boot
// ============================================================

func TestStart(t *testing.T) {
	l, ch, act, events := newTestLoop("")
	l.Start()

	if got := ch.sent.String(); got != MsgGreeting+MsgLeftLEDReady+MsgRightLEDReady {
		t.Errorf("sent = %q", got)
	}
	assertLog(t, act.rgb, []string{"left red", "right blue"})
	assertLog(t, events.log, []string{"led left red", "led right blue"})
}

func TestStart_LeftLEDFailureStillSetsRight(t *testing.T) {
	l, ch, act, events := newTestLoop("")
	act.leftErr = errNack
	l.Start()

	if got := ch.sent.String(); got != MsgGreeting+MsgLeftLEDFailed+MsgRightLEDReady {
		t.Errorf("sent = %q", got)
	}
	assertLog(t, act.rgb, []string{"right blue"})
	assertLog(t, events.log, []string{"transport rgb-left", "led right blue"})
}

func TestStart_RightLEDFailure(t *testing.T) {
	l, ch, act, events := newTestLoop("")
	act.rightErr = errNack
	l.Start()

	if got := ch.sent.String(); got != MsgGreeting+MsgLeftLEDReady+MsgRightLEDFailed {
		t.Errorf("sent = %q", got)
	}
	assertLog(t, act.rgb, []string{"left red"})
	assertLog(t, events.log, []string{"led left red", "transport rgb-right"})
}

// nackBus rejects writes to one register and records the rest
type nackBus struct {
	i2ctest.Record
	register byte
}

func (b *nackBus) Tx(addr uint16, w, r []byte) error {
	if len(w) > 0 && w[0] == b.register {
		return errNack
	}
	return b.Record.Tx(addr, w, r)
}

func TestStart_DriverLeftLEDNack(t *testing.T) {
	stream := &loopbackStream{in: &bytes.Buffer{}}
	bus := &nackBus{register: cutebot.RegRGBLeft}
	l := New(NewStreamChannel(stream), cutebot.New(bus), DefaultOptions())

	l.Start()

	if len(bus.Ops) != 1 || !bytes.Equal(bus.Ops[0].W, []byte{cutebot.RegRGBRight, 0, 0, 255}) {
		t.Errorf("writes = %v, want only the right LED", bus.Ops)
	}
	if got, want := stream.out.String(), MsgGreeting+MsgLeftLEDFailed+MsgRightLEDReady; got != want {
		t.Errorf("serial = %q, want %q", got, want)
	}
}

// ============================================================
// Line handling
// ============================================================

func TestStep_EchoesEveryByte(t *testing.T) {
	input := "D: 150, A: 45\nnoise\r\n\n"
	l, ch, _, _ := newTestLoop(input)
	drain(t, l)

	if ch.sent.String() != input {
		t.Errorf("echo = %q, want %q", ch.sent.String(), input)
	}
}

func TestStep_SteersTowardTarget(t *testing.T) {
	l, _, act, events := newTestLoop("D: 150, A: 45\nD: 150, A: -22\n")
	drain(t, l)

	want := [][2]int{{20, 0}, {10, 20}}
	if fmt.Sprint(act.motors) != fmt.Sprint(want) {
		t.Errorf("motor writes = %v, want %v", act.motors, want)
	}
	assertLog(t, events.log, []string{
		`line "D: 150, A: 45" overflow=false`,
		"reading D: 150, A: 45",
		"motors L=20 R=0",
		`line "D: 150, A: -22" overflow=false`,
		"reading D: 150, A: -22",
		"motors L=10 R=20",
	})
}

func TestStep_TargetReached(t *testing.T) {
	input := "D: 150, A: 0\n"
	l, ch, act, events := newTestLoop(input)
	drain(t, l)

	if len(act.motors) != 1 || act.motors[0] != [2]int{0, 0} {
		t.Errorf("motor writes = %v, want [[0 0]]", act.motors)
	}
	if ch.sent.String() != input+MsgTargetReached {
		t.Errorf("sent = %q", ch.sent.String())
	}
	assertLog(t, events.log, []string{`line "D: 150, A: 0" overflow=false`, "reading D: 150, A: 0", "reached"})
}

func TestStep_StopFailure(t *testing.T) {
	input := "D: 150, A: 1\n"
	l, ch, act, events := newTestLoop(input)
	act.motorErrors = 1
	drain(t, l)

	if ch.sent.String() != input+MsgStopFailed {
		t.Errorf("sent = %q", ch.sent.String())
	}
	assertLog(t, events.log, []string{`line "D: 150, A: 1" overflow=false`, "reading D: 150, A: 1", "transport stop"})
}

func TestStep_MotorFailureContinues(t *testing.T) {
	l, _, act, events := newTestLoop("D: 10, A: 45\nD: 10, A: -45\n")
	act.motorErrors = 1
	drain(t, l)

	if len(act.motors) != 1 || act.motors[0] != [2]int{0, 20} {
		t.Errorf("motor writes = %v, want [[0 20]]", act.motors)
	}
	assertLog(t, events.log, []string{
		`line "D: 10, A: 45" overflow=false`,
		"reading D: 10, A: 45",
		"transport motors",
		`line "D: 10, A: -45" overflow=false`,
		"reading D: 10, A: -45",
		"motors L=0 R=20",
	})
}

func TestStep_MalformedIgnored(t *testing.T) {
	l, _, act, events := newTestLoop("hello\nD: 12\n")
	drain(t, l)

	if len(act.motors) != 0 {
		t.Errorf("motor writes = %v, want none", act.motors)
	}
	assertLog(t, events.log, []string{
		`line "hello" overflow=false`, "malformed",
		`line "D: 12" overflow=false`, "malformed",
	})
}

func TestStep_EmptyLineIgnored(t *testing.T) {
	l, _, act, events := newTestLoop("\n\n\n")
	drain(t, l)

	if len(act.motors) != 0 || len(events.log) != 0 {
		t.Errorf("empty lines produced writes %v and events %v", act.motors, events.log)
	}
}

// A line cut by overflow is still parsed with whatever was collected
func TestStep_OverflowParsedBestEffort(t *testing.T) {
	input := "D: 150, A: 45, " + strings.Repeat("x", 30)
	l, _, act, events := newTestLoop(input)
	drain(t, l)

	if len(act.motors) != 1 || act.motors[0] != [2]int{20, 0} {
		t.Errorf("motor writes = %v, want [[20 0]]", act.motors)
	}
	if len(events.log) == 0 || !strings.HasSuffix(events.log[0], "overflow=true") {
		t.Errorf("first event = %v, want overflow line", events.log)
	}
}

func TestStep_SendErrorReported(t *testing.T) {
	l, ch, act, events := newTestLoop("D: 150, A: 45\n")
	ch.sendErr = errors.New("tx stalled")
	drain(t, l)

	if len(act.motors) != 1 {
		t.Errorf("motor writes = %v, want one", act.motors)
	}
	channelErrors := 0
	for _, e := range events.log {
		if e == "channel" {
			channelErrors++
		}
	}
	if channelErrors != len("D: 150, A: 45\n") {
		t.Errorf("channel errors = %d, want one per echoed byte", channelErrors)
	}
}

func TestStep_ReceiveError(t *testing.T) {
	l, ch, _, _ := newTestLoop("")
	ch.errs = []error{errors.New("framing error")}

	consumed, err := l.Step()
	if err == nil || consumed {
		t.Errorf("Step() = %v, %v; want false, error", consumed, err)
	}
}

// Each reading is acted on exactly once, with the stop path taken only for a stop decision
func TestHandleLine_FollowsDecision(t *testing.T) {
	for _, distance := range []uint16{0, 100, 135, 150, 165, 166, 167, 400} {
		for _, angle := range []int16{-90, -27, -3, -2, 0, 1, 2, 3, 22, 45} {
			l, ch, act, events := newTestLoop(fmt.Sprintf("D: %d, A: %d\n", distance, angle))
			drain(t, l)

			reading := telemetry.Reading{Distance: distance, Angle: angle}
			cmd := steering.Decide(reading, l.Target())
			if len(act.motors) != 1 || act.motors[0] != [2]int{int(cmd.Left), int(cmd.Right)} {
				t.Errorf("%s: motors = %v, want [%s]", reading, act.motors, cmd)
			}

			reached := events.log[len(events.log)-1] == "reached"
			if reached != cmd.IsStop() {
				t.Errorf("%s: reached = %v, stop decision = %v", reading, reached, cmd.IsStop())
			}
			if strings.HasSuffix(ch.sent.String(), MsgTargetReached) != cmd.IsStop() {
				t.Errorf("%s: sent = %q", reading, ch.sent.String())
			}
		}
	}
}

// ============================================================
// Run
// ============================================================

func TestRun_StopsOnContextCancel(t *testing.T) {
	ch := &fakeChannel{input: []byte("D: 150, A: 45\n")}
	act := &fakeActuator{}
	opts := DefaultOptions()
	opts.PollInterval = time.Millisecond
	l := New(ch, act, opts)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want context.DeadlineExceeded", err)
	}
	if len(act.rgb) != 2 {
		t.Errorf("rgb writes = %d, want 2 from boot", len(act.rgb))
	}
	if len(act.motors) != 1 {
		t.Errorf("motor writes = %v, want one", act.motors)
	}
}

func TestRun_StopsWhenChannelClosed(t *testing.T) {
	ch := &fakeChannel{
		input: []byte("D: 150, A: 0\n"),
		errs:  []error{errors.New("parity error"), fmt.Errorf("%w: eof", ErrChannelClosed)},
	}
	act := &fakeActuator{}
	events := &recordingEvents{}
	opts := DefaultOptions()
	opts.Events = events
	l := New(ch, act, opts)

	err := l.Run(context.Background())
	if !errors.Is(err, ErrChannelClosed) {
		t.Fatalf("Run() error = %v, want ErrChannelClosed", err)
	}
	if len(act.motors) != 1 || act.motors[0] != [2]int{0, 0} {
		t.Errorf("motor writes = %v, want [[0 0]]", act.motors)
	}
	if events.log[len(events.log)-1] != "channel" {
		t.Errorf("last event = %q, want transient channel error", events.log[len(events.log)-1])
	}
}

// ============================================================
// Integration with the real driver and stream channel
// ============================================================

func TestLoop_DriverIntegration(t *testing.T) {
	stream := &loopbackStream{in: bytes.NewBufferString("D: 150, A: 45\nD: 140, A: 1\n")}
	bus := &i2ctest.Record{}
	stats := NewStatistics()

	opts := DefaultOptions()
	opts.Events = stats
	l := New(NewStreamChannel(stream), cutebot.New(bus), opts)

	err := l.Run(context.Background())
	if !errors.Is(err, ErrChannelClosed) {
		t.Fatalf("Run() error = %v, want ErrChannelClosed", err)
	}

	want := [][]byte{
		{cutebot.RegRGBLeft, 255, 0, 0},
		{cutebot.RegRGBRight, 0, 0, 255},
		{cutebot.RegMotorLeft, 120},
		{cutebot.RegMotorRight, 100},
		{cutebot.RegMotorLeft, 100},
		{cutebot.RegMotorRight, 100},
	}
	if len(bus.Ops) != len(want) {
		t.Fatalf("got %d writes, want %d", len(bus.Ops), len(want))
	}
	for i, op := range bus.Ops {
		if op.Addr != cutebot.Address || !bytes.Equal(op.W, want[i]) {
			t.Errorf("write %d = 0x%02X % X, want % X", i, op.Addr, op.W, want[i])
		}
	}

	if !strings.HasSuffix(stream.out.String(), MsgTargetReached) {
		t.Errorf("output %q does not end with target reached message", stream.out.String())
	}
	if stats.ValidReadings != 2 || stats.TargetsReached != 1 || stats.MotorCommands != 2 {
		t.Errorf("stats = %d readings, %d reached, %d commands", stats.ValidReadings, stats.TargetsReached, stats.MotorCommands)
	}
}

type loopbackStream struct {
	in  *bytes.Buffer
	out bytes.Buffer
}

func (s *loopbackStream) Read(p []byte) (int, error)  { return s.in.Read(p) }
func (s *loopbackStream) Write(p []byte) (int, error) { return s.out.Write(p) }
