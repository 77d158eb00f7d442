// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tracker

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

// chunkedReader returns one scripted result per Read call
type chunkedReader struct {
	chunks []string
	errs   []error
	writes bytes.Buffer
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	err := r.errs[0]
	r.chunks, r.errs = r.chunks[1:], r.errs[1:]
	return n, err
}

func (r *chunkedReader) Write(p []byte) (int, error) {
	return r.writes.Write(p)
}

func TestStreamChannel_ReceivesInOrder(t *testing.T) {
	rw := &chunkedReader{
		chunks: []string{"ab", "", "c"},
		errs:   []error{nil, nil, nil},
	}
	c := NewStreamChannel(rw)

	var got []byte
	polls := 0
	for {
		b, ok, err := c.TryReceive()
		if err != nil {
			if !errors.Is(err, ErrChannelClosed) {
				t.Fatalf("TryReceive() error: %v", err)
			}
			break
		}
		polls++
		if ok {
			got = append(got, b)
		}
	}

	if string(got) != "abc" {
		t.Errorf("received %q, want %q", got, "abc")
	}
	// 3 bytes plus one empty poll for the timed-out read
	if polls != 4 {
		t.Errorf("polls = %d, want 4", polls)
	}
}

func TestStreamChannel_DataWithError(t *testing.T) {
	rw := &chunkedReader{
		chunks: []string{"xy"},
		errs:   []error{errors.New("late error")},
	}
	c := NewStreamChannel(rw)

	b, ok, err := c.TryReceive()
	if err != nil || !ok || b != 'x' {
		t.Fatalf("TryReceive() = %q, %v, %v; want 'x', true, nil", b, ok, err)
	}
	if c.Buffered() != 1 {
		t.Errorf("Buffered() = %d, want 1", c.Buffered())
	}
}

func TestStreamChannel_TransientError(t *testing.T) {
	errParity := errors.New("parity")
	rw := &chunkedReader{chunks: []string{""}, errs: []error{errParity}}
	c := NewStreamChannel(rw)

	_, ok, err := c.TryReceive()
	if ok || !errors.Is(err, errParity) {
		t.Errorf("TryReceive() = %v, %v; want false, parity error", ok, err)
	}
	if errors.Is(err, ErrChannelClosed) {
		t.Error("transient error should not be reported as closed")
	}
}

func TestStreamChannel_Send(t *testing.T) {
	rw := &chunkedReader{}
	c := NewStreamChannel(rw)

	for _, b := range []byte("ok\r\n") {
		if err := c.Send(b); err != nil {
			t.Fatalf("Send() error: %v", err)
		}
	}
	if rw.writes.String() != "ok\r\n" {
		t.Errorf("written = %q", rw.writes.String())
	}
}
