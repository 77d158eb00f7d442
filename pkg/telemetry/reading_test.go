// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestParseReading_Valid(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Reading
	}{
		{"canonical", "D: 150, A: 0", Reading{150, 0}},
		{"negative angle", "D: 42, A: -17", Reading{42, -17}},
		{"reversed order", "A: 12, D: 300", Reading{300, 12}},
		{"extra whitespace", "D:   150  , A:  -3  ", Reading{150, -3}},
		{"trailing carriage return", "D: 150, A: 5\r", Reading{150, 5}},
		{"leading noise", "xx D: 7, A: 8", Reading{7, 8}},
		{"extra fields", "D: 7, A: 8, Q: 99", Reading{7, 8}},
		{"plus signs", "D: +7, A: +8", Reading{7, 8}},
		{"max values", "D: 65535, A: 32767", Reading{65535, 32767}},
		{"min values", "D: 0, A: -32768", Reading{0, -32768}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReading(tt.line)
			if err != nil {
				t.Fatalf("ParseReading(%q) error: %v", tt.line, err)
			}
			if got != tt.want {
				t.Errorf("ParseReading(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}

func TestParseReading_Malformed(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"empty", ""},
		{"missing distance", "A: 10"},
		{"missing angle", "D: 10"},
		{"non-numeric distance", "D: abc, A: 1"},
		{"non-numeric angle", "D: 1, A: left"},
		{"negative distance", "D: -1, A: 1"},
		{"distance out of range", "D: 65536, A: 1"},
		{"angle out of range", "D: 1, A: 32768"},
		{"angle below range", "D: 1, A: -32769"},
		{"empty value", "D: , A: 1"},
		{"tag at end of line", "A: 1, D:"},
		{"value glued to tag", "D:9, A: 1"},
		{"double sign", "D: ++1, A: 1"},
		{"invalid utf8", "D: 1, A: 1\xff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReading(tt.line)
			if err == nil {
				t.Fatalf("ParseReading(%q) = %+v, want error", tt.line, got)
			}
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("error %v does not wrap ErrMalformed", err)
			}
		})
	}
}

// The value starts three characters after the tag, so a value written without
// a separating space loses its first digit.
func TestParseReading_FixedValueOffset(t *testing.T) {
	got, err := ParseReading("D:150,A: 3")
	if err != nil {
		t.Fatalf("ParseReading error: %v", err)
	}
	if got.Distance != 50 {
		t.Errorf("Distance = %d, want 50", got.Distance)
	}
}

func TestParseReading_FullRange(t *testing.T) {
	distances := []int{0, 1, 99, 150, 1000, 32767, 65534, 65535}
	angles := []int{-32768, -180, -45, -1, 0, 1, 45, 180, 32767}

	for _, d := range distances {
		for _, a := range angles {
			line := fmt.Sprintf("D: %d, A: %d", d, a)
			got, err := ParseReading(line)
			if err != nil {
				t.Errorf("ParseReading(%q) error: %v", line, err)
				continue
			}
			if int(got.Distance) != d || int(got.Angle) != a {
				t.Errorf("ParseReading(%q) = %+v", line, got)
			}
		}
	}
}

func TestReading_String(t *testing.T) {
	r := Reading{Distance: 150, Angle: -12}
	if r.String() != "D: 150, A: -12" {
		t.Errorf("String() = %q", r.String())
	}

	parsed, err := ParseReading(r.String())
	if err != nil || parsed != r {
		t.Errorf("ParseReading(String()) = %+v, %v", parsed, err)
	}
}

func TestFormatReading(t *testing.T) {
	ts := time.Date(2025, 1, 2, 13, 4, 5, 6000000, time.UTC)
	got := FormatReading(Reading{Distance: 120, Angle: -4}, ts)
	want := "[13:04:05.006] Distance: 120 cm, Angle: -4°"
	if got != want {
		t.Errorf("FormatReading() = %q, want %q", got, want)
	}
}
