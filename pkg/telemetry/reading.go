// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrMalformed is wrapped by every error returned from ParseReading
var ErrMalformed = errors.New("malformed telemetry")

// Reading is a single distance/bearing fix
type Reading struct {
	Distance uint16 // Centimetres
	Angle    int16  // Degrees, positive means the target is to the right
}

// String returns the reading in wire format (without terminator)
func (r Reading) String() string {
	return fmt.Sprintf("D: %d, A: %d", r.Distance, r.Angle)
}

// ParseReading extracts a reading from one telemetry line.
//
// Both the D: and A: tags must be present, in either order. Each value starts
// three characters after its tag and runs to the next comma or the end of the
// line; surrounding whitespace is ignored. Parsing is all-or-nothing.
func ParseReading(line string) (Reading, error) {
	if !utf8.ValidString(line) {
		return Reading{}, fmt.Errorf("%w: line is not valid UTF-8", ErrMalformed)
	}

	distanceField, err := fieldValue(line, TagDistance)
	if err != nil {
		return Reading{}, err
	}
	angleField, err := fieldValue(line, TagAngle)
	if err != nil {
		return Reading{}, err
	}

	distance, err := parseDistance(distanceField)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: distance %q: %v", ErrMalformed, distanceField, err)
	}

	angle, err := strconv.ParseInt(angleField, 10, 16)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: angle %q: %v", ErrMalformed, angleField, err)
	}

	return Reading{Distance: distance, Angle: int16(angle)}, nil
}

// fieldValue returns the trimmed value text that follows the first occurrence of tag
func fieldValue(line, tag string) (string, error) {
	pos := strings.Index(line, tag)
	if pos < 0 {
		return "", fmt.Errorf("%w: missing %q tag", ErrMalformed, tag)
	}

	start := pos + valueOffset
	if start > len(line) {
		return "", fmt.Errorf("%w: %q tag has no value", ErrMalformed, tag)
	}

	end := len(line)
	if i := strings.IndexByte(line[start:], FieldDelimiter); i >= 0 {
		end = start + i
	}

	return strings.TrimSpace(line[start:end]), nil
}

// parseDistance parses an unsigned 16-bit decimal, accepting one leading '+'
func parseDistance(s string) (uint16, error) {
	if strings.HasPrefix(s, "+") {
		s = s[1:]
		if s == "" || s[0] == '+' || s[0] == '-' {
			return 0, fmt.Errorf("invalid sign")
		}
	}
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}
