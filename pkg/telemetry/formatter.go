// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"fmt"
	"strconv"
	"time"
)

// FormatLine renders a framed line for display, escaping control bytes
func FormatLine(l Line) string {
	result := strconv.Quote(string(l.Data))
	if l.Overflow {
		result += " (overflow)"
	}
	return result
}

// FormatReading renders a reading with a timestamp in human-readable form
func FormatReading(r Reading, t time.Time) string {
	return fmt.Sprintf("[%s] Distance: %d cm, Angle: %d°", t.Format("15:04:05.000"), r.Distance, r.Angle)
}
