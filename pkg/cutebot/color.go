// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cutebot

import (
	"fmt"

	"github.com/lucasb-eyer/go-colorful"
)

// Color is an 8-bit RGB LED color
type Color struct {
	R, G, B uint8
}

// Predefined colors
var (
	Off   = Color{0, 0, 0}
	Red   = Color{255, 0, 0}
	Green = Color{0, 255, 0}
	Blue  = Color{0, 0, 255}
	White = Color{255, 255, 255}
)

var namedColors = map[string]Color{
	"off":   Off,
	"black": Off,
	"red":   Red,
	"green": Green,
	"blue":  Blue,
	"white": White,
}

// ParseColor parses a color name ("red", "off", ...) or a hex value ("#ff8000")
func ParseColor(s string) (Color, error) {
	if c, ok := namedColors[s]; ok {
		return c, nil
	}
	if len(s) > 0 && s[0] != '#' {
		s = "#" + s
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return Color{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return Color{r, g, b}, nil
}

// Hex returns the color as "#rrggbb"
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// String returns the color name if it has one, otherwise its hex value
func (c Color) String() string {
	switch c {
	case Off:
		return "off"
	case Red:
		return "red"
	case Green:
		return "green"
	case Blue:
		return "blue"
	case White:
		return "white"
	}
	return c.Hex()
}
