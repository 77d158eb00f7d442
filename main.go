// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Tracker - Cutebot target tracking controller
//
// Steers a Cutebot towards a UWB beacon from the distance and angle
// readings the beacon reports over its serial link.

package main

import (
	"os"

	"github.com/Thermoquad/tracker/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
