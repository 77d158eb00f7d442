// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/Thermoquad/tracker/internal/config"
	"github.com/Thermoquad/tracker/internal/log"
	"github.com/Thermoquad/tracker/pkg/cutebot"
	"github.com/spf13/cobra"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

var (
	dryRun bool

	motorLeft  int
	motorRight int

	rgbLeft  string
	rgbRight string
)

// dryRunBus logs I2C transactions instead of performing them
type dryRunBus struct {
	logger *slog.Logger
}

func (b *dryRunBus) String() string {
	return "dry-run"
}

func (b *dryRunBus) Tx(addr uint16, w, r []byte) error {
	b.logger.Info("i2c write", "addr", fmt.Sprintf("0x%02X", addr), "data", fmt.Sprintf("% X", w))
	clear(r)
	return nil
}

func (b *dryRunBus) SetSpeed(f physic.Frequency) error {
	return nil
}

func (b *dryRunBus) Close() error {
	return nil
}

// OpenActuator opens the I2C bus and returns a Cutebot driver on it.
// With dry set, writes are logged instead of sent.
func OpenActuator(c config.I2C, dry bool) (*cutebot.Driver, io.Closer, error) {
	var bus i2c.BusCloser

	if dry {
		bus = &dryRunBus{logger: log.With("component", "i2c")}
	} else {
		if _, err := host.Init(); err != nil {
			return nil, nil, fmt.Errorf("failed to initialize host drivers: %w", err)
		}

		var err error
		bus, err = i2creg.Open(c.Bus)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open I2C bus %q: %w", c.Bus, err)
		}
	}

	driver := cutebot.NewWithAddress(bus, c.Address)
	log.Debug("motor board ready", "driver", driver.String())
	return driver, bus, nil
}

var motorsCmd = &cobra.Command{
	Use:   "motors",
	Short: "Set both motor speeds once",
	Long: `Write a single motor command to the Cutebot.

Speeds are in the range -100 to 100 and are clamped on the wire. Negative
values drive the wheel backwards.`,
	Args: cobra.NoArgs,
	RunE: runMotors,
}

var rgbCmd = &cobra.Command{
	Use:   "rgb",
	Short: "Set the headlight colors",
	Long: `Set the left and right RGB headlights.

Colors are names (off, red, green, blue, white) or hex values (#ff8000).`,
	Args: cobra.NoArgs,
	RunE: runRGB,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop both motors",
	Args:  cobra.NoArgs,
	RunE:  runStop,
}

func init() {
	for _, c := range []*cobra.Command{motorsCmd, rgbCmd, stopCmd} {
		c.Flags().BoolVar(&dryRun, "dry-run", false, "Log I2C writes instead of sending them")
		rootCmd.AddCommand(c)
	}

	motorsCmd.Flags().IntVarP(&motorLeft, "left", "l", 0, "Left motor speed (-100..100)")
	motorsCmd.Flags().IntVarP(&motorRight, "right", "r", 0, "Right motor speed (-100..100)")

	rgbCmd.Flags().StringVarP(&rgbLeft, "left", "l", "off", "Left headlight color")
	rgbCmd.Flags().StringVarP(&rgbRight, "right", "r", "off", "Right headlight color")
}

func runMotors(cmd *cobra.Command, args []string) error {
	driver, bus, err := OpenActuator(cfg.I2C, dryRun)
	if err != nil {
		return err
	}
	defer bus.Close()

	if err := driver.SetMotors(motorLeft, motorRight); err != nil {
		return err
	}
	fmt.Printf("Motors set: L=%d R=%d (wire %d/%d)\n",
		motorLeft, motorRight, cutebot.EncodeSpeed(motorLeft), cutebot.EncodeSpeed(motorRight))
	return nil
}

func runRGB(cmd *cobra.Command, args []string) error {
	left, err := cutebot.ParseColor(rgbLeft)
	if err != nil {
		return err
	}
	right, err := cutebot.ParseColor(rgbRight)
	if err != nil {
		return err
	}

	driver, bus, err := OpenActuator(cfg.I2C, dryRun)
	if err != nil {
		return err
	}
	defer bus.Close()

	if err := driver.SetRGB(left, right); err != nil {
		return err
	}
	fmt.Printf("Headlights set: left=%s right=%s\n", left, right)
	return nil
}

func runStop(cmd *cobra.Command, args []string) error {
	driver, bus, err := OpenActuator(cfg.I2C, dryRun)
	if err != nil {
		return err
	}
	defer bus.Close()

	if err := driver.Stop(); err != nil {
		return err
	}
	fmt.Printf("Motors stopped\n")
	return nil
}
