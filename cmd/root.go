// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/Thermoquad/tracker/internal/config"
	"github.com/Thermoquad/tracker/internal/log"
	"github.com/spf13/cobra"
)

var (
	configPath string
	cfg        config.Config

	// Serial connection flags
	portName    string
	baudRate    int
	readTimeout time.Duration

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Motor board flags
	i2cBus  string
	i2cAddr uint16

	// Logging flags
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "tracker",
	Short: "Cutebot target tracking controller",
	Long: `Tracker - steers a Cutebot towards a UWB beacon.

Reads "D: <distance>, A: <angle>" telemetry lines from the beacon's serial link,
echoes every byte back, and drives the Cutebot motors over I2C so the robot
turns towards the beacon until it is within tolerance of the target.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200] [--read-timeout 100ms]
  WebSocket: --url ws://host/path [--username user]

Settings are layered: built-in defaults, then the YAML file given by --config,
then TRACKER_* environment variables, then flags set on the command line.

For WebSocket authentication, the password is read from the TRACKER_WS_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")
	rootCmd.PersistentFlags().DurationVar(&readTimeout, "read-timeout", 0, "Serial read timeout, 0 blocks until data arrives")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Motor board flags
	rootCmd.PersistentFlags().StringVar(&i2cBus, "i2c-bus", "", "I2C bus name or number, empty for the first bus found")
	rootCmd.PersistentFlags().Uint16Var(&i2cAddr, "i2c-addr", 0x10, "Cutebot I2C address")

	// Logging flags
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")
}

// loadConfig builds the effective configuration before any command runs
func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		loaded.Serial.Port = portName
	}
	if flags.Changed("baud") {
		loaded.Serial.Baud = baudRate
	}
	if flags.Changed("read-timeout") {
		loaded.Serial.ReadTimeout = readTimeout
	}
	if flags.Changed("url") {
		loaded.WebSocket.URL = wsURL
	}
	if flags.Changed("username") {
		loaded.WebSocket.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		loaded.WebSocket.NoVerify = wsNoSSLVerify
	}
	if flags.Changed("i2c-bus") {
		loaded.I2C.Bus = i2cBus
	}
	if flags.Changed("i2c-addr") {
		loaded.I2C.Address = i2cAddr
	}
	if flags.Changed("log-level") {
		loaded.Log.Level = logLevel
	}
	if flags.Changed("log-format") {
		loaded.Log.Format = logFormat
	}

	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cfg = loaded
	log.Init(cfg.Log.Level, cfg.Log.Format)
	log.Debug("configuration loaded", "file", configPath, "port", cfg.Serial.Port, "url", cfg.WebSocket.URL, "i2c_bus", cfg.I2C.Bus)
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
