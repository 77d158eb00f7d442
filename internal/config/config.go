// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads tracker settings from defaults, an optional YAML file
// and TRACKER_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/tracker/pkg/cutebot"
	"github.com/Thermoquad/tracker/pkg/steering"
	"github.com/Thermoquad/tracker/pkg/telemetry"
	"github.com/Thermoquad/tracker/pkg/tracker"
	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable name
const EnvPrefix = "TRACKER_"

// Serial configures the telemetry serial port
type Serial struct {
	Port        string        `yaml:"port" env:"PORT"`
	Baud        int           `yaml:"baud" env:"BAUD"`
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
}

// WebSocket configures the optional WebSocket telemetry bridge
type WebSocket struct {
	URL      string `yaml:"url" env:"WS_URL"`
	Username string `yaml:"username" env:"WS_USERNAME"`
	NoVerify bool   `yaml:"no_ssl_verify" env:"WS_NO_SSL_VERIFY"`
	Password string `yaml:"-" env:"WS_PASSWORD"`
}

// I2C configures the motor board bus
type I2C struct {
	Bus     string `yaml:"bus" env:"I2C_BUS"`
	Address uint16 `yaml:"address" env:"I2C_ADDRESS"`
}

// Target mirrors steering.Target with file and environment names
type Target struct {
	Distance                 uint16 `yaml:"distance" env:"TARGET_DISTANCE"`
	Angle                    int16  `yaml:"angle" env:"TARGET_ANGLE"`
	AngleTolerance           uint16 `yaml:"angle_tolerance" env:"TARGET_ANGLE_TOLERANCE"`
	DistanceTolerancePercent uint16 `yaml:"distance_tolerance_percent" env:"TARGET_DISTANCE_TOLERANCE"`
}

// LEDs holds the boot colors as names or hex strings
type LEDs struct {
	Left  string `yaml:"left" env:"LED_LEFT"`
	Right string `yaml:"right" env:"LED_RIGHT"`
}

// Log configures the process logger
type Log struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// Config is the complete tracker configuration
type Config struct {
	Serial       Serial        `yaml:"serial"`
	WebSocket    WebSocket     `yaml:"websocket"`
	I2C          I2C           `yaml:"i2c"`
	Target       Target        `yaml:"target"`
	LEDs         LEDs          `yaml:"leds"`
	Log          Log           `yaml:"log"`
	LineCapacity int           `yaml:"line_capacity" env:"LINE_CAPACITY"`
	PollInterval time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
	Record       string        `yaml:"record" env:"RECORD"`
}

// Default returns the built-in configuration
func Default() Config {
	opts := tracker.DefaultOptions()
	return Config{
		Serial: Serial{
			Baud: 115200,
		},
		I2C: I2C{
			Address: cutebot.Address,
		},
		Target: Target(steering.DefaultTarget),
		LEDs: LEDs{
			Left:  "red",
			Right: "blue",
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
		LineCapacity: telemetry.DefaultLineCapacity,
		PollInterval: opts.PollInterval,
	}
}

// Load builds a Config from the defaults, the YAML file at path (skipped
// when path is empty) and the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would make the loop misbehave
func (c Config) Validate() error {
	var errs []error
	if c.LineCapacity < 2 {
		errs = append(errs, fmt.Errorf("line_capacity must be at least 2, got %d", c.LineCapacity))
	}
	if c.PollInterval < 0 {
		errs = append(errs, fmt.Errorf("poll_interval must not be negative, got %s", c.PollInterval))
	}
	if c.Serial.ReadTimeout < 0 {
		errs = append(errs, fmt.Errorf("serial read_timeout must not be negative, got %s", c.Serial.ReadTimeout))
	}
	if c.I2C.Address > 0x7F {
		errs = append(errs, fmt.Errorf("i2c address 0x%X is not a 7-bit address", c.I2C.Address))
	}
	if _, err := cutebot.ParseColor(c.LEDs.Left); err != nil {
		errs = append(errs, fmt.Errorf("leds.left: %w", err))
	}
	if _, err := cutebot.ParseColor(c.LEDs.Right); err != nil {
		errs = append(errs, fmt.Errorf("leds.right: %w", err))
	}
	return errors.Join(errs...)
}

// SteeringTarget returns the configured target
func (c Config) SteeringTarget() steering.Target {
	return steering.Target(c.Target)
}

// LoopOptions converts the configuration into control loop options.
// Colors must already have passed Validate.
func (c Config) LoopOptions() tracker.Options {
	opts := tracker.DefaultOptions()
	opts.Target = c.SteeringTarget()
	opts.LineCapacity = c.LineCapacity
	opts.PollInterval = c.PollInterval
	if left, err := cutebot.ParseColor(c.LEDs.Left); err == nil {
		opts.LeftColor = left
	}
	if right, err := cutebot.ParseColor(c.LEDs.Right); err == nil {
		opts.RightColor = right
	}
	return opts
}
