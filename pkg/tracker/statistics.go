// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tracker

import (
	"fmt"
	"sync"
	"time"

	"github.com/Thermoquad/tracker/pkg/cutebot"
	"github.com/Thermoquad/tracker/pkg/steering"
	"github.com/Thermoquad/tracker/pkg/telemetry"
)

// Statistics tracks line, command and error counts. It implements Events and
// is safe to read from another goroutine through Snapshot, Errors and String.
type Statistics struct {
	mu sync.Mutex

	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalLines        uint64
	ValidReadings     uint64
	MalformedLines    uint64
	Overflows         uint64
	TargetsReached    uint64
	MotorCommands     uint64
	TransportFailures uint64
	ChannelErrors     uint64

	// Last fix
	LastReading telemetry.Reading
	LastCommand steering.MotorCommand
	HasReading  bool

	// Rates (calculated)
	LineRate  float64 // lines/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

func (s *Statistics) LEDSet(side string, c cutebot.Color) {}

func (s *Statistics) LineReceived(line telemetry.Line) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TotalLines++
	if line.Overflow {
		s.Overflows++
	}
	s.LastUpdateTime = time.Now()
}

func (s *Statistics) MalformedLine(line telemetry.Line, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.MalformedLines++
}

func (s *Statistics) ReadingParsed(r telemetry.Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ValidReadings++
	s.LastReading = r
	s.HasReading = true
}

func (s *Statistics) TargetReached(r telemetry.Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TargetsReached++
	s.MotorCommands++
	s.LastCommand = steering.Stop
}

func (s *Statistics) MotorsAdjusted(r telemetry.Reading, cmd steering.MotorCommand) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.MotorCommands++
	s.LastCommand = cmd
}

func (s *Statistics) TransportFailure(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TransportFailures++
}

func (s *Statistics) ChannelError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ChannelErrors++
}

// Errors returns the total number of errors of all kinds
func (s *Statistics) Errors() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errorCount()
}

func (s *Statistics) errorCount() uint64 {
	return s.MalformedLines + s.TransportFailures + s.ChannelErrors
}

// CalculateRates calculates line and error rates
func (s *Statistics) CalculateRates() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calculateRates()
}

func (s *Statistics) calculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.LineRate = float64(s.TotalLines) / elapsed
		s.ErrorRate = float64(s.errorCount()) / elapsed
	}
}

// Snapshot returns a copy of the counters with rates calculated
func (s *Statistics) Snapshot() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calculateRates()
	return Statistics{
		StartTime:         s.StartTime,
		LastUpdateTime:    s.LastUpdateTime,
		TotalLines:        s.TotalLines,
		ValidReadings:     s.ValidReadings,
		MalformedLines:    s.MalformedLines,
		Overflows:         s.Overflows,
		TargetsReached:    s.TargetsReached,
		MotorCommands:     s.MotorCommands,
		TransportFailures: s.TransportFailures,
		ChannelErrors:     s.ChannelErrors,
		LastReading:       s.LastReading,
		LastCommand:       s.LastCommand,
		HasReading:        s.HasReading,
		LineRate:          s.LineRate,
		ErrorRate:         s.ErrorRate,
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	snap := s.Snapshot()

	var validPercent, malformedPercent float64
	if snap.TotalLines > 0 {
		validPercent = float64(snap.ValidReadings) * 100.0 / float64(snap.TotalLines)
		malformedPercent = float64(snap.MalformedLines) * 100.0 / float64(snap.TotalLines)
	}

	elapsed := time.Since(snap.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Lines:     %8d\n", snap.TotalLines)
	result += fmt.Sprintf("Valid Readings:  %8d (%.1f%%)\n", snap.ValidReadings, validPercent)

	if snap.MalformedLines > 0 {
		result += fmt.Sprintf("Malformed Lines: %8d (%.1f%%)\n", snap.MalformedLines, malformedPercent)
	}
	if snap.Overflows > 0 {
		result += fmt.Sprintf("Overflows:       %8d\n", snap.Overflows)
	}

	result += fmt.Sprintf("Motor Commands:  %8d\n", snap.MotorCommands)
	result += fmt.Sprintf("Target Reached:  %8d\n", snap.TargetsReached)

	if snap.TransportFailures > 0 {
		result += fmt.Sprintf("I2C Failures:    %8d\n", snap.TransportFailures)
	}
	if snap.ChannelErrors > 0 {
		result += fmt.Sprintf("Serial Errors:   %8d\n", snap.ChannelErrors)
	}

	result += fmt.Sprintf("Line Rate:       %8.1f lines/sec\n", snap.LineRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", snap.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.StartTime = now
	s.LastUpdateTime = now
	s.TotalLines = 0
	s.ValidReadings = 0
	s.MalformedLines = 0
	s.Overflows = 0
	s.TargetsReached = 0
	s.MotorCommands = 0
	s.TransportFailures = 0
	s.ChannelErrors = 0
	s.LastReading = telemetry.Reading{}
	s.LastCommand = steering.MotorCommand{}
	s.HasReading = false
	s.LineRate = 0
	s.ErrorRate = 0
}
