// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/tracker/pkg/steering"
	"github.com/Thermoquad/tracker/pkg/telemetry"
	"github.com/Thermoquad/tracker/pkg/tracker"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// Loop event forwarded from programEvents
type loopEventMsg struct {
	message string
	isError bool
	verbose bool // only listed with --show-all
	silent  bool // never listed
	reading *telemetry.Reading
	command *steering.MotorCommand
	reached bool
}

// Sent once the control loop has returned
type loopDoneMsg struct {
	err error
}

type refreshMsg time.Time

// TUI model
type monitorModel struct {
	connInfo      string
	target        steering.Target
	showAll       bool
	stats         *tracker.Statistics
	eventLog      []eventLogEntry
	maxLogEntries int
	lastReading   *telemetry.Reading
	lastSeen      time.Time
	lastCommand   steering.MotorCommand
	reached       bool
	stopped       bool
	loopErr       error
	leftGauge     progress.Model
	rightGauge    progress.Model
	width         int
	height        int
	quitting      bool
	cancel        context.CancelFunc
}

func newMonitorModel(connInfo string, target steering.Target, stats *tracker.Statistics, showAll bool, cancel context.CancelFunc) monitorModel {
	return monitorModel{
		connInfo:      connInfo,
		target:        target,
		showAll:       showAll,
		stats:         stats,
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		leftGauge:     progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage(), progress.WithWidth(30)),
		rightGauge:    progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage(), progress.WithWidth(30)),
		width:         80,
		height:        24,
		cancel:        cancel,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return refreshCmd()
}

func refreshCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		case "r":
			m.stats.Reset()
			m.addLogEntry("Statistics reset", false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case refreshMsg:
		m.stats.CalculateRates()
		return m, refreshCmd()

	case loopEventMsg:
		if msg.reading != nil {
			r := *msg.reading
			m.lastReading = &r
			m.lastSeen = time.Now()
		}
		if msg.command != nil {
			m.lastCommand = *msg.command
			m.reached = msg.reached
		}
		if !msg.silent && (!msg.verbose || m.showAll) {
			m.addLogEntry(msg.message, msg.isError)
		}

	case loopDoneMsg:
		m.stopped = true
		m.loopErr = msg.err
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Control loop stopped: %v", msg.err), true)
		} else {
			m.addLogEntry("Control loop stopped", false)
		}
	}

	return m, nil
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

// gaugePercent maps a wheel speed onto the gauge, full scale at BaseSpeed
func gaugePercent(speed int8) float64 {
	p := float64(speed) / steering.BaseSpeed
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Stopping motors...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("TRACKER - MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Target: %d cm @ %d° | 'r' reset stats, 'q' quit",
		m.connInfo, m.target.Distance, m.target.Angle)))
	s.WriteString("\n\n")

	// Loop state
	switch {
	case m.stopped:
		s.WriteString(errorStyle.Render("■ Control loop stopped"))
	case m.lastReading == nil:
		s.WriteString(warningStyle.Render("⏳ Waiting for telemetry..."))
	case m.reached:
		s.WriteString(valueStyle.Render("✓ Target reached, motors stopped"))
	default:
		s.WriteString(valueStyle.Render("➜ Tracking"))
	}
	s.WriteString("\n\n")

	// Statistics
	snap := m.stats.Snapshot()
	var validPercent float64
	if snap.TotalLines > 0 {
		validPercent = float64(snap.ValidReadings) * 100.0 / float64(snap.TotalLines)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Lines:"), valueStyle.Render(fmt.Sprintf("%d", snap.TotalLines)),
		labelStyle.Render("Valid:"), valueStyle.Render(fmt.Sprintf("%d (%.1f%%)", snap.ValidReadings, validPercent)),
		labelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d", snap.Errors())),
	))

	if snap.MalformedLines > 0 || snap.Overflows > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			labelStyle.Render("Malformed:"), errorStyle.Render(fmt.Sprintf("%d", snap.MalformedLines)),
			labelStyle.Render("Overflows:"), warningStyle.Render(fmt.Sprintf("%d", snap.Overflows)),
		))
	}

	if snap.TransportFailures > 0 || snap.ChannelErrors > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			labelStyle.Render("I2C Failures:"), errorStyle.Render(fmt.Sprintf("%d", snap.TransportFailures)),
			labelStyle.Render("Serial Errors:"), errorStyle.Render(fmt.Sprintf("%d", snap.ChannelErrors)),
		))
	}

	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s",
		labelStyle.Render("Commands:"), valueStyle.Render(fmt.Sprintf("%d", snap.MotorCommands)),
		labelStyle.Render("Reached:"), valueStyle.Render(fmt.Sprintf("%d", snap.TargetsReached)),
		labelStyle.Render("Line Rate:"), valueStyle.Render(fmt.Sprintf("%.1f lines/s", snap.LineRate)),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Latest reading and command
	if m.lastReading != nil {
		r := *m.lastReading
		readingContent := strings.Builder{}
		readingContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			labelStyle.Render("Distance:"), valueStyle.Render(fmt.Sprintf("%d cm", r.Distance)),
			labelStyle.Render("Angle:"), valueStyle.Render(fmt.Sprintf("%d°", r.Angle)),
			labelStyle.Render("Age:"), headerStyle.Render(time.Since(m.lastSeen).Truncate(100*time.Millisecond).String()),
		))
		readingContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			labelStyle.Render("Off target:"), valueStyle.Render(fmt.Sprintf("%d°", steering.AngleDiff(r, m.target))),
			labelStyle.Render("Distance error:"), valueStyle.Render(fmt.Sprintf("%d%%", steering.DistanceDiffPercent(r, m.target))),
		))
		readingContent.WriteString(fmt.Sprintf("%s %s %3d\n",
			labelStyle.Render("Left: "), m.leftGauge.ViewAs(gaugePercent(m.lastCommand.Left)), m.lastCommand.Left))
		readingContent.WriteString(fmt.Sprintf("%s %s %3d",
			labelStyle.Render("Right:"), m.rightGauge.ViewAs(gaugePercent(m.lastCommand.Right)), m.lastCommand.Right))

		s.WriteString(labelStyle.Render("Latest Reading:"))
		s.WriteString("\n")
		s.WriteString(boxStyle.Render(readingContent.String()))
		s.WriteString("\n\n")
	}

	// Event log
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 18
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	width := m.width - 4
	if width < 20 {
		width = 20
	}
	s.WriteString(boxStyle.Width(width).Render(logContent.String()))

	return s.String()
}
