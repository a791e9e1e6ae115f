// Package tui provides the Bubble Tea keyer test screen.
package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ColonelBlimp/keytrainer/internal/cw"
	"github.com/ColonelBlimp/keytrainer/internal/keyer"
)

// Detector is what the meter polls.
type Detector interface {
	Metrics() keyer.AudioMetrics
	Pattern() string
	CheckCompletion(timeout time.Duration) (keyer.Event, bool)
	Sensitivity() float64
	UpdateSensitivity(factor float64) error
	Reset()
}

// Config holds meter settings
type Config struct {
	Interval        time.Duration // poll period, 50ms
	Timeout         time.Duration // character completion timeout
	SensitivityStep float64
	MinSensitivity  float64
	MaxSensitivity  float64
	// Peak, if set, reports the dominant input frequency in Hz
	Peak func() float64
}

// DefaultConfig returns the keyer test settings
func DefaultConfig() Config {
	return Config{
		Interval:        50 * time.Millisecond,
		Timeout:         800 * time.Millisecond,
		SensitivityStep: 0.1,
		MinSensitivity:  1.1,
		MaxSensitivity:  10,
	}
}

const barWidth = 40

type tickMsg time.Time

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C89A3A"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C")).Width(12)
	downStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#52C41A"))
	upStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	levelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	overStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
	unknownStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

// Model implements the Bubble Tea keyer test meter.
type Model struct {
	det    Detector
	config Config

	metrics    keyer.AudioMetrics
	pattern    string
	peak       float64
	last       keyer.Event
	hasLast    bool
	detections int
	err        error
}

// NewModel constructs a meter model
func NewModel(det Detector, cfg Config) *Model {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.SensitivityStep <= 0 {
		cfg.SensitivityStep = DefaultConfig().SensitivityStep
	}
	return &Model{det: det, config: cfg}
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.config.Interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.tick()
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.poll()
		return m, m.tick()
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "+", "=":
			m.adjust(m.config.SensitivityStep)
		case "-", "_":
			m.adjust(-m.config.SensitivityStep)
		case "r":
			m.det.Reset()
			m.hasLast = false
			m.detections = 0
		}
		return m, nil
	default:
		return m, nil
	}
}

func (m *Model) poll() {
	m.metrics = m.det.Metrics()
	m.pattern = m.det.Pattern()
	if m.config.Peak != nil {
		m.peak = m.config.Peak()
	}
	if ev, ok := m.det.CheckCompletion(m.config.Timeout); ok {
		m.last = ev
		m.hasLast = true
		m.detections++
	}
}

func (m *Model) adjust(delta float64) {
	next := math.Round((m.det.Sensitivity()+delta)*10) / 10
	if m.config.MinSensitivity > 0 {
		next = math.Max(next, m.config.MinSensitivity)
	}
	if m.config.MaxSensitivity > 0 {
		next = math.Min(next, m.config.MaxSensitivity)
	}
	m.err = m.det.UpdateSensitivity(next)
}

// Detections returns how many characters have completed
func (m *Model) Detections() int {
	return m.detections
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Keyer test"))
	b.WriteString("\n\n")

	state := upStyle.Render("UP")
	if m.metrics.KeyDown {
		state = downStyle.Render("DOWN")
	}
	row(&b, "Key", state)
	row(&b, "Level", levelBar(m.metrics.CurrentRMS, m.metrics.Threshold))
	row(&b, "RMS", fmt.Sprintf("%.1f", m.metrics.CurrentRMS))
	row(&b, "Noise floor", fmt.Sprintf("%.1f", m.metrics.NoiseFloor))
	row(&b, "Threshold", fmt.Sprintf("%.1f", m.metrics.Threshold))
	row(&b, "Sensitivity", fmt.Sprintf("%.1f", m.det.Sensitivity()))
	if m.config.Peak != nil && m.peak > 0 {
		row(&b, "Tone", fmt.Sprintf("%.0f Hz", m.peak))
	}
	row(&b, "Input", cw.Display(m.pattern))

	last := "-"
	if m.hasLast {
		last = m.last.String()
		if !m.last.Recognized {
			last = unknownStyle.Render(last)
		}
	}
	row(&b, "Last", last)
	row(&b, "Detected", fmt.Sprintf("%d", m.detections))

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(unknownStyle.Render(m.err.Error()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(footerStyle.Render("+/- sensitivity  r reset  q quit"))
	b.WriteString("\n")
	return b.String()
}

func row(b *strings.Builder, label, value string) {
	b.WriteString(labelStyle.Render(label))
	b.WriteString(value)
	b.WriteString("\n")
}

// levelBar draws RMS on a scale where the threshold sits at the midpoint.
func levelBar(rms, threshold float64) string {
	if threshold <= 0 {
		return strings.Repeat("·", barWidth)
	}
	filled := int(math.Min(rms/threshold*barWidth/2, barWidth))
	filled = max(filled, 0)

	bar := strings.Repeat("█", filled) + strings.Repeat("·", barWidth-filled)
	if rms > threshold {
		return overStyle.Render(bar)
	}
	return levelStyle.Render(bar)
}
