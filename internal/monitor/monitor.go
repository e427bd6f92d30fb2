// ABOUTME: Terminal monitor for live sound sources
// ABOUTME: Polls the service status and renders it with bubbletea
package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/Resonate-Protocol/resonate-spatial/internal/version"
	"github.com/Resonate-Protocol/resonate-spatial/pkg/spatial"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const refreshInterval = 500 * time.Millisecond

// StatusFunc returns the current service status
type StatusFunc func() spatial.Status

// Monitor manages the TUI program
type Monitor struct {
	program  *tea.Program
	quitChan chan struct{} // Signal to stop the service
}

// model is the bubbletea model for the monitor
type model struct {
	status    StatusFunc
	current   spatial.Status
	addr      string
	startTime time.Time
	now       time.Time
	quitting  bool
	quitChan  chan struct{}
}

type tickMsg time.Time

// New creates a monitor that polls status and shows addr as the bridge address
func New(status StatusFunc, addr string) *Monitor {
	quitChan := make(chan struct{}, 1)
	return &Monitor{
		program:  tea.NewProgram(newModel(status, addr, quitChan, time.Now()), tea.WithAltScreen()),
		quitChan: quitChan,
	}
}

func newModel(status StatusFunc, addr string, quitChan chan struct{}, now time.Time) model {
	return model{
		status:    status,
		current:   status(),
		addr:      addr,
		startTime: now,
		now:       now,
		quitChan:  quitChan,
	}
}

func (m model) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.quitting = true
			select {
			case m.quitChan <- struct{}{}:
			default:
			}
			return m, tea.Quit
		}

	case tickMsg:
		m.now = time.Time(msg)
		m.current = m.status()
		return m, tickEvery()
	}

	return m, nil
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("220"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))
)

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	st := m.current
	var b strings.Builder

	b.WriteString(titleStyle.Render(version.String()))
	b.WriteString("\n\n")

	field := func(name, value string) {
		b.WriteString(headerStyle.Render(name + ": "))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}

	field("Bridge", m.addr)
	field("Backend", st.Backend)
	field("Uptime", m.now.Sub(m.startTime).Round(time.Second).String())

	liveness := "waiting for start"
	if st.Armed {
		liveness = "armed, last heartbeat " + ago(m.now, st.LastHeartbeat)
	}
	field("Liveness", liveness)

	l := st.Listener
	field("Listener", fmt.Sprintf("forward %s up %s, %s model", vec(l.Forward), vec(l.Up), l.DistanceModel))
	field("Voices", fmt.Sprintf("%d (cached clips %d)", st.Voices, st.CachedClips))
	if st.Underruns > 0 {
		b.WriteString(warnStyle.Render(fmt.Sprintf("Underruns: %d", st.Underruns)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render(fmt.Sprintf("Sources (%d)", len(st.Sources))))
	b.WriteString("\n\n")

	if len(st.Sources) == 0 {
		b.WriteString(valueStyle.Render("  No sources playing"))
		b.WriteString("\n")
	} else {
		for _, src := range st.Sources {
			b.WriteString(fmt.Sprintf("  • %s", src.ID))
			b.WriteString(valueStyle.Render(fmt.Sprintf(" %s at %s gain %.2f, %s",
				src.Payload, vec(src.Position), src.Gain, ago(m.now, src.CreatedAt))))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Faint(true).Render("Press 'q' or Ctrl+C to quit"))

	return b.String()
}

func vec(v [3]float32) string {
	return fmt.Sprintf("(%.1f, %.1f, %.1f)", v[0], v[1], v[2])
}

func ago(now, t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := now.Sub(t)
	if d < 0 {
		d = 0
	}
	return d.Round(100*time.Millisecond).String() + " ago"
}

// Run shows the monitor until the user quits or Stop is called
func (mon *Monitor) Run() error {
	_, err := mon.program.Run()
	return err
}

// Stop stops the TUI
func (mon *Monitor) Stop() {
	mon.program.Quit()
}

// QuitChan returns the channel that signals when user wants to quit
func (mon *Monitor) QuitChan() <-chan struct{} {
	return mon.quitChan
}
