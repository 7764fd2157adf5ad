package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/uvcompat"
	"github.com/wippyai/uvcompat/resource"
)

const refreshInterval = 500 * time.Millisecond

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB")).
			Width(14)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type dashboardModel struct {
	ctx     context.Context
	rt      *uvcompat.Runtime
	echo    *echoServer
	err     error
	spinner spinner.Model
	stats   stats
	loaded  bool
}

type statsMsg struct {
	err   error
	stats stats
}

type refreshMsg struct{}

func newDashboardModel(ctx context.Context, rt *uvcompat.Runtime, echo *echoServer) *dashboardModel {
	return &dashboardModel{
		ctx:  ctx,
		rt:   rt,
		echo: echo,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(valueStyle),
		),
	}
}

func (m *dashboardModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch)
}

// fetch takes a snapshot on the loop goroutine.
func (m *dashboardModel) fetch() tea.Msg {
	ctx, cancel := context.WithTimeout(m.ctx, time.Second)
	defer cancel()
	var s stats
	err := m.rt.Call(ctx, func() { s = m.echo.snapshot() })
	return statsMsg{stats: s, err: err}
}

func (m *dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}

	case statsMsg:
		m.err = msg.err
		if msg.err == nil {
			m.stats = msg.stats
			m.loaded = true
		}
		return m, tea.Tick(refreshInterval, func(time.Time) tea.Msg { return refreshMsg{} })

	case refreshMsg:
		return m, m.fetch

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *dashboardModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("uvecho"))
	b.WriteString(" ")
	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(m.rt.ID().String())
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n\n")
	}
	if !m.loaded {
		b.WriteString("Waiting for the loop...\n")
		return b.String()
	}

	s := m.stats
	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}
	row("listening", fmt.Sprintf("%s:%d", s.Address, s.Port))
	row("backlog", fmt.Sprint(s.Backlog))
	row("connections", fmt.Sprint(s.Connections))
	row("accepted", fmt.Sprint(s.Accepted))
	row("accept errors", fmt.Sprint(s.Failed))
	row("echoed", formatBytes(s.Echoed))

	b.WriteString("\n")
	providers := make([]resource.Provider, 0, len(s.Handles))
	for p := range s.Handles {
		providers = append(providers, p)
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i] < providers[j] })
	for _, p := range providers {
		row(p.String(), fmt.Sprint(s.Handles[p]))
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("q quit"))
	return b.String()
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// runDashboard shows the dashboard until the user quits or ctx is done.
func runDashboard(ctx context.Context, rt *uvcompat.Runtime, echo *echoServer) error {
	p := tea.NewProgram(newDashboardModel(ctx, rt, echo), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
