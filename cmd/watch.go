// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Forecourt Systems

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/forecourt/dartline/internal/bus"
	"github.com/forecourt/dartline/internal/registry"
	"github.com/forecourt/dartline/pkg/mkr5"
)

var watchInterval int

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Continuously scan the bus and show pump state live",
	Long: `Rescans the pump address space on a fixed interval and renders the
registry as a live terminal display. Falls back to plain line output
when stdout is not a terminal, so it can feed a logger.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().IntVarP(&watchInterval, "interval", "i", 5, "Seconds between scans")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchInterval < 1 {
		watchInterval = 1
	}

	session, desc, err := openSession()
	if err != nil {
		return err
	}
	defer session.Close()

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return watchPlain(session, desc)
	}

	m := initialWatchModel(session, desc)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

// watchPlain is the non-TTY fallback: one summary line per scan.
func watchPlain(session *bus.Session, desc string) error {
	log.Printf("[watch] %s, scanning every %ds", desc, watchInterval)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(time.Duration(watchInterval) * time.Second)
	defer ticker.Stop()

	for {
		records, err := session.Scan(ctx)
		if err != nil {
			return err
		}
		for _, rec := range records {
			if rec.Online && rec.Status != nil {
				log.Printf("[watch] 0x%02X %s %s", rec.Address, rec.Status.Label, statusFlags(*rec.Status))
			}
		}
		log.Printf("[watch] %s", session.Statistics())

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

//////////////////////////////////////////////////////////////
// TUI model
//////////////////////////////////////////////////////////////

// pumpItem adapts a registry record to the device list.
type pumpItem struct {
	rec registry.PumpRecord
}

// Implement list.Item interface
func (p pumpItem) Title() string {
	if p.rec.Online {
		return fmt.Sprintf("Pump 0x%02X", p.rec.Address)
	}
	return fmt.Sprintf("Pump 0x%02X (offline)", p.rec.Address)
}

func (p pumpItem) Description() string {
	if p.rec.Status == nil {
		return fmt.Sprintf("no contact, %d failures", p.rec.Failures)
	}
	return fmt.Sprintf("%s | %s", p.rec.Status.Label, statusFlags(*p.rec.Status))
}

func (p pumpItem) FilterValue() string { return fmt.Sprintf("%02X", p.rec.Address) }

type watchModel struct {
	session  *bus.Session
	connInfo string

	pumpList list.Model
	records  []registry.PumpRecord
	stats    mkr5.StatisticsSnapshot

	scanning  bool
	lastScan  time.Time
	lastError error

	width    int
	height   int
	quitting bool
}

// Messages
type watchTickMsg time.Time
type scanDoneMsg struct {
	records []registry.PumpRecord
	err     error
}

func initialWatchModel(session *bus.Session, connInfo string) watchModel {
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	pumpList := list.New([]list.Item{}, delegate, 40, 20)
	pumpList.Title = "Pumps"
	pumpList.SetShowStatusBar(false)
	pumpList.SetShowHelp(false)
	pumpList.SetFilteringEnabled(false)

	return watchModel{
		session:  session,
		connInfo: connInfo,
		pumpList: pumpList,
		width:    80,
		height:   24,
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(watchTickCmd(), m.scanBus())
}

func watchTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return watchTickMsg(t)
	})
}

// scanBus runs one full address space walk off the UI goroutine.
func (m watchModel) scanBus() tea.Cmd {
	session := m.session
	return func() tea.Msg {
		records, err := session.Scan(context.Background())
		return scanDoneMsg{records: records, err: err}
	}
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			if !m.scanning {
				m.scanning = true
				return m, m.scanBus()
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.pumpList.SetSize(msg.Width-4, msg.Height-10)

	case watchTickMsg:
		m.stats = m.session.Statistics().Snapshot()
		var cmds []tea.Cmd
		cmds = append(cmds, watchTickCmd())
		if !m.scanning && time.Since(m.lastScan) >= time.Duration(watchInterval)*time.Second {
			m.scanning = true
			cmds = append(cmds, m.scanBus())
		}
		return m, tea.Batch(cmds...)

	case scanDoneMsg:
		m.scanning = false
		m.lastScan = time.Now()
		m.lastError = msg.err
		if msg.records != nil {
			m.records = msg.records
			items := make([]list.Item, 0, len(msg.records))
			for _, rec := range msg.records {
				if rec.Online || rec.Status != nil {
					items = append(items, pumpItem{rec: rec})
				}
			}
			m.pumpList.SetItems(items)
		}
	}

	var cmd tea.Cmd
	m.pumpList, cmd = m.pumpList.Update(msg)
	return m, cmd
}

func (m watchModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
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

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("DARTLINE - PUMP MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | every %ds | 'r' rescan, 'q' quit", m.connInfo, watchInterval)))
	s.WriteString("\n\n")

	online := 0
	for _, rec := range m.records {
		if rec.Online {
			online++
		}
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Online:"), valueStyle.Render(fmt.Sprintf("%d/%d", online, mkr5.MaxPumps)),
		labelStyle.Render("Sent:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.FramesSent)),
		labelStyle.Render("Valid:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.ValidFrames)),
	))
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s",
		labelStyle.Render("CRC errors:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.CRCErrors)),
		labelStyle.Render("Timeouts:"), headerStyle.Render(fmt.Sprintf("%d", m.stats.Timeouts)),
		labelStyle.Render("Echo suppressed:"), headerStyle.Render(fmt.Sprintf("%d", m.stats.EchoSuppressed)),
	))
	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	switch {
	case m.scanning:
		s.WriteString(headerStyle.Render("Scanning..."))
	case m.lastError != nil:
		s.WriteString(errorStyle.Render(fmt.Sprintf("Scan failed: %v", m.lastError)))
	case !m.lastScan.IsZero():
		s.WriteString(headerStyle.Render(fmt.Sprintf("Last scan %s", m.lastScan.Format("15:04:05"))))
	}
	s.WriteString("\n\n")

	if len(m.pumpList.Items()) == 0 {
		s.WriteString(headerStyle.Render("  (no pumps seen yet)"))
	} else {
		s.WriteString(m.pumpList.View())
	}

	return s.String()
}
