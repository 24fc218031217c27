// Package tui provides the interactive sync monitor: a live view of
// network state, sync progress, and the summary retry queue.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/baisethomas/tabletnotes-sync/internal/adapters/driven/notify"
	"github.com/baisethomas/tabletnotes-sync/internal/adapters/driving/tui/styles"
	"github.com/baisethomas/tabletnotes-sync/internal/core/domain"
	"github.com/baisethomas/tabletnotes-sync/internal/core/ports/driven"
	"github.com/baisethomas/tabletnotes-sync/internal/core/ports/driving"
)

// refreshInterval is how often the monitor polls service state.
const refreshInterval = time.Second

// eventLogSize caps the visible event history.
const eventLogSize = 8

// Ports are the services the monitor observes and drives.
type Ports struct {
	Sync    driving.SyncOrchestrator
	Queue   driving.SummaryQueue
	Netmon  driven.NetworkMonitor
	Events  <-chan notify.Event
	Sermons driven.SermonStore
	UserID  string
}

// Messages.
type (
	tickMsg     time.Time
	eventMsg    notify.Event
	syncDoneMsg struct{ err error }
)

// Monitor is the bubbletea model for the sync monitor.
type Monitor struct {
	ports  Ports
	styles *styles.Styles

	spinner spinner.Model
	width   int

	network      domain.NetworkState
	status       driving.SyncStatus
	queueDepth   int
	pendingCount int
	events       []string
	syncing      bool
	lastMessage  string
}

// NewMonitor creates the sync monitor model.
func NewMonitor(ports Ports) *Monitor {
	st := styles.DefaultStyles()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(st.Theme().Primary)

	return &Monitor{
		ports:   ports,
		styles:  st,
		spinner: sp,
		network: domain.NetworkDisconnected,
	}
}

// Init starts the refresh loop.
func (m *Monitor) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.tick(), m.waitForEvent())
}

func (m *Monitor) tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Monitor) waitForEvent() tea.Cmd {
	if m.ports.Events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-m.ports.Events
		if !ok {
			return nil
		}
		return eventMsg(ev)
	}
}

// Update handles messages.
func (m *Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "s":
			if !m.syncing {
				m.syncing = true
				m.lastMessage = "Sync started"
				return m, m.startSync()
			}
		case "p":
			m.lastMessage = "Draining summary queue"
			return m, m.drainQueue()
		}
		return m, nil

	case tickMsg:
		m.refresh()
		return m, m.tick()

	case eventMsg:
		m.pushEvent(fmt.Sprintf("%s  %s (%s)",
			time.Now().Format("15:04:05"), msg.Kind, msg.SermonID))
		return m, m.waitForEvent()

	case syncDoneMsg:
		m.syncing = false
		if msg.err != nil {
			m.lastMessage = "Sync failed: " + msg.err.Error()
		} else {
			m.lastMessage = "Sync complete"
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Monitor) startSync() tea.Cmd {
	return func() tea.Msg {
		return syncDoneMsg{err: m.ports.Sync.SyncAll(context.Background())}
	}
}

func (m *Monitor) drainQueue() tea.Cmd {
	return func() tea.Msg {
		return syncDoneMsg{err: m.ports.Queue.Process(context.Background())}
	}
}

// refresh polls the observed services.
func (m *Monitor) refresh() {
	if m.ports.Netmon != nil {
		m.network = m.ports.Netmon.Current()
	}
	if m.ports.Sync != nil {
		m.status = m.ports.Sync.Status()
		m.syncing = m.status.Running || m.syncing
		if !m.status.Running {
			m.syncing = false
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), refreshInterval)
	defer cancel()
	if m.ports.Queue != nil {
		if jobs, err := m.ports.Queue.Jobs(ctx); err == nil {
			m.queueDepth = len(jobs)
		}
	}
	if m.ports.Sermons != nil && m.ports.UserID != "" {
		if pending, err := m.ports.Sermons.ListNeedingSync(ctx, m.ports.UserID); err == nil {
			m.pendingCount = len(pending)
		}
	}
}

func (m *Monitor) pushEvent(line string) {
	m.events = append(m.events, line)
	if len(m.events) > eventLogSize {
		m.events = m.events[len(m.events)-eventLogSize:]
	}
}

// View renders the monitor.
func (m *Monitor) View() string {
	s := m.styles

	title := s.Title.Render("TabletNotes Sync")

	network := s.Normal.Render("Network   ")
	switch m.network {
	case domain.NetworkConnected:
		network += s.Success.Render("connected")
	case domain.NetworkExpensive:
		network += s.Warning.Render("metered")
	default:
		network += s.Error.Render("offline")
	}

	syncLine := s.Normal.Render("Sync      ")
	switch {
	case m.syncing:
		syncLine += m.spinner.View() + s.Normal.Render(
			fmt.Sprintf(" pushed %d, pulled %d", m.status.Pushed, m.status.Pulled))
	case m.status.LastError != "":
		syncLine += s.Error.Render("error: " + m.status.LastError)
	default:
		syncLine += s.Muted.Render(
			fmt.Sprintf("idle (last: pushed %d, pulled %d)", m.status.Pushed, m.status.Pulled))
	}

	queueLine := s.Normal.Render("Queue     ") +
		s.Normal.Render(fmt.Sprintf("%d summary job(s)", m.queueDepth))
	localLine := s.Normal.Render("Unpushed  ") +
		s.Normal.Render(fmt.Sprintf("%d sermon(s)", m.pendingCount))

	body := lipgloss.JoinVertical(lipgloss.Left,
		title, "", network, syncLine, queueLine, localLine)

	if len(m.events) > 0 {
		body = lipgloss.JoinVertical(lipgloss.Left,
			body, "", s.Subtitle.Render("Events"))
		for _, ev := range m.events {
			body = lipgloss.JoinVertical(lipgloss.Left, body, s.Muted.Render("  "+ev))
		}
	}

	if m.lastMessage != "" {
		body = lipgloss.JoinVertical(lipgloss.Left, body, "", s.Muted.Render(m.lastMessage))
	}

	help := s.Help.Render("s sync · p process queue · q quit")
	return s.Border.Padding(1, 2).Render(body) + "\n" + help + "\n"
}
