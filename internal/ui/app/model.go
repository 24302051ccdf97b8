package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"studypomo/internal/modules/pomodoro/domain"
	"studypomo/internal/modules/pomodoro/dto"
	sessiondto "studypomo/internal/modules/session/dto"
	"studypomo/internal/ui/components"
	"studypomo/internal/ui/theme"
)

// ─── ports ───────────────────────────────────────────────────────────────────

type pomodoroPort interface {
	Start(ctx context.Context, kind string, minutes int, subjectAreaID string) (dto.StartOutput, error)
	TogglePause(ctx context.Context) bool
	Skip(ctx context.Context) bool
	Stop(ctx context.Context, notes string) (dto.StopOutput, error)
	Restore(ctx context.Context) (dto.RestoreOutput, error)
	Status(ctx context.Context) dto.StatusOutput
	StartPendingNow(ctx context.Context) (bool, error)
	CancelAutoStart(ctx context.Context) bool
	ResetCycle(ctx context.Context)
	CompleteCycle(ctx context.Context) dto.CycleSummaryOutput
	Events(buffer int) <-chan dto.Event
}

type sessionPort interface {
	List(ctx context.Context, limit int, status string) ([]sessiondto.SessionOutput, error)
}

// WatchFunc reports persisted state changes until ctx is done.
type WatchFunc func(ctx context.Context, onChange func(key string)) error

const recentLimit = 8

// ─── async messages ───────────────────────────────────────────────────────────

type eventMsg struct{ event dto.Event }

type eventsClosedMsg struct{}

type stateChangedMsg struct{ key string }

type watchFailedMsg struct{ err error }

type recentLoadedMsg struct {
	sessions []sessiondto.SessionOutput
	err      error
}

type actionMsg struct {
	status string
	err    error
}

type restoredMsg struct {
	out dto.RestoreOutput
	err error
}

// ─── key bindings ─────────────────────────────────────────────────────────────

type keyMap struct {
	Focus      key.Binding
	ShortBreak key.Binding
	LongBreak  key.Binding
	Pause      key.Binding
	Skip       key.Binding
	Stop       key.Binding
	StartNow   key.Binding
	Cancel     key.Binding
	Reset      key.Binding
	Palette    key.Binding
	Help       key.Binding
	Quit       key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Focus:      key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "focus")),
		ShortBreak: key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "short break")),
		LongBreak:  key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "long break")),
		Pause:      key.NewBinding(key.WithKeys(" ", "p"), key.WithHelp("space", "pause/resume")),
		Skip:       key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "skip")),
		Stop:       key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "stop")),
		StartNow:   key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "start next now")),
		Cancel:     key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "cancel auto start")),
		Reset:      key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reset cycle")),
		Palette:    key.NewBinding(key.WithKeys(":"), key.WithHelp(":", "palette")),
		Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:       key.NewBinding(key.WithKeys("ctrl+c", "q"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Focus, k.Pause, k.Stop, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Focus, k.ShortBreak, k.LongBreak},
		{k.Pause, k.Skip, k.Stop},
		{k.StartNow, k.Cancel, k.Reset},
		{k.Palette, k.Help, k.Quit},
	}
}

// ─── model ───────────────────────────────────────────────────────────────────

// Model is the root Bubble Tea model: a countdown pane, the cycle summary and
// the most recent session records. Timer state is read from the pomodoro port;
// the model only renders it.
type Model struct {
	vaultPath string

	pomodoro pomodoroPort
	sessions sessionPort
	watch    WatchFunc
	events   <-chan dto.Event
	changes  chan string
	ctx      context.Context
	cancel   context.CancelFunc

	keys     keyMap
	help     help.Model
	showHelp bool
	palette  components.Palette
	bar      progress.Model

	snapshot dto.StatusOutput
	recent   []sessiondto.SessionOutput
	status   string
	width    int
	height   int
}

func NewModel(vaultPath string, pomodoro pomodoroPort, sessions sessionPort, watch WatchFunc) Model {
	ctx, cancel := context.WithCancel(context.Background())
	return Model{
		vaultPath: vaultPath,
		pomodoro:  pomodoro,
		sessions:  sessions,
		watch:     watch,
		events:    pomodoro.Events(64),
		changes:   make(chan string, 8),
		ctx:       ctx,
		cancel:    cancel,
		keys:      defaultKeys(),
		help:      help.New(),
		palette:   components.NewPalette(),
		bar:       progress.New(progress.WithSolidFill(string(theme.Peach)), progress.WithoutPercentage()),
		snapshot:  pomodoro.Status(ctx),
		status:    "ready",
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.waitForEvent(),
		m.loadRecentCmd(),
		m.startWatchCmd(),
		m.waitForChange(),
	)
}

// ─── update ───────────────────────────────────────────────────────────────────

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// The palette intercepts all input while open.
	if m.palette.Visible() {
		var cmd tea.Cmd
		m.palette, cmd = m.palette.Update(msg)
		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.palette.SetWidth(min(m.width-4, 80))
		m.help.Width = m.width
		m.bar.Width = max(min(m.width-8, 60), 10)

	case eventMsg:
		m.applyEvent(msg.event)
		cmds := []tea.Cmd{m.waitForEvent()}
		switch msg.event.Type {
		case dto.EventSessionCompleted, dto.EventSessionInterrupted, dto.EventSessionStarted:
			cmds = append(cmds, m.loadRecentCmd())
		}
		return m, tea.Batch(cmds...)

	case eventsClosedMsg:
		m.status = "timer closed"

	case stateChangedMsg:
		return m, tea.Batch(m.waitForChange(), m.reloadCmd(msg.key))

	case watchFailedMsg:
		m.status = "state watch: " + msg.err.Error()

	case restoredMsg:
		if msg.err != nil {
			m.status = "reload failed: " + msg.err.Error()
		} else if msg.out.Restored {
			m.status = "timer picked up from another process"
		}
		m.refresh()

	case recentLoadedMsg:
		if msg.err != nil {
			m.status = "sessions: " + msg.err.Error()
		} else {
			m.recent = msg.sessions
		}

	case actionMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
		} else if msg.status != "" {
			m.status = msg.status
		}
		m.refresh()

	case components.PaletteSubmitMsg:
		return m.executePalette(msg.Input)

	case components.PaletteCancelMsg:
		m.status = "ready"

	case tea.KeyMsg:
		if m.showHelp {
			if msg.String() == "?" || msg.String() == "esc" {
				m.showHelp = false
			}
			return m, nil
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancel()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
	case key.Matches(msg, m.keys.Palette):
		return m, m.palette.Open()
	case key.Matches(msg, m.keys.Focus):
		return m, m.startCmd(string(domain.SessionFocus), 0, "")
	case key.Matches(msg, m.keys.ShortBreak):
		return m, m.startCmd(string(domain.SessionShortBreak), 0, "")
	case key.Matches(msg, m.keys.LongBreak):
		return m, m.startCmd(string(domain.SessionLongBreak), 0, "")
	case key.Matches(msg, m.keys.Pause):
		if !m.pomodoro.TogglePause(m.ctx) {
			m.status = "nothing to pause"
		}
		m.refresh()
	case key.Matches(msg, m.keys.Skip):
		if !m.pomodoro.Skip(m.ctx) {
			m.status = "nothing to skip"
		}
		m.refresh()
	case key.Matches(msg, m.keys.Stop):
		return m, m.stopCmd("")
	case key.Matches(msg, m.keys.StartNow):
		return m, m.startPendingCmd()
	case key.Matches(msg, m.keys.Cancel):
		if m.pomodoro.CancelAutoStart(m.ctx) {
			m.status = "auto start cancelled"
		}
		m.refresh()
	case key.Matches(msg, m.keys.Reset):
		m.pomodoro.ResetCycle(m.ctx)
		m.status = "cycle reset"
		m.refresh()
	}
	return m, nil
}

func (m *Model) applyEvent(event dto.Event) {
	switch event.Type {
	case dto.EventTick:
		m.snapshot.Remaining = event.Remaining
		return
	case dto.EventSessionStarted:
		m.status = fmt.Sprintf("%s started", label(event.SessionType))
		if event.AutoStarted {
			m.status += " automatically"
		}
	case dto.EventSessionPaused:
		m.status = "paused"
	case dto.EventSessionResumed:
		m.status = "resumed"
	case dto.EventSessionCompleted:
		m.status = fmt.Sprintf("%s complete, next: %s", label(event.SessionType), label(event.Next))
	case dto.EventSessionInterrupted:
		m.status = fmt.Sprintf("%s stopped", label(event.SessionType))
	case dto.EventAutoStartScheduled:
		m.status = fmt.Sprintf("%s starts shortly (a: now, c: cancel)", label(event.Next))
	case dto.EventAutoStartCancelled:
		m.status = "auto start cancelled"
	case dto.EventAutoStartFailed, dto.EventError:
		m.status = "error: " + event.Message
	}
	m.refresh()
}

func (m *Model) refresh() {
	m.snapshot = m.pomodoro.Status(m.ctx)
}

// ─── view ────────────────────────────────────────────────────────────────────

func (m Model) View() string {
	header := m.renderHeader()
	statusBar := m.renderStatusBar()
	contentH := max(m.height-lipgloss.Height(header)-lipgloss.Height(statusBar), 1)

	var content string
	switch {
	case m.showHelp:
		content = lipgloss.NewStyle().Width(m.width).Height(contentH).Render(m.help.View(m.keys))
	case m.palette.Visible():
		content = lipgloss.Place(m.width, contentH, lipgloss.Center, lipgloss.Center, m.palette.View())
	default:
		timer := theme.PaneActive.Render(m.renderTimer())
		side := theme.Pane.Render(m.renderCycle() + "\n\n" + m.renderRecent())
		content = lipgloss.JoinHorizontal(lipgloss.Top, timer, " ", side)
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
}

func (m Model) renderHeader() string {
	bar := theme.Title.Render("studypomo") + theme.Muted.Render("  "+m.vaultPath)
	return lipgloss.NewStyle().Background(theme.Mantle).Width(m.width).Render(bar) + "\n"
}

func (m Model) renderTimer() string {
	s := m.snapshot
	var sb strings.Builder
	kind := domain.SessionType("")
	planned := 0
	if s.Session != nil {
		kind = s.Session.Type
		planned = s.Session.PlannedDuration * 60
	}
	sb.WriteString(theme.SessionStyle(string(kind)).Render(strings.ToUpper(label(kind))) + "\n\n")
	sb.WriteString(theme.Clock.Render(formatClock(s.Remaining)) + "  " + theme.Muted.Render(string(s.State)) + "\n\n")
	sb.WriteString(m.bar.ViewAs(elapsedRatio(planned, s.Remaining)) + "\n")
	if s.AutoStart.Pending {
		wait := time.Duration(s.AutoStart.RemainingMs) * time.Millisecond
		sb.WriteString("\n" + theme.Hot.Render(fmt.Sprintf("next: %s (%d min) in %s", label(s.AutoStart.Type), s.AutoStart.DurationMinutes, wait.Round(time.Second))))
	}
	return sb.String()
}

func (m Model) renderCycle() string {
	c := m.snapshot.Cycle
	var sb strings.Builder
	sb.WriteString(theme.Title.Render("Cycle") + "\n")
	sb.WriteString(cycleDots(c.CompletedFocusSessions) + "\n")
	sb.WriteString(theme.Muted.Render(fmt.Sprintf("focus done: %d  cycles: %d", c.CompletedFocusSessions, c.CycleHistoryLength)) + "\n")
	next := label(c.NextSessionType)
	if c.IsLongBreakTime {
		next += " (earned)"
	}
	sb.WriteString(theme.Muted.Render("up next: " + next))
	return sb.String()
}

func (m Model) renderRecent() string {
	var sb strings.Builder
	sb.WriteString(theme.Title.Render("Recent sessions") + "\n")
	if len(m.recent) == 0 {
		sb.WriteString(theme.Muted.Render("none yet"))
		return sb.String()
	}
	for _, s := range m.recent {
		line := fmt.Sprintf("%s %-11s %-11s %2d/%d min", s.StartedAt.Local().Format("Jan 02 15:04"), s.SessionType, s.Status, s.ActualDuration, s.PlannedDuration)
		sb.WriteString(theme.Muted.Render(line) + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (m Model) renderStatusBar() string {
	left := m.status
	if m.snapshot.State == domain.TimerRunning && m.snapshot.Session != nil {
		left = theme.Hot.Render("● "+label(m.snapshot.Session.Type)) + "  " + left
	}
	right := theme.Muted.Render("?:help  :::palette  q:quit")
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	bar := left + strings.Repeat(" ", gap) + right
	return "\n" + lipgloss.NewStyle().Background(theme.Mantle).Width(m.width).Render(bar)
}

// ─── palette execution ────────────────────────────────────────────────────────

func (m Model) executePalette(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return m, nil
	}

	switch parts[0] {
	case "start":
		kind := string(domain.SessionFocus)
		if len(parts) >= 2 {
			kind = parts[1]
		}
		minutes := 0
		if len(parts) >= 3 {
			n, err := strconv.Atoi(parts[2])
			if err != nil || n <= 0 {
				m.status = "invalid minutes"
				return m, nil
			}
			minutes = n
		}
		subject := ""
		if len(parts) >= 4 {
			subject = parts[3]
		}
		return m, m.startCmd(kind, minutes, subject)

	case "stop":
		notes := strings.TrimSpace(strings.TrimPrefix(input, parts[0]))
		return m, m.stopCmd(notes)

	case "pause":
		m.pomodoro.TogglePause(m.ctx)
		m.refresh()

	case "skip":
		m.pomodoro.Skip(m.ctx)
		m.refresh()

	case "autostart:now":
		return m, m.startPendingCmd()

	case "autostart:cancel":
		m.pomodoro.CancelAutoStart(m.ctx)
		m.refresh()

	case "cycle:reset":
		m.pomodoro.ResetCycle(m.ctx)
		m.status = "cycle reset"
		m.refresh()

	case "cycle:complete":
		out := m.pomodoro.CompleteCycle(m.ctx)
		m.status = fmt.Sprintf("cycle archived with %d focus sessions", out.CompletedFocusSessions)
		m.refresh()

	case "sessions:refresh":
		return m, m.loadRecentCmd()

	default:
		m.status = "unknown command: " + parts[0]
	}
	return m, nil
}

// ─── async commands ───────────────────────────────────────────────────────────

func (m Model) waitForEvent() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		event, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg{event: event}
	}
}

func (m Model) waitForChange() tea.Cmd {
	changes, done := m.changes, m.ctx.Done()
	return func() tea.Msg {
		select {
		case key := <-changes:
			return stateChangedMsg{key: key}
		case <-done:
			return nil
		}
	}
}

func (m Model) startWatchCmd() tea.Cmd {
	if m.watch == nil {
		return nil
	}
	watch, changes, ctx := m.watch, m.changes, m.ctx
	return func() tea.Msg {
		err := watch(ctx, func(key string) {
			select {
			case changes <- key:
			default:
			}
		})
		if err != nil {
			return watchFailedMsg{err: err}
		}
		return nil
	}
}

// reloadCmd adopts state written by another process. A live local timer
// always wins, so only an idle engine with nothing pending reloads.
func (m Model) reloadCmd(string) tea.Cmd {
	p, ctx := m.pomodoro, m.ctx
	return func() tea.Msg {
		status := p.Status(ctx)
		if status.State != domain.TimerIdle || status.AutoStart.Pending {
			return actionMsg{}
		}
		out, err := p.Restore(ctx)
		return restoredMsg{out: out, err: err}
	}
}

func (m Model) loadRecentCmd() tea.Cmd {
	if m.sessions == nil {
		return nil
	}
	s, ctx := m.sessions, m.ctx
	return func() tea.Msg {
		out, err := s.List(ctx, recentLimit, "")
		return recentLoadedMsg{sessions: out, err: err}
	}
}

func (m Model) startCmd(kind string, minutes int, subject string) tea.Cmd {
	p, ctx := m.pomodoro, m.ctx
	return func() tea.Msg {
		out, err := p.Start(ctx, kind, minutes, subject)
		if err != nil {
			return actionMsg{err: fmt.Errorf("start failed: %w", err)}
		}
		return actionMsg{status: fmt.Sprintf("%s started (%d min)", label(out.Type), out.DurationSeconds/60)}
	}
}

func (m Model) stopCmd(notes string) tea.Cmd {
	p, ctx := m.pomodoro, m.ctx
	return func() tea.Msg {
		out, err := p.Stop(ctx, notes)
		if err != nil {
			return actionMsg{err: fmt.Errorf("stop failed: %w", err)}
		}
		return actionMsg{status: fmt.Sprintf("%s stopped after %d min", label(out.Type), out.ActualDurationMinutes)}
	}
}

func (m Model) startPendingCmd() tea.Cmd {
	p, ctx := m.pomodoro, m.ctx
	return func() tea.Msg {
		started, err := p.StartPendingNow(ctx)
		if err != nil {
			return actionMsg{err: fmt.Errorf("auto start failed: %w", err)}
		}
		if !started {
			return actionMsg{status: "nothing pending"}
		}
		return actionMsg{}
	}
}

// ─── formatting ───────────────────────────────────────────────────────────────

func label(t domain.SessionType) string {
	switch t {
	case domain.SessionFocus:
		return "focus"
	case domain.SessionShortBreak:
		return "short break"
	case domain.SessionLongBreak:
		return "long break"
	}
	return "idle"
}

func formatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

func elapsedRatio(planned, remaining int) float64 {
	if planned <= 0 {
		return 0
	}
	ratio := 1 - float64(remaining)/float64(planned)
	return min(max(ratio, 0), 1)
}

func cycleDots(done int) string {
	filled := done % domain.LongBreakEvery
	if done > 0 && filled == 0 {
		filled = domain.LongBreakEvery
	}
	return theme.Hot.Render(strings.Repeat("●", filled)) +
		theme.Muted.Render(strings.Repeat("○", domain.LongBreakEvery-filled))
}
