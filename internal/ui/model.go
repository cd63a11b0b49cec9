// Package ui is the full-screen terminal surface: a live camera preview, a
// bottom status overlay, short toasts and double-click to read.
//
// All state lives in the bubbletea Model and changes only inside Update,
// which makes the event loop the UI goroutine. Other goroutines reach it
// through a Bridge.
package ui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ironsheep/smart-ocr/internal/gesture"
)

// ToastDuration is how long a toast stays on screen.
const ToastDuration = 2 * time.Second

// quitDelay keeps a final notice readable before the program exits.
const quitDelay = 1500 * time.Millisecond

// Controller is what the UI drives.
type Controller interface {
	Start(ctx context.Context)
	ReadAloud()
	Done() <-chan struct{}
}

type toastExpiredMsg struct{ id int }

type doneMsg struct{}

// Options configures NewModel.
type Options struct {
	PreviewLength int
	ShowPreview   bool
	Styles        Styles
	Gesture       gesture.Config
	// Listening reports whether voice commands are active. May be nil.
	Listening func() bool
}

// Model is the bubbletea model for the main screen.
type Model struct {
	ctx        context.Context
	controller Controller
	preview    *Preview
	opts       Options
	detector   *gesture.DoubleTapDetector
	spinner    spinner.Model
	now        func() time.Time

	width, height int
	status        string
	toast         string
	toastID       int
	frame         string
}

// NewModel creates the main screen. preview may be nil.
func NewModel(ctx context.Context, c Controller, preview *Preview, opts Options) Model {
	if opts.PreviewLength <= 0 {
		opts.PreviewLength = DefaultPreviewLength
	}
	if opts.Gesture == (gesture.Config{}) {
		opts.Gesture = gesture.DefaultConfig()
	}
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = opts.Styles.Hint
	return Model{
		ctx:        ctx,
		controller: c,
		preview:    preview,
		opts:       opts,
		detector:   gesture.NewDoubleTapDetector(opts.Gesture, c.ReadAloud),
		spinner:    sp,
		now:        time.Now,
		status:     InitialStatus,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.start(), m.waitDone())
}

func (m Model) start() tea.Cmd {
	return func() tea.Msg {
		m.controller.Start(m.ctx)
		return nil
	}
}

func (m Model) waitDone() tea.Cmd {
	return func() tea.Msg {
		<-m.controller.Done()
		return doneMsg{}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case " ", "enter":
			m.controller.ReadAloud()
		}

	case tea.MouseMsg:
		if ev, ok := touchEvent(msg, m.now()); ok {
			m.detector.OnTouch(ev)
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.redraw()

	case frameMsg:
		m.redraw()

	case statusMsg:
		if line := StatusLine(msg.text, m.opts.PreviewLength); line != "" {
			m.status = line
		}

	case toastMsg:
		m.toastID++
		m.toast = msg.text
		id := m.toastID
		return m, tea.Tick(ToastDuration, func(time.Time) tea.Msg {
			return toastExpiredMsg{id: id}
		})

	case toastExpiredMsg:
		if msg.id == m.toastID {
			m.toast = ""
		}

	case dispatchMsg:
		msg.fn()

	case doneMsg:
		return m, func() tea.Msg {
			time.Sleep(quitDelay)
			return tea.Quit()
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// touchEvent maps terminal mouse input to pointer events. Only the left
// button counts as a touch.
func touchEvent(msg tea.MouseMsg, at time.Time) (gesture.TouchEvent, bool) {
	ev := gesture.TouchEvent{X: msg.X, Y: msg.Y, Time: at}
	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft {
			return ev, false
		}
		ev.Action = gesture.Down
	case tea.MouseActionRelease:
		ev.Action = gesture.Up
	case tea.MouseActionMotion:
		ev.Action = gesture.Move
	default:
		return ev, false
	}
	return ev, true
}

func (m *Model) redraw() {
	if m.preview == nil || !m.opts.ShowPreview {
		return
	}
	img := m.preview.take()
	m.frame = RenderHalfBlocks(img, m.width, m.previewRows())
}

// previewRows is the height left after the status overlay and toast line.
func (m Model) previewRows() int {
	rows := m.height - lipgloss.Height(m.statusView()) - 1
	if rows < 0 {
		return 0
	}
	return rows
}

func (m Model) statusView() string {
	line := m.status
	if m.opts.Listening != nil && m.opts.Listening() {
		line = m.spinner.View() + " " + line
	}
	st := m.opts.Styles.Status
	if m.width > 0 {
		st = st.Width(m.width)
	}
	return st.Render(line)
}

func (m Model) toastView() string {
	if m.toast == "" {
		return ""
	}
	t := m.opts.Styles.Toast.Render(m.toast)
	if m.width <= 0 {
		return t
	}
	return lipgloss.PlaceHorizontal(m.width, lipgloss.Center, t)
}

func (m Model) View() string {
	if m.width == 0 {
		return "\n  Initializing..."
	}

	frame := lipgloss.NewStyle().Height(m.previewRows()).Render(m.frame)
	return lipgloss.JoinVertical(lipgloss.Left, frame, m.toastView(), m.statusView())
}

// Status returns the current overlay label.
func (m Model) Status() string { return m.status }

// Toast returns the visible toast, or "".
func (m Model) Toast() string { return m.toast }
