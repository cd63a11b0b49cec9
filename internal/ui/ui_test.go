package ui

import (
	"context"
	"image"
	"image/color"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
)

func TestStatusLine(t *testing.T) {
	long := strings.Repeat("a", 60)
	hindi := strings.Repeat("न", 55)

	tests := []struct {
		name string
		text string
		want string
	}{
		{"empty", "", ""},
		{"short", "EXIT", "Detected: EXIT..."},
		{"exactly fifty", long[:50], "Detected: " + long[:50] + "..."},
		{"long", long, "Detected: " + long[:50] + "..."},
		{"multibyte", hindi, "Detected: " + strings.Repeat("न", 50) + "..."},
	}

	for _, tt := range tests {
		if got := StatusLine(tt.text, 50); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestNewStyles_RejectsBadColour(t *testing.T) {
	if _, err := NewStyles("white", "#000000"); err == nil {
		t.Error("expected error for a named colour")
	}
	if _, err := NewStyles("#FFFFFF", "#00000080"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestRenderHalfBlocks_Shape(t *testing.T) {
	out := RenderHalfBlocks(solid(80, 40, color.White), 20, 5)
	lines := strings.Split(out, "\n")
	if len(lines) != 5 {
		t.Fatalf("rows: got %d, want 5", len(lines))
	}
	for i, line := range lines {
		if n := strings.Count(line, halfBlock); n != 20 {
			t.Errorf("row %d: got %d cells, want 20", i, n)
		}
	}
}

func TestRenderHalfBlocks_Empty(t *testing.T) {
	if RenderHalfBlocks(nil, 10, 10) != "" {
		t.Error("nil image should render nothing")
	}
	if RenderHalfBlocks(solid(4, 4, color.Black), 0, 10) != "" {
		t.Error("zero width should render nothing")
	}
}

func TestPreview_CoalescesRedraws(t *testing.T) {
	var sent int
	p := NewPreview(func(tea.Msg) { sent++ })

	a := solid(2, 2, color.White)
	b := solid(3, 3, color.Black)
	p.Render(a)
	p.Render(b)
	if sent != 1 {
		t.Errorf("redraw requests: got %d, want 1", sent)
	}
	if got := p.take(); got.Bounds().Dx() != 3 {
		t.Error("take should return the newest frame")
	}
	p.Render(a)
	if sent != 2 {
		t.Errorf("redraw requests after take: got %d, want 2", sent)
	}
}

type fakeController struct {
	mu      sync.Mutex
	reads   int
	started bool
	done    chan struct{}
}

func newFakeController() *fakeController {
	return &fakeController{done: make(chan struct{})}
}

func (c *fakeController) Start(context.Context) {
	c.mu.Lock()
	c.started = true
	c.mu.Unlock()
}

func (c *fakeController) ReadAloud() {
	c.mu.Lock()
	c.reads++
	c.mu.Unlock()
}

func (c *fakeController) Done() <-chan struct{} { return c.done }

func (c *fakeController) readCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

func newTestModel(c *fakeController) Model {
	m := NewModel(context.Background(), c, nil, Options{Styles: DefaultStyles()})
	clock := time.Unix(1700000000, 0)
	m.now = func() time.Time { return clock }
	return m
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestModel_InitialStatus(t *testing.T) {
	m := newTestModel(newFakeController())
	if m.Status() != InitialStatus {
		t.Errorf("status: got %q", m.Status())
	}
	if m.View() == "" {
		t.Error("View should not be empty")
	}
}

func TestModel_StatusUpdates(t *testing.T) {
	m := newTestModel(newFakeController())

	m, _ = update(t, m, statusMsg{text: "EXIT"})
	if m.Status() != "Detected: EXIT..." {
		t.Errorf("status: got %q", m.Status())
	}
	m, _ = update(t, m, statusMsg{text: ""})
	if m.Status() != "Detected: EXIT..." {
		t.Errorf("empty text changed the label to %q", m.Status())
	}
}

func TestModel_ToastExpires(t *testing.T) {
	m := newTestModel(newFakeController())

	m, cmd := update(t, m, toastMsg{text: "Reading..."})
	if m.Toast() != "Reading..." || cmd == nil {
		t.Fatalf("toast: got %q, cmd %v", m.Toast(), cmd)
	}
	first := m.toastID

	m, _ = update(t, m, toastMsg{text: "No text detected yet"})
	m, _ = update(t, m, toastExpiredMsg{id: first})
	if m.Toast() != "No text detected yet" {
		t.Errorf("stale expiry cleared the newer toast: %q", m.Toast())
	}
	m, _ = update(t, m, toastExpiredMsg{id: m.toastID})
	if m.Toast() != "" {
		t.Errorf("toast not cleared: %q", m.Toast())
	}
}

func TestModel_DoubleClickReads(t *testing.T) {
	c := newFakeController()
	m := newTestModel(c)
	base := time.Unix(1700000000, 0)

	click := func(m Model, ms int) Model {
		at := base.Add(time.Duration(ms) * time.Millisecond)
		m.now = func() time.Time { return at }
		m, _ = update(t, m, tea.MouseMsg{X: 5, Y: 5, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
		at = at.Add(30 * time.Millisecond)
		m, _ = update(t, m, tea.MouseMsg{X: 5, Y: 5, Action: tea.MouseActionRelease})
		return m
	}

	m = click(m, 0)
	if c.readCount() != 0 {
		t.Fatal("single click should not read")
	}
	click(m, 150)
	if c.readCount() != 1 {
		t.Errorf("reads after double click: got %d, want 1", c.readCount())
	}
}

func TestModel_RightClickIgnored(t *testing.T) {
	c := newFakeController()
	m := newTestModel(c)
	for i := 0; i < 2; i++ {
		m, _ = update(t, m, tea.MouseMsg{Action: tea.MouseActionPress, Button: tea.MouseButtonRight})
		m, _ = update(t, m, tea.MouseMsg{Action: tea.MouseActionRelease})
	}
	if c.readCount() != 0 {
		t.Errorf("right clicks read %d times", c.readCount())
	}
}

func TestModel_DispatchRunsInUpdate(t *testing.T) {
	m := newTestModel(newFakeController())
	ran := false
	update(t, m, dispatchMsg{fn: func() { ran = true }})
	if !ran {
		t.Error("dispatched function did not run")
	}
}

func TestModel_QuitKeys(t *testing.T) {
	m := newTestModel(newFakeController())
	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("ctrl+c returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("ctrl+c should quit")
	}
}

func TestModel_StatusFitsWidth(t *testing.T) {
	m := newTestModel(newFakeController())
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 40, Height: 12})
	m, _ = update(t, m, statusMsg{text: strings.Repeat("x", 200)})

	view := m.View()
	if got := len(strings.Split(view, "\n")); got != 12 {
		t.Errorf("view height: got %d lines, want 12", got)
	}
	if !strings.Contains(view, "Detected:") {
		t.Error("status overlay missing from view")
	}
}

func TestBridge_ForwardsInOrder(t *testing.T) {
	b := NewBridge()
	defer b.Close()

	got := make(chan tea.Msg, 8)
	b.SetStatus("one")
	b.Toast("two")
	b.attachFunc(func(msg tea.Msg) { got <- msg })
	b.Dispatch(func() {})

	want := []string{"status", "toast", "dispatch"}
	for i, w := range want {
		select {
		case msg := <-got:
			var kind string
			switch msg.(type) {
			case statusMsg:
				kind = "status"
			case toastMsg:
				kind = "toast"
			case dispatchMsg:
				kind = "dispatch"
			}
			if kind != w {
				t.Errorf("message %d: got %s, want %s", i, kind, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("message %d not forwarded", i)
		}
	}
}

func TestBridge_SendNeverBlocks(t *testing.T) {
	b := NewBridge()
	defer b.Close()
	block := make(chan struct{})
	b.attachFunc(func(tea.Msg) { <-block })
	defer close(block)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Toast("x")
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Send blocked on a busy event loop")
	}
}

func TestStatusLineRuneCount(t *testing.T) {
	got := StatusLine(strings.Repeat("é", 80), 50)
	body := strings.TrimSuffix(strings.TrimPrefix(got, "Detected: "), "...")
	if n := utf8.RuneCountInString(body); n != 50 {
		t.Errorf("preview runes: got %d, want 50", n)
	}
}
