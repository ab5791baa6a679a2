package viz

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/san-kum/gravtree/internal/barneshut"
	"github.com/san-kum/gravtree/internal/body"
	"github.com/san-kum/gravtree/internal/force"
	"github.com/san-kum/gravtree/internal/initcond"
	"github.com/san-kum/gravtree/internal/integrators"
	"github.com/san-kum/gravtree/internal/logger"
	"github.com/san-kum/gravtree/internal/sim"
	"github.com/san-kum/gravtree/internal/workers"
)

const blank = rune(0x2800)

func TestCanvasSetUnset(t *testing.T) {
	c := NewCanvas(4, 2)
	c.Set(0, 0)
	c.Set(3, 7)
	if c.At(0, 0) != blank|0x1 {
		t.Errorf("top-left cell = %U", c.At(0, 0))
	}
	if c.At(1, 1) != blank|0x80 {
		t.Errorf("cell (1,1) = %U", c.At(1, 1))
	}

	c.Set(-1, 0)
	c.Set(100, 100)

	c.Unset(0, 0)
	if c.At(0, 0) != blank {
		t.Errorf("unset left %U", c.At(0, 0))
	}
	c.Clear()
	if strings.Trim(c.String(), string(blank)+"\n") != "" {
		t.Error("clear left dots behind")
	}
}

func TestCanvasDrawRect(t *testing.T) {
	c := NewCanvas(4, 2)
	c.DrawRect(0, 0, 7, 7)
	for _, p := range [][2]int{{0, 0}, {7, 0}, {0, 7}, {7, 7}, {3, 0}, {0, 4}} {
		col, row := p[0]/2, p[1]/4
		if c.At(col, row) == blank {
			t.Errorf("corner/edge %v not drawn", p)
		}
	}
}

func TestViewportProject(t *testing.T) {
	c := NewCanvas(10, 5) // 20 x 20 sub-pixels
	v := Viewport{CX: 0, CY: 0, Span: 2}

	tests := []struct {
		x, y   float64
		px, py int
	}{
		{0, 0, 10, 10},
		{-1, 1, 0, 0},
		{0.5, -0.5, 15, 15},
	}
	for _, tt := range tests {
		px, py := v.Project(c, tt.x, tt.y)
		if px != tt.px || py != tt.py {
			t.Errorf("Project(%v, %v) = (%d, %d), want (%d, %d)", tt.x, tt.y, px, py, tt.px, tt.py)
		}
	}

	if z := v.Zoom(2); z.Span != 1 {
		t.Errorf("Zoom(2).Span = %v", z.Span)
	}
}

func TestFitViewport(t *testing.T) {
	bs := []*body.Body{
		body.New(0, -2, 0, 0, 0, 1, nil),
		body.New(1, 2, 1, 0, 0, 1, nil),
	}
	v := FitViewport(bs)
	if v.CX != 0 || v.CY != 0.5 {
		t.Errorf("centre = (%v, %v)", v.CX, v.CY)
	}
	if v.Span < 4 {
		t.Errorf("span %v does not cover the bodies", v.Span)
	}
	if v := FitViewport(bs[:1]); v.Span != 1 {
		t.Errorf("single body span = %v, want 1", v.Span)
	}
}

func barneshutOpts() []barneshut.Option {
	return []barneshut.Option{
		barneshut.WithPool(workers.Serial()),
		barneshut.WithLogger(logger.Discard()),
	}
}

func newTestModel(t *testing.T, calc force.Calculator) Model {
	t.Helper()
	bs := initcond.Plummer(64, 1, &body.Law{G: 1, Softening: 0.05})
	st, err := sim.NewStepper(context.Background(), calc, integrators.NewLeapfrog(), bs, 0.001)
	if err != nil {
		t.Fatal(err)
	}
	return NewModel(context.Background(), st, "plummer")
}

func update(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

func key(s string) tea.KeyMsg {
	if s == " " {
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModelTickAdvances(t *testing.T) {
	m := newTestModel(t, force.NewBarnesHut(0.5, barneshutOpts()...))
	m = update(m, TickMsg{})
	m = update(m, TickMsg{})
	if got := m.stepper.Steps(); got != 2 {
		t.Fatalf("steps after two ticks = %d", got)
	}
	if len(m.energyHistory) != 3 {
		t.Errorf("energy history = %d samples, want 3", len(m.energyHistory))
	}

	m = update(m, key(" "))
	m = update(m, TickMsg{})
	if m.stepper.Steps() != 2 {
		t.Error("paused model kept stepping")
	}
	m = update(m, key("n"))
	if m.stepper.Steps() != 3 {
		t.Error("single step while paused did not advance")
	}

	m = update(m, key(">"))
	m = update(m, key(" "))
	m = update(m, TickMsg{})
	if m.stepper.Steps() != 5 {
		t.Errorf("steps with two per tick = %d, want 5", m.stepper.Steps())
	}

	m = update(m, key("r"))
	if m.stepper.Steps() != 0 || m.stepper.Time() != 0 {
		t.Error("reset did not rewind")
	}
}

func TestModelTheta(t *testing.T) {
	bh := force.NewBarnesHut(0.5, barneshutOpts()...)
	m := newTestModel(t, bh)

	m = update(m, key("]"))
	if bh.Theta() < 0.59 || bh.Theta() > 0.61 {
		t.Errorf("theta after ] = %v", bh.Theta())
	}
	for i := 0; i < 10; i++ {
		m = update(m, key("["))
	}
	if bh.Theta() != 0 {
		t.Errorf("theta should clamp at 0, got %v", bh.Theta())
	}
	_ = m
}

func TestModelDirectHasNoTree(t *testing.T) {
	m := newTestModel(t, force.NewDirect(workers.Serial()))
	m = update(m, key("]"))
	out := m.View()
	if strings.Contains(out, "Nodes") {
		t.Error("direct method should not show tree stats")
	}
	if !strings.Contains(out, "direct") {
		t.Error("method name missing from view")
	}
}

func TestModelView(t *testing.T) {
	m := newTestModel(t, force.NewBarnesHut(0.5, barneshutOpts()...))
	m = update(m, TickMsg{})
	m = update(m, key("c"))

	out := m.View()
	for _, want := range []string{"PLUMMER", "RUNNING", "Theta", "Nodes", "Bodies"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q", want)
		}
	}

	m = update(m, key("?"))
	if !strings.Contains(m.View(), "KEYBOARD SHORTCUTS") {
		t.Error("help overlay missing")
	}

	m = update(m, key(" "))
	if !strings.Contains(m.View(), "PAUSED") {
		t.Error("paused status missing")
	}
}

func TestModelResize(t *testing.T) {
	m := newTestModel(t, force.NewDirect(workers.Serial()))
	m = update(m, tea.WindowSizeMsg{Width: 160, Height: 50})
	if m.canvas.Width != 160-statsWidth-6 || m.canvas.Height != 46 {
		t.Errorf("canvas = %dx%d", m.canvas.Width, m.canvas.Height)
	}
	m = update(m, tea.WindowSizeMsg{Width: 10, Height: 3})
	if m.canvas.Width != 20 || m.canvas.Height != 8 {
		t.Errorf("canvas should clamp, got %dx%d", m.canvas.Width, m.canvas.Height)
	}
}

func TestQuitKey(t *testing.T) {
	m := newTestModel(t, force.NewDirect(workers.Serial()))
	_, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}

func TestThemes(t *testing.T) {
	defer SetTheme(CurrentTheme.Name)
	start := CurrentTheme.Name
	seen := map[string]bool{}
	for range Themes {
		seen[CurrentTheme.Name] = true
		NextTheme()
	}
	if len(seen) != len(Themes) || CurrentTheme.Name != start {
		t.Errorf("cycle visited %v and ended on %s", seen, CurrentTheme.Name)
	}
	if GetTheme("nope").Name != ThemePlain.Name {
		t.Error("unknown theme should fall back to plain")
	}
}

func TestSparkline(t *testing.T) {
	if got := Sparkline(nil, 3); got != "───" {
		t.Errorf("empty sparkline = %q", got)
	}
	got := []rune(Sparkline([]float64{0, 1, 2, 3, 4}, 3))
	if len(got) != 3 || got[0] != '▁' || got[2] != '█' {
		t.Errorf("sparkline = %q", string(got))
	}
}
