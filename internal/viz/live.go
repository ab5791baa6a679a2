package viz

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/gravtree/internal/barneshut"
	"github.com/san-kum/gravtree/internal/metrics"
	"github.com/san-kum/gravtree/internal/sim"
)

const (
	width           = 80
	height          = 24
	statsWidth      = 45
	historyCapacity = 600
	maxStepsPerTick = 64
)

type TickMsg time.Time

// thetaTuner is satisfied by calculators whose opening angle can change
// between steps.
type thetaTuner interface {
	Theta() float64
	SetTheta(theta float64) error
}

type treeOwner interface {
	Model() *barneshut.Model
}

// Model is the bubbletea state of the live view.
type Model struct {
	ctx     context.Context
	stepper *sim.Stepper
	title   string

	width, height int
	canvas        *Canvas
	view          Viewport

	running      bool
	showHelp     bool
	showCells    bool
	cellDepth    int
	stepsPerTick int
	err          error

	energyHistory []float64
	stepHistory   []float64
}

// NewModel wraps a stepper that has already computed its first forces.
func NewModel(ctx context.Context, stepper *sim.Stepper, title string) Model {
	m := Model{
		ctx:           ctx,
		stepper:       stepper,
		title:         title,
		width:         width,
		height:        height,
		canvas:        NewCanvas(width, height),
		view:          FitViewport(stepper.Bodies()),
		running:       true,
		cellDepth:     4,
		stepsPerTick:  1,
		energyHistory: make([]float64, 0, historyCapacity),
		stepHistory:   make([]float64, 0, historyCapacity),
	}
	m.record()
	return m
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/30, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd { return tick() }

// Update handles keys and advances the simulation on every tick.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running && m.err == nil
		case "r":
			m.reset()
		case "t":
			NextTheme()
		case "?":
			m.showHelp = !m.showHelp
		case "+", "=":
			m.view = m.view.Zoom(1.25)
		case "-", "_":
			m.view = m.view.Zoom(0.8)
		case "f":
			m.view = FitViewport(m.stepper.Bodies())
		case "c":
			m.showCells = !m.showCells
		case "up", "k":
			m.cellDepth = min(m.cellDepth+1, 12)
		case "down", "j":
			m.cellDepth = max(m.cellDepth-1, 1)
		case "]":
			m.adjustTheta(0.1)
		case "[":
			m.adjustTheta(-0.1)
		case ">", ".":
			m.stepsPerTick = min(m.stepsPerTick*2, maxStepsPerTick)
		case "<", ",":
			m.stepsPerTick = max(m.stepsPerTick/2, 1)
		case "n":
			if !m.running && m.err == nil {
				m.step()
			}
		}
	case tea.WindowSizeMsg:
		m.resize(msg.Width-statsWidth-6, msg.Height-4)
	case TickMsg:
		if m.running {
			for i := 0; i < m.stepsPerTick && m.err == nil; i++ {
				m.step()
			}
		}
		return m, tick()
	}
	return m, nil
}

func (m *Model) resize(w, h int) {
	w, h = max(w, 20), max(h, 8)
	if w == m.width && h == m.height {
		return
	}
	m.width, m.height = w, h
	m.canvas = NewCanvas(w, h)
}

func (m *Model) adjustTheta(delta float64) {
	tuner, ok := m.stepper.Calculator().(thetaTuner)
	if !ok {
		return
	}
	theta := max(tuner.Theta()+delta, 0)
	// a rejected theta leaves the old one in place
	_ = tuner.SetTheta(theta)
}

// step advances the simulation once and stops it on the first failure.
func (m *Model) step() {
	if err := m.stepper.Step(m.ctx); err != nil {
		m.err = err
		m.running = false
		return
	}
	m.record()
}

func (m *Model) record() {
	bs := m.stepper.Bodies()
	if len(bs) <= sim.MaxEnergyBodies {
		k, p := metrics.Energy(bs)
		m.energyHistory = pushCapped(m.energyHistory, k+p)
	}
	ms := float64(m.stepper.LastStepTime()) / float64(time.Millisecond)
	m.stepHistory = pushCapped(m.stepHistory, ms)
}

func pushCapped(h []float64, v float64) []float64 {
	h = append(h, v)
	if len(h) > historyCapacity {
		h = h[1:]
	}
	return h
}

// reset rewinds to the initial bodies.
func (m *Model) reset() {
	m.energyHistory = m.energyHistory[:0]
	m.stepHistory = m.stepHistory[:0]
	m.err = m.stepper.Reset(m.ctx)
	m.running = m.err == nil
	m.view = FitViewport(m.stepper.Bodies())
	m.record()
}

func (m *Model) tree() *barneshut.Model {
	if owner, ok := m.stepper.Calculator().(treeOwner); ok {
		return owner.Model()
	}
	return nil
}

// draw plots the bodies and, when enabled, the quadtree cells down to
// cellDepth.
func (m *Model) draw() {
	m.canvas.Clear()
	if tree := m.tree(); m.showCells && tree != nil {
		m.drawCells(tree)
	}
	m.canvas.PlotBodies(m.view, m.stepper.Bodies())
}

func (m *Model) drawCells(tree *barneshut.Model) {
	for _, c := range tree.Cells(m.cellDepth) {
		px0, py0 := m.view.Project(m.canvas, c.X0, c.Y0)
		px1, py1 := m.view.Project(m.canvas, c.X0+c.Side, c.Y0+c.Side)
		m.canvas.DrawRect(px0, py0, px1, py1)
	}
}

// View renders the canvas beside the stats panel.
func (m Model) View() string {
	m.draw()
	canvasView := canvasStyle.Render(m.canvas.String())

	var s strings.Builder
	s.WriteString(headerStyle.Render(strings.ToUpper(m.title)) + "\n")
	s.WriteString(m.status() + "\n\n")

	if len(m.energyHistory) > 1 {
		chart := asciigraph.Plot(m.energyHistory, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("Energy"))
		s.WriteString(graphStyle.Render(chart) + "\n\n")
	}

	bs := m.stepper.Bodies()
	in := m.stepper.LastInteractions()
	row := func(label, value string) {
		s.WriteString(labelStyle.Render(label) + valueStyle.Render(value) + "\n")
	}
	row("Time", fmt.Sprintf("%.4f", m.stepper.Time()))
	row("Steps", fmt.Sprintf("%d (x%d/tick)", m.stepper.Steps(), m.stepsPerTick))
	row("Bodies", fmt.Sprintf("%d", len(bs)))
	row("Method", m.stepper.Calculator().Name())
	if tuner, ok := m.stepper.Calculator().(thetaTuner); ok {
		row("Theta", fmt.Sprintf("%.2f", tuner.Theta()))
	}
	row("Direct", fmt.Sprintf("%d", in.Direct))
	row("Approx", fmt.Sprintf("%d", in.Approx))
	if len(bs) > 0 {
		row("Per body", fmt.Sprintf("%.1f", float64(in.Total())/float64(len(bs))))
	}
	if tree := m.tree(); tree != nil {
		st := tree.Stats()
		row("Nodes", fmt.Sprintf("%d", st.Nodes))
		row("Depth", fmt.Sprintf("%d", st.MaxDepth))
		row("Buckets", fmt.Sprintf("%d", st.Buckets))
	}
	if n := len(m.energyHistory); n > 0 {
		e0, e := m.energyHistory[0], m.energyHistory[n-1]
		row("Energy", fmt.Sprintf("%.6g", e))
		if e0 != 0 {
			row("Drift", fmt.Sprintf("%.2e", (e-e0)/e0))
		}
	}
	if n := len(m.stepHistory); n > 0 {
		row("Step ms", fmt.Sprintf("%.2f %s", m.stepHistory[n-1], Sparkline(m.stepHistory, 16)))
	}

	s.WriteString(helpStyle.Render("\n─────────────────────\nSP:Pause N:Step R:Reset Q:Quit\n[ ]:Theta C:Cells T:Theme ?:Help"))
	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsStyle.Render(s.String()))
	if m.showHelp {
		return helpText + "\n\n" + mainView
	}
	return mainView
}

func (m Model) status() string {
	switch {
	case m.err != nil:
		return errorStyle.Render("STOPPED: " + m.err.Error())
	case !m.running:
		return pausedStyle.Render("PAUSED")
	default:
		return "RUNNING"
	}
}

const helpText = `
╔══════════════════════════════════════╗
║          KEYBOARD SHORTCUTS          ║
╠══════════════════════════════════════╣
║  Space    - Pause/Resume             ║
║  N        - Single step while paused ║
║  R        - Reset to initial bodies  ║
║  [ / ]    - Theta -0.1 / +0.1        ║
║  < / >    - Halve / double steps     ║
║  C        - Toggle quadtree cells    ║
║  Up/Down  - Cell depth               ║
║  + / -    - Zoom in / out            ║
║  F        - Fit view to bodies       ║
║  T        - Cycle themes             ║
║  ?        - Toggle this help         ║
║  Q        - Quit                     ║
╚══════════════════════════════════════╝`
