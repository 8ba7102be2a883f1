package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/simtree/internal/component"
	"github.com/san-kum/simtree/internal/dynamo"
	"github.com/san-kum/simtree/internal/engine"
	"github.com/san-kum/simtree/internal/model"
)

const (
	canvasWidth     = 60
	canvasHeight    = 24
	historyCapacity = 300
	maxStepsPerTick = 64
)

type TickMsg time.Time

// WatchConfig configures a live view.
type WatchConfig struct {
	Title string
	Dt    float64
	// StepsPerFrame integration steps are taken for every rendered frame.
	StepsPerFrame int
	FPS           int
	Theme         string
}

// Watch steps a built model in real time and draws its decorations.
type Watch struct {
	m     *model.Model
	sys   *model.Integrand
	view  *model.Integrand
	integ dynamo.Integrator
	cfg   WatchConfig

	x, x0 dynamo.State
	t     float64

	canvas   *Canvas
	viewport Viewport
	fixed    []component.Decoration
	styles   Styles

	running       bool
	energyHistory []float64
	err           error
}

// NewWatch prepares a live view of in starting from x0. The integrand's state
// is driven by the integrator; decorations are drawn from a private copy.
func NewWatch(in *model.Integrand, integ dynamo.Integrator, x0 dynamo.State, cfg WatchConfig) (Watch, error) {
	if cfg.Dt <= 0 {
		return Watch{}, fmt.Errorf("%w: dt must be positive, got %g", dynamo.ErrInvalidConfig, cfg.Dt)
	}
	if err := dynamo.CheckDim(in, x0); err != nil {
		return Watch{}, err
	}
	cfg.StepsPerFrame = max(cfg.StepsPerFrame, 1)
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	theme, _ := GetTheme(cfg.Theme)

	w := Watch{
		m:       in.Model(),
		sys:     in,
		view:    in.Clone(),
		integ:   integ,
		cfg:     cfg,
		x:       x0.Clone(),
		x0:      x0.Clone(),
		canvas:  NewCanvas(canvasWidth, canvasHeight),
		styles:  NewStyles(theme),
		running: true,
	}

	fixed, err := w.m.Decorations(true, w.view.State())
	if err != nil {
		return Watch{}, err
	}
	w.fixed = fixed
	moving, err := w.decorations()
	if err != nil {
		return Watch{}, err
	}
	w.viewport = NewViewport(w.canvas, Extent(append(moving, fixed...)))
	w.draw(moving)
	return w, nil
}

func (w Watch) tick() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(w.cfg.FPS), func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (w Watch) Init() tea.Cmd {
	return w.tick()
}

func (w Watch) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return w, tea.Quit
		case " ":
			w.running = !w.running
		case "r":
			w.reset()
		case "t":
			w.styles = NewStyles(NextTheme(w.styles.Theme.Name))
		case "+", "=":
			w.cfg.StepsPerFrame = min(w.cfg.StepsPerFrame*2, maxStepsPerTick)
		case "-", "_":
			w.cfg.StepsPerFrame = max(w.cfg.StepsPerFrame/2, 1)
		}
	case TickMsg:
		if w.running && w.err == nil {
			w.advance()
		}
		return w, w.tick()
	}
	return w, nil
}

// advance takes one frame's worth of steps and redraws. A failed step pauses
// the view and is shown in the status line.
func (w *Watch) advance() {
	for range w.cfg.StepsPerFrame {
		next, err := w.integ.Step(w.sys, w.x, w.t, w.cfg.Dt)
		if err == nil && !next.IsValid() {
			err = dynamo.ErrInvalidState
		}
		if err != nil {
			w.err = &dynamo.SimulationError{Time: w.t, State: w.x, Wrapped: err}
			w.running = false
			return
		}
		w.x = next
		w.t += w.cfg.Dt
	}

	if e, err := w.view.Energy(w.x, w.t); err == nil {
		w.energyHistory = append(w.energyHistory, e)
		if len(w.energyHistory) > historyCapacity {
			w.energyHistory = w.energyHistory[1:]
		}
	}
	moving, err := w.decorations()
	if err != nil {
		w.err = err
		w.running = false
		return
	}
	w.draw(moving)
}

func (w *Watch) reset() {
	w.x = w.x0.Clone()
	w.t = 0
	w.err = nil
	w.energyHistory = w.energyHistory[:0]
	if moving, err := w.decorations(); err == nil {
		w.draw(moving)
	}
}

func (w *Watch) decorations() ([]component.Decoration, error) {
	if err := w.view.Load(w.x, w.t); err != nil {
		return nil, err
	}
	if err := w.m.Realize(w.view.State(), engine.StagePosition); err != nil {
		return nil, err
	}
	return w.m.Decorations(false, w.view.State())
}

func (w *Watch) draw(moving []component.Decoration) {
	w.canvas.Clear()
	w.canvas.DrawDecorations(w.viewport, w.fixed)
	w.canvas.DrawDecorations(w.viewport, moving)
}

// Time is the simulated time of the displayed state.
func (w Watch) Time() float64 { return w.t }

func (w Watch) State() dynamo.State { return w.x.Clone() }
func (w Watch) Running() bool { return w.running }
func (w Watch) Err() error { return w.err }

func (w Watch) View() string {
	st := w.styles
	canvasView := lipgloss.NewStyle().Foreground(st.Theme.Text).Padding(1, 2).Render(w.canvas.String())

	var s strings.Builder
	s.WriteString(st.Header.Render(strings.ToUpper(w.cfg.Title)) + "\n\n")
	switch {
	case w.err != nil:
		s.WriteString(st.Paused.Render("FAILED") + "\n" + st.Subtle.Render(w.err.Error()) + "\n\n")
	case w.running:
		s.WriteString(st.Running.Render("RUNNING") + "\n\n")
	default:
		s.WriteString(st.Paused.Render("PAUSED") + "\n\n")
	}

	if len(w.energyHistory) > 1 {
		chart := asciigraph.Plot(w.energyHistory, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("Energy"))
		s.WriteString(st.Graph.Render(chart) + "\n\n")
	}

	s.WriteString(st.Label.Render("Time") + st.Value.Render(fmt.Sprintf("%.2fs", w.t)) + "\n")
	if n := len(w.energyHistory); n > 0 {
		s.WriteString(st.Label.Render("Energy") + st.Value.Render(fmt.Sprintf("%.4f", w.energyHistory[n-1])) + "\n")
	}
	s.WriteString(st.Label.Render("Steps/frame") + st.Value.Render(fmt.Sprintf("%d", w.cfg.StepsPerFrame)) + "\n")
	s.WriteString(st.Label.Render("Theme") + st.Value.Render(st.Theme.Name) + "\n")

	s.WriteString(st.KeyHint.Render("\nSP:Pause R:Reset Q:Quit\nT:Theme  +/-:Speed"))
	statsView := st.Panel.Render(s.String())
	return lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsView)
}

// RunWatch runs w as a full-screen program until the user quits.
func RunWatch(w Watch) error {
	_, err := tea.NewProgram(w, tea.WithAltScreen()).Run()
	return err
}
