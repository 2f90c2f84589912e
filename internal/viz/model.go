package viz

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/nboxsim/internal/detector"
	"github.com/san-kum/nboxsim/internal/run"
)

const (
	canvasWidth  = 36
	canvasHeight = 14
	tickInterval = 100 * time.Millisecond
	maxEvents    = 100000000
)

// Runner starts one run of the given size. progress is called from worker
// goroutines.
type Runner func(ctx context.Context, events int, progress run.ProgressFunc) (*run.Summary, error)

type tickMsg time.Time

type runDoneMsg struct {
	summary *run.Summary
	err     error
}

// progress is shared with the running workers.
type progress struct {
	done  atomic.Int64
	total atomic.Int64
}

// Model is the interactive session: it shows the loaded configuration and
// runs batches of events on demand.
type Model struct {
	runner   Runner
	config   string
	layout   *Canvas
	events   int
	theme    Theme
	styles   styles
	running  bool
	cancel   context.CancelFunc
	progress *progress
	last     *run.Summary
	history  []float64
	runs     int
	err      error
	showHelp bool
}

// NewModel describes store once; the store must not change while the model runs.
func NewModel(store *detector.Store, events int, runner Runner) Model {
	var b strings.Builder
	store.Describe(&b)

	layout := NewCanvas(canvasWidth, canvasHeight)
	layout.DrawLayout(store.Box(), store.Placements(), store.Types())

	if events <= 0 {
		events = 1000
	}
	return Model{
		runner:   runner,
		config:   b.String(),
		layout:   layout,
		events:   events,
		theme:    ThemeCyberpunk,
		styles:   newStyles(ThemeCyberpunk),
		progress: &progress{},
	}
}

func (m Model) Init() tea.Cmd { return nil }

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		case "enter", "b":
			if m.running {
				return m, nil
			}
			return m.start()
		case "esc":
			if m.running && m.cancel != nil {
				m.cancel()
			}
		case "+", "=", "up", "k":
			if !m.running {
				m.events = min(m.events*10, maxEvents)
			}
		case "-", "_", "down", "j":
			if !m.running {
				m.events = max(m.events/10, 1)
			}
		case "t":
			m.theme = NextTheme(m.theme)
			m.styles = newStyles(m.theme)
		case "?":
			m.showHelp = !m.showHelp
		}
	case tickMsg:
		if m.running {
			return m, tick()
		}
	case runDoneMsg:
		m.running = false
		m.cancel = nil
		m.err = msg.err
		if msg.err == nil {
			m.last = msg.summary
			m.runs++
			m.history = append(m.history, float64(msg.summary.Counters.EventsWithHits))
		}
	}
	return m, nil
}

func (m Model) start() (tea.Model, tea.Cmd) {
	ctx, cancel := context.WithCancel(context.Background())
	m.running = true
	m.cancel = cancel
	m.err = nil
	m.progress.done.Store(0)
	m.progress.total.Store(int64(m.events))

	runner, events, p := m.runner, m.events, m.progress
	do := func() tea.Msg {
		defer cancel()
		s, err := runner(ctx, events, func(done, total int64) {
			p.done.Store(done)
			p.total.Store(total)
		})
		return runDoneMsg{summary: s, err: err}
	}
	return m, tea.Batch(do, tick())
}

func (m Model) View() string {
	st := m.styles
	var s strings.Builder

	s.WriteString(st.title.Render("NBOX NEUTRON DETECTOR") + "\n\n")

	left := st.panel.Render(strings.TrimRight(m.config, "\n"))
	right := st.panel.Render(st.graph.Render(strings.TrimRight(m.layout.String(), "\n")))
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right) + "\n\n")

	s.WriteString(st.label.Render("events per run") + st.value.Render(fmt.Sprintf("%d", m.events)) + "\n")
	switch {
	case m.running:
		done, total := m.progress.done.Load(), m.progress.total.Load()
		frac := 0.0
		if total > 0 {
			frac = float64(done) / float64(total)
		}
		s.WriteString(st.label.Render("status") + st.running.Render("RUNNING") + "\n")
		s.WriteString(ProgressBar(frac, 40, m.theme) + fmt.Sprintf(" %d / %d\n", done, total))
	case m.err != nil:
		s.WriteString(st.label.Render("status") + st.errText.Render("ERROR: "+m.err.Error()) + "\n")
	default:
		s.WriteString(st.label.Render("status") + st.idle.Render("IDLE") + "\n")
	}

	if m.last != nil {
		s.WriteString("\n" + m.summaryView())
	}

	if m.showHelp {
		s.WriteString("\n" + st.muted.Render("enter/b run   esc cancel   +/- events x10   t theme   q quit") + "\n")
	} else {
		s.WriteString("\n" + st.muted.Render("? help") + "\n")
	}
	return s.String()
}

func (m Model) summaryView() string {
	st := m.styles
	c := m.last.Counters
	var s strings.Builder
	s.WriteString(st.label.Render("runs") + st.value.Render(fmt.Sprintf("%d", m.runs)) + "\n")
	s.WriteString(st.label.Render("events with hits") + st.value.Render(fmt.Sprintf("%d / %d", c.EventsWithHits, c.Events)) + "\n")
	if len(m.history) > 1 {
		s.WriteString(st.label.Render("history") + Sparkline(m.history, 30) + "\n")
	}
	for _, d := range m.last.Detectors {
		s.WriteString(st.label.Render(d.Name) + st.value.Render(fmt.Sprintf("%d hits  %.1f keV", d.Hits, d.MeanEdepKeV)) + "\n")
	}
	if hasCounts(m.last.EdepSpectrum) {
		chart := asciigraph.Plot(m.last.EdepSpectrum,
			asciigraph.Height(6), asciigraph.Width(60), asciigraph.Caption("Edep [10 keV bins]"))
		s.WriteString("\n" + st.graph.Render(chart) + "\n")
	}
	return s.String()
}

func hasCounts(v []float64) bool {
	for _, x := range v {
		if x > 0 {
			return true
		}
	}
	return false
}

// Run starts the interactive program and blocks until the user quits.
func Run(m Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
