package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/matzehuels/kintree/pkg/gesture"
	"github.com/matzehuels/kintree/pkg/layout"
	"github.com/matzehuels/kintree/pkg/lineage"
	"github.com/matzehuels/kintree/pkg/render"
	"github.com/matzehuels/kintree/pkg/snapshot"
	"github.com/matzehuels/kintree/pkg/watch"
)

// detailPaneWidth is the width of the right-hand person detail panel.
const detailPaneWidth = 30

// viewCommand creates the interactive viewer command.
func (c *CLI) viewCommand() *cobra.Command {
	var (
		width   float64
		height  float64
		noWatch bool
	)

	cmd := &cobra.Command{
		Use:   "view [file]",
		Short: "View a family tree interactively",
		Long: `View opens a lineage snapshot in an interactive terminal viewer.

Click a person to see their details. Hold and release after a moment to
drag them to a new position; manual positions survive relayouts and can
be saved with 's'. The file is watched for changes and reloaded
automatically.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.Config
			if width > 0 {
				cfg.Layout.Width = width
			}
			if height > 0 {
				cfg.Layout.Height = height
			}
			watchFile := cfg.Watch.Enabled && !noWatch
			return c.runView(cmd.Context(), args[0], watchFile)
		},
	}

	cmd.Flags().Float64Var(&width, "width", 0, "layout frame width (default from config)")
	cmd.Flags().Float64Var(&height, "height", 0, "layout frame height (default from config)")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "disable automatic reload on file change")
	return cmd
}

func (c *CLI) runView(ctx context.Context, path string, watchFile bool) error {
	tree, err := lineage.ReadSnapshotFile(path)
	if err != nil {
		return err
	}

	store, err := c.newStore()
	if err != nil {
		c.Logger.Warn("snapshot store unavailable, positions will not persist", "err", err)
		store = nil
	}

	m := newViewModel(c, path, tree, store)
	p := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen(), tea.WithMouseAllMotion())

	var w *watch.Watcher
	if watchFile {
		w, err = watch.New(path, func() { p.Send(fileChangedMsg{}) },
			watch.WithDebounce(c.Config.Debounce()),
			watch.WithLogger(c.Logger))
		if err != nil {
			c.Logger.Warn("file watching disabled", "err", err)
		} else {
			defer w.Close()
		}
	}

	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("run viewer: %w", err)
	}
	if vm, ok := final.(*viewModel); ok && vm.err != nil {
		return vm.err
	}
	return nil
}

// =============================================================================
// Messages
// =============================================================================

// fileChangedMsg signals that the snapshot file changed on disk.
type fileChangedMsg struct{}

// treeReloadedMsg carries the result of reloading the snapshot.
type treeReloadedMsg struct {
	tree *lineage.Tree
	err  error
}

// stuckTickMsg drives periodic stuck-gesture checks.
type stuckTickMsg time.Time

func stuckTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return stuckTickMsg(t)
	})
}

// =============================================================================
// Model
// =============================================================================

type viewModel struct {
	cli   *CLI
	path  string
	store snapshot.Store

	tree      *lineage.Tree
	overrides layout.Overrides
	lay       *layout.Layout
	canvas    *render.Canvas
	interp    *gesture.Interpreter

	selection *gesture.Selection
	selected  lineage.NodeID
	livePos   *layout.Point
	status    string
	dirty     bool

	width  int
	height int
	err    error
}

func newViewModel(c *CLI, path string, tree *lineage.Tree, store snapshot.Store) *viewModel {
	m := &viewModel{
		cli:    c,
		path:   path,
		store:  store,
		tree:   tree,
		status: "ready",
	}
	m.overrides = m.loadPositions()
	m.resetInterpreter()
	return m
}

func (m *viewModel) loadPositions() layout.Overrides {
	if m.store == nil {
		return layout.Overrides{}
	}
	ov, err := m.store.LoadPositions(context.Background(), m.tree.Hash())
	if err != nil {
		m.cli.Logger.Warn("load saved positions", "err", err)
		return layout.Overrides{}
	}
	return ov
}

func (m *viewModel) resetInterpreter() {
	m.interp = gesture.New(m.tree, m.overrides,
		gesture.WithClickThreshold(m.cli.Config.ClickThreshold()),
		gesture.WithStuckTimeout(m.cli.Config.StuckTimeout()),
		gesture.WithLogger(m.cli.Logger))
}

func (m *viewModel) frame() layout.Frame {
	return layout.Frame{Width: m.cli.Config.Layout.Width, Height: m.cli.Config.Layout.Height}
}

// rebuild recomputes the layout and redraws the canvas. While a gesture is
// mid-drag the tracked node follows the pointer through a transient
// override; nothing is committed until release.
func (m *viewModel) rebuild() {
	ov := m.overrides
	if g, tracking := m.interp.Current(); tracking && m.livePos != nil {
		ov = m.overrides.Clone()
		ov.Set(g.Target, *m.livePos)
	}
	lay, err := layout.Build(m.tree, m.frame(), ov)
	if err != nil {
		m.err = err
		return
	}
	m.lay = lay

	cw, ch := m.canvasSize()
	m.canvas = render.NewCanvas(m.tree, m.lay, cw, ch)
	m.canvas.SetSelected(m.selected, m.selection != nil)
}

func (m *viewModel) canvasSize() (int, int) {
	cw := m.width - detailPaneWidth - 1
	if cw < 20 {
		cw = 20
	}
	ch := m.height - 3 // title and status rows
	if ch < 5 {
		ch = 5
	}
	return cw, ch
}

// pointAt maps a canvas cell back into layout coordinates.
func (m *viewModel) pointAt(x, y int) layout.Point {
	cw, ch := m.canvasSize()
	f := m.frame()
	if f.Width <= 0 || f.Height <= 0 {
		f = layout.DefaultFrame
	}
	px := float64(x) / float64(cw-1) * f.Width
	py := float64(y-1) / float64(ch-1) * f.Height
	if px < 0 {
		px = 0
	}
	if py < 0 {
		py = 0
	}
	return layout.Point{X: px, Y: py}
}

func (m *viewModel) Init() tea.Cmd {
	return stuckTick()
}

func (m *viewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.rebuild()
		return m, nil

	case tea.KeyMsg:
		return m.updateKey(msg)

	case tea.MouseMsg:
		return m.updateMouse(msg)

	case stuckTickMsg:
		if err := m.interp.CheckStuck(); err != nil {
			m.status = "gesture reset (release event lost)"
		}
		return m, stuckTick()

	case fileChangedMsg:
		return m, m.reloadCmd()

	case treeReloadedMsg:
		if msg.err != nil {
			m.status = "reload failed: " + msg.err.Error()
			return m, nil
		}
		m.applyReload(msg.tree)
		return m, nil
	}
	return m, nil
}

func (m *viewModel) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.selection = nil
		m.livePos = nil
		m.interp.Cancel()
		m.rebuild()
	case "s":
		m.savePositions()
	case "r":
		m.overrides.Clear()
		m.dirty = true
		m.status = "positions reset"
		m.rebuild()
	}
	return m, nil
}

func (m *viewModel) updateMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	pos := m.pointAt(msg.X, msg.Y)

	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft || m.canvas == nil {
			return m, nil
		}
		// Canvas starts below the title row.
		if id, ok := m.canvas.NodeAt(msg.X, msg.Y-1); ok {
			if m.interp.PointerDown(id, pos) {
				m.status = "tracking"
			}
		}

	case tea.MouseActionMotion:
		if live, moving := m.interp.PointerMove(pos); moving {
			m.status = "dragging"
			m.livePos = &live
			m.rebuild()
		}

	case tea.MouseActionRelease:
		res := m.interp.PointerUp(pos)
		m.livePos = nil
		switch res.Kind {
		case gesture.KindClick:
			sel := res.Selection
			m.selection = &sel
			m.selected = res.Target
			m.status = "selected " + sel.Name
		case gesture.KindDrag:
			m.dirty = true
			m.status = "moved"
		}
		m.rebuild()
	}
	return m, nil
}

func (m *viewModel) savePositions() {
	if m.store == nil {
		m.status = "no store configured, cannot save"
		return
	}
	if err := m.store.SavePositions(context.Background(), m.tree.Hash(), m.overrides); err != nil {
		m.status = "save failed: " + err.Error()
		return
	}
	m.dirty = false
	m.status = fmt.Sprintf("saved %d positions", m.overrides.Len())
}

func (m *viewModel) reloadCmd() tea.Cmd {
	path := m.path
	return func() tea.Msg {
		tree, err := lineage.ReadSnapshotFile(path)
		return treeReloadedMsg{tree: tree, err: err}
	}
}

func (m *viewModel) applyReload(tree *lineage.Tree) {
	m.tree = tree
	m.selection = nil
	m.livePos = nil
	// Node identities are only stable within one tree revision, so a
	// changed tree gets the override set stored for its new hash.
	m.overrides = m.loadPositions()
	m.dirty = false
	m.resetInterpreter()
	m.status = "reloaded"
	m.rebuild()
}

// =============================================================================
// View
// =============================================================================

var (
	viewTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	viewStatusStyle = lipgloss.NewStyle().Foreground(colorDim)
	viewDirtyStyle  = lipgloss.NewStyle().Foreground(colorYellow)
	detailStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim).
			Padding(0, 1).
			Width(detailPaneWidth - 2)
	detailLabelStyle = lipgloss.NewStyle().Foreground(colorGray)
)

func (m *viewModel) View() string {
	if m.err != nil {
		return printableError(m.err)
	}
	if m.canvas == nil {
		return "loading..."
	}

	title := viewTitleStyle.Render(appName) + viewStatusStyle.Render("  "+m.path)
	if m.dirty {
		title += "  " + viewDirtyStyle.Render("● unsaved")
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, m.canvas.Render(), " "+m.detailPane())

	help := "click select · hold+release move · s save · r reset · q quit"
	status := viewStatusStyle.Render(m.status + "  ·  " + help)

	return title + "\n" + body + "\n" + status
}

func (m *viewModel) detailPane() string {
	var b strings.Builder
	if m.selection == nil {
		b.WriteString(StyleDim.Render("no one selected"))
		b.WriteString("\n\n")
		b.WriteString(StyleDim.Render("click a person to see their details"))
		return detailStyle.Render(b.String())
	}

	s := m.selection
	b.WriteString(StyleTitle.Render(s.Name))
	b.WriteString("\n")
	if s.Age != nil {
		b.WriteString(detailLabelStyle.Render("age      ") + StyleValue.Render(fmt.Sprintf("%d", *s.Age)))
		b.WriteString("\n")
	}
	if s.Category != "" {
		b.WriteString(detailLabelStyle.Render("category ") + StyleValue.Render(s.Category))
		b.WriteString("\n")
	}
	if s.Notes != "" {
		b.WriteString("\n")
		b.WriteString(StyleDim.Render(s.Notes))
	}
	return detailStyle.Render(b.String())
}

func printableError(err error) string {
	return styleIconError.Render(iconError) + " " + err.Error() + "\n"
}
