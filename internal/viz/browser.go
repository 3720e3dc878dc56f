package viz

import (
	"fmt"
	"math"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/arendil/modalsolve/internal/store"
)

var channelKinds = []string{"disp", "vel", "acc"}

// Browser is a bubbletea model paging through the channels of a stored run.
type Browser struct {
	run  *store.Run
	dof  int
	kind int
}

// NewBrowser builds the interactive channel browser for one run.
func NewBrowser(run *store.Run) Browser {
	return Browser{run: run}
}

// Run blocks until the user quits the browser.
func (b Browser) Run() error {
	_, err := tea.NewProgram(b).Run()
	return err
}

func (b Browser) Init() tea.Cmd { return nil }

func (b Browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return b, nil
	}
	n := len(b.run.Disp)
	switch key.String() {
	case "q", "ctrl+c", "esc":
		return b, tea.Quit
	case "up", "k":
		b.dof = (b.dof + n - 1) % n
	case "down", "j":
		b.dof = (b.dof + 1) % n
	case "left", "h":
		b.kind = (b.kind + len(channelKinds) - 1) % len(channelKinds)
	case "right", "l":
		b.kind = (b.kind + 1) % len(channelKinds)
	}
	return b, nil
}

func (b Browser) View() string {
	kind := channelKinds[b.kind]
	var rows [][]float64
	switch kind {
	case "disp":
		rows = b.run.Disp
	case "vel":
		rows = b.run.Vel
	default:
		rows = b.run.Acc
	}
	data := rows[b.dof]

	peak, peakAt := 0.0, 0
	for k, v := range data {
		if math.Abs(v) > math.Abs(peak) {
			peak, peakAt = v, k
		}
	}

	header := Title.Render(fmt.Sprintf("%s  %s dof %d/%d", b.run.Meta.Name, kind, b.dof, len(rows)-1))
	stats := Subtle.Render("peak ") + Value.Render(fmt.Sprintf("%.6g", peak)) +
		Subtle.Render(fmt.Sprintf(" at t=%.4gs", b.run.Time[peakAt]))
	graph := Panel.Render(Sparkline(data, fmt.Sprintf("%s dof %d", kind, b.dof)))
	help := KeyHint.Render("up/down: dof   left/right: channel   q: quit")

	return header + "\n" + stats + "\n" + graph + "\n" + help + "\n"
}
