package ui

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Operation is work shown behind a spinner.
type Operation func(ctx context.Context) error

// doneMsg tells the spinner model that the operation returned.
type doneMsg struct{ err error }

// spinnerModel is a Bubble Tea model that spins until the operation returns
// or the user interrupts it.
type spinnerModel struct {
	spinner     spinner.Model
	label       string
	done        bool
	interrupted bool
	err         error
}

func newSpinnerModel(label string) spinnerModel {
	return spinnerModel{
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(SpinnerStyle),
		),
		label: label,
	}
}

// Init implements tea.Model
func (m spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model
func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case doneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			m.interrupted = true
			return m, tea.Quit
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model
func (m spinnerModel) View() string {
	if m.done || m.interrupted {
		return ""
	}
	return "  " + m.spinner.View() + " " + SpinnerLabelStyle.Render(m.label) + "\n"
}

// RunWithSpinner runs op while showing a spinner labelled label on out.
// Without a terminal op runs plainly. Interrupting the spinner cancels the
// context passed to op and waits for op to return.
func RunWithSpinner(ctx context.Context, out io.Writer, label string, op Operation) error {
	f, ok := out.(*os.File)
	if !ok || !IsTerminal(f) {
		return op(ctx)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newSpinnerModel(label), tea.WithOutput(out))

	result := make(chan error, 1)
	go func() {
		err := op(ctx)
		result <- err
		p.Send(doneMsg{err: err})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-result
		return err
	}
	// Either the operation finished or the user interrupted the spinner.
	cancel()
	return <-result
}
