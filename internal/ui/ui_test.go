package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResult_Render(t *testing.T) {
	tests := []struct {
		name   string
		result *Result
		want   []string
	}{
		{
			name:   "success keeps detail order",
			result: NewSuccessResult("LED switched off", Detail{"Device", "192.0.2.10"}, Detail{"LED", "off"}),
			want:   []string{"SUCCESS", "LED switched off", "Device:", "192.0.2.10", "LED:", "off"},
		},
		{
			name:   "failure",
			result: NewFailureResult("Connect failed", errors.New("device not found"), []string{"Check the IP address"}),
			want:   []string{"FAILED", "device not found", "Troubleshooting:", "Check the IP address"},
		},
		{
			name:   "warning",
			result: NewWarningResult("Firmware update available").AddDetail("New version", "7.12.5"),
			want:   []string{"WARNING", "Firmware update available", "7.12.5"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.result.SetWidth(80).String()
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
		})
	}

	out := NewSuccessResult("ok", Detail{"First", "1"}, Detail{"Second", "2"}).SetWidth(80).Render()
	assert.Less(t, strings.Index(out, "First"), strings.Index(out, "Second"))
}

func TestHeader_Render(t *testing.T) {
	out := NewHeader("Device info", "devolo-plc info", Detail{"Device", "192.0.2.10"}).SetWidth(70).Render()
	assert.Contains(t, out, "DEVICE INFO")
	assert.Contains(t, out, "devolo-plc info")
	assert.Contains(t, out, "192.0.2.10")

	assert.True(t, hasDivider(out))
	assert.Len(t, strings.Split(out, "\n"), 6)

	bare := NewHeader("Scan", "devolo-plc scan").SetWidth(70).Render()
	assert.False(t, hasDivider(bare))
	assert.Len(t, strings.Split(bare, "\n"), 4)
}

// hasDivider reports whether a line inside the border is a bare divider.
func hasDivider(out string) bool {
	for _, line := range strings.Split(ansi.Strip(out), "\n") {
		inner := strings.TrimSpace(strings.Trim(line, "│"))
		if inner != "" && strings.Trim(inner, "─") == "" {
			return true
		}
	}
	return false
}

func TestClampWidth(t *testing.T) {
	assert.Equal(t, MinTerminalWidth, clampWidth(200, errors.New("not a terminal")))
	assert.Equal(t, MinTerminalWidth, clampWidth(20, nil))
	assert.Equal(t, MaxContentWidth, clampWidth(500, nil))
	assert.Equal(t, 80, clampWidth(80, nil))
}

func TestRenderTable(t *testing.T) {
	out := RenderTable(
		[]string{"Serial", "IP"},
		[][]string{{"1234567890123456", "192.0.2.10"}, {"1111222233334444", "192.0.2.11"}},
	)
	for _, w := range []string{"Serial", "IP", "1234567890123456", "192.0.2.11"} {
		assert.Contains(t, out, w)
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"exact phrase", "RESET\n", true},
		{"surrounding space", "  RESET  \n", true},
		{"phrase without newline", "RESET", true},
		{"wrong phrase", "reset\n", false},
		{"no input", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got := FactoryResetConfirmation(strings.NewReader(tt.input), &out, "192.0.2.10")
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "FACTORY RESET")
			if !tt.want {
				assert.Contains(t, out.String(), "Operation cancelled.")
			}
		})
	}
}

func TestRunWithSpinner_NoTerminal(t *testing.T) {
	var out bytes.Buffer
	called := false

	err := RunWithSpinner(context.Background(), &out, "Connecting", func(ctx context.Context) error {
		called = true
		return errors.New("boom")
	})

	assert.True(t, called)
	assert.EqualError(t, err, "boom")
	assert.Empty(t, out.String(), "no spinner without a terminal")
}

func TestSpinnerModel(t *testing.T) {
	m := newSpinnerModel("Connecting to 192.0.2.10")
	assert.Contains(t, m.View(), "Connecting to 192.0.2.10")
	require.NotNil(t, m.Init())

	next, cmd := m.Update(spinner.TickMsg{ID: m.spinner.ID()})
	assert.NotNil(t, cmd, "a tick schedules the next tick")
	m = next.(spinnerModel)

	next, cmd = m.Update(doneMsg{err: errors.New("not found")})
	m = next.(spinnerModel)
	assert.True(t, m.done)
	assert.EqualError(t, m.err, "not found")
	assert.Empty(t, m.View())
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	interrupted, cmd := newSpinnerModel("x").Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.True(t, interrupted.(spinnerModel).interrupted)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
