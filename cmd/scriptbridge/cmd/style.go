package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/andrei-cloud/go_scriptbridge/internal/plugins"
)

var (
	okColor   = lipgloss.Color("#10B981")
	failColor = lipgloss.Color("#EF4444")
	dimColor  = lipgloss.Color("#6B7280")
	mainColor = lipgloss.Color("#7C3AED")

	okStyle     = lipgloss.NewStyle().Foreground(okColor).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(failColor).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(dimColor)
	promptStyle = lipgloss.NewStyle().Foreground(mainColor).Bold(true)
)

// printResult writes the output to out and a status line to status.
func printResult(out, status io.Writer, res plugins.Result) {
	if len(res.Output) > 0 {
		_, _ = out.Write(res.Output)
		_, _ = fmt.Fprintln(out)
	}
	_, _ = fmt.Fprintln(status, statusLine(res))
}

// statusLine summarizes a result on one line.
func statusLine(res plugins.Result) string {
	label := okStyle.Render("ok")
	if res.Status != 0 {
		label = failStyle.Render(fmt.Sprintf("status %d", res.Status))
		if res.Error != "" {
			label += " " + failStyle.Render(res.Error)
		}
	}

	return fmt.Sprintf("%s %s", label, dimStyle.Render(fmt.Sprintf(
		"%d bytes in %s, call %s",
		len(res.Output), res.Elapsed.Round(time.Microsecond), res.CallID,
	)))
}
