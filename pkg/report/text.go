package report

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// WriteText writes human-readable validation output to w.
func (r *Report) WriteText(w io.Writer) {
	r.writeText(w, func(_ Severity, s string) string { return s })
}

// WriteColorText is WriteText with severities highlighted. Colors are
// dropped when w does not support them.
func (r *Report) WriteColorText(w io.Writer) {
	renderer := lipgloss.NewRenderer(w)
	styles := map[Severity]lipgloss.Style{
		Fatal:   renderer.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Error:   renderer.NewStyle().Foreground(lipgloss.Color("1")),
		Warning: renderer.NewStyle().Foreground(lipgloss.Color("3")),
		Info:    renderer.NewStyle().Faint(true),
	}
	r.writeText(w, func(sev Severity, s string) string {
		if st, ok := styles[sev]; ok {
			return st.Render(s)
		}
		return s
	})
}

func (r *Report) writeText(w io.Writer, paint func(Severity, string) string) {
	for _, m := range r.Messages {
		fmt.Fprintln(w, paint(m.Severity, m.String()))
	}
	if r.IsValid() {
		if r.WarningCount() == 0 {
			fmt.Fprintln(w, "No errors or warnings detected.")
		} else {
			fmt.Fprintf(w, "No errors detected. Warnings: %d\n", r.WarningCount())
		}
	} else {
		fmt.Fprintf(w, "Check finished. Errors: %d, Warnings: %d, Fatal: %d\n",
			r.ErrorCount(), r.WarningCount(), r.FatalCount())
	}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
