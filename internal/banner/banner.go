package banner

import (
	"fmt"
	"io"

	"github.com/common-nighthawk/go-figure"
	"github.com/fatih/color"
)

// PrintBanner writes the CLI banner to w. Nothing colored is written when
// color output is disabled.
func PrintBanner(w io.Writer, version string) {
	fig := figure.NewFigure("STATUSPEEK", "small", true)
	_, _ = fmt.Fprint(w, color.New(color.FgCyan).Sprint(fig.String()))

	rule := color.New(color.FgCyan).Sprint("════════════════════════════════════════════════")
	_, _ = fmt.Fprintln(w, rule)
	_, _ = fmt.Fprintln(w, color.New(color.FgGreen).Sprintf("    Redirect chain checker %s", version))
	_, _ = fmt.Fprintln(w, rule)
}
