package statuscolor

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"

	"github.com/selimozcann/statuspeek/internal/model"
)

var (
	green  = color.New(color.FgGreen)
	cyan   = color.New(color.FgCyan)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
	gray   = color.New(color.FgHiBlack)
)

func colorFor(status int) *color.Color {
	switch {
	case status >= 200 && status < 300:
		return green
	case status >= 300 && status < 400:
		return cyan
	case status >= 400 && status < 500:
		return yellow
	case status >= 500:
		return red
	default:
		return gray
	}
}

// Sprint returns a colorized status code string.
func Sprint(status int) string {
	if status == 0 {
		return gray.Sprint("—")
	}
	return colorFor(status).Sprint(strconv.Itoa(status))
}

// WrapByStatus wraps the provided text with the color that corresponds to the
// supplied status code.
func WrapByStatus(text string, status int) string {
	return colorFor(status).Sprint(text)
}

// Gray wraps the provided text with a gray ANSI color.
func Gray(text string) string {
	return gray.Sprint(text)
}

// PrintResult writes a resolved chain with color-coded statuses.
func PrintResult(w io.Writer, r model.CheckResult) {
	fmt.Fprintf(w, "%s %s\n", r.SourceURL, Gray(fmt.Sprintf("(%dms)", r.DurationMs)))
	for i, h := range r.Hops {
		fmt.Fprintf(w, "  [%d] %s -> %s\n", i, Sprint(h.Status), h.URL)
	}
	for _, f := range r.Findings {
		fmt.Fprintf(w, "  %s %s at hop %d: %s\n", yellow.Sprint("!"), f.Type, f.AtHop, f.Detail)
	}
	if r.Error != nil {
		fmt.Fprintf(w, "  %s %s: %s\n", red.Sprint("✗"), r.ErrorString(), r.ErrorMessage)
		return
	}
	mark := green.Sprint("✔")
	if !r.IsSafe {
		mark = red.Sprint("✗")
	}
	fmt.Fprintf(w, "  %s %s %s\n", mark, Sprint(r.LastStatus()), r.TargetURL)
}
