// Package output renders command output for terminals and for pipes. Text
// mode is styled with lipgloss; markdown and JSON modes are plain.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// OutputMode selects how results are printed.
type OutputMode string //nolint:revive // stutter

// Output modes.
const (
	ModeAuto     OutputMode = "auto"
	ModeText     OutputMode = "text"
	ModeMarkdown OutputMode = "markdown"
	ModeJSON     OutputMode = "json"
)

// Mode parses a mode name. Unknown names fall back to ModeAuto.
func Mode(name string) OutputMode {
	switch OutputMode(strings.ToLower(strings.TrimSpace(name))) {
	case ModeText:
		return ModeText
	case ModeMarkdown, "md":
		return ModeMarkdown
	case ModeJSON:
		return ModeJSON
	default:
		return ModeAuto
	}
}

// Styles holds the lipgloss styles used in text mode.
type Styles struct {
	Header1       lipgloss.Style
	Header2       lipgloss.Style
	Bold          lipgloss.Style
	Muted         lipgloss.Style
	Success       lipgloss.Style
	Warning       lipgloss.Style
	Error         lipgloss.Style
	StatusSuccess lipgloss.Style
	StatusFailed  lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) *Styles {
	return &Styles{
		Header1:       r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Header2:       r.NewStyle().Bold(true),
		Bold:          r.NewStyle().Bold(true),
		Muted:         r.NewStyle().Foreground(lipgloss.Color("8")),
		Success:       r.NewStyle().Foreground(lipgloss.Color("10")),
		Warning:       r.NewStyle().Foreground(lipgloss.Color("11")),
		Error:         r.NewStyle().Foreground(lipgloss.Color("9")),
		StatusSuccess: r.NewStyle().Foreground(lipgloss.Color("10")).SetString("✓"),
		StatusFailed:  r.NewStyle().Foreground(lipgloss.Color("9")).SetString("✗"),
	}
}

// Renderer writes command output in the selected mode.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	mode   OutputMode
	styles *Styles
}

// NewRenderer creates a renderer, detecting whether out is a terminal.
func NewRenderer(out, errOut io.Writer, mode OutputMode) *Renderer {
	return NewRendererWithTTY(out, errOut, isTerminal(out), mode)
}

// NewRendererWithTTY creates a renderer with an explicit terminal state.
// ModeAuto resolves to text on a terminal and markdown otherwise. Colors are
// only emitted in text mode on a terminal and never when NO_COLOR is set.
func NewRendererWithTTY(out, errOut io.Writer, isTTY bool, mode OutputMode) *Renderer {
	if mode == "" || mode == ModeAuto {
		mode = ModeMarkdown
		if isTTY {
			mode = ModeText
		}
	}

	lr := lipgloss.NewRenderer(out)
	if !isTTY || mode != ModeText || termenv.EnvNoColor() {
		lr.SetColorProfile(termenv.Ascii)
	} else {
		lr.SetColorProfile(termenv.ANSI256)
	}

	return &Renderer{
		out:    out,
		errOut: errOut,
		mode:   mode,
		styles: newStyles(lr),
	}
}

// DisableColor strips styling from all further output.
func (r *Renderer) DisableColor() {
	lr := lipgloss.NewRenderer(r.out)
	lr.SetColorProfile(termenv.Ascii)
	r.styles = newStyles(lr)
}

// Mode returns the resolved output mode.
func (r *Renderer) Mode() OutputMode { return r.mode }

// Styles returns the text-mode styles.
func (r *Renderer) Styles() *Styles { return r.styles }

// Out returns the standard output writer.
func (r *Renderer) Out() io.Writer { return r.out }

// Println writes a line to standard output.
func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.out, a...)
}

// Printf writes formatted output to standard output.
func (r *Renderer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.out, format, a...)
}

// Header prints a heading of the given level.
func (r *Renderer) Header(level int, text string) {
	if r.mode == ModeMarkdown {
		r.Println(strings.Repeat("#", max(level, 1)) + " " + text)
		return
	}
	if level <= 1 {
		r.Println(r.styles.Header1.Render(text))
		return
	}
	r.Println(r.styles.Header2.Render(text))
}

// Success prints a success message.
func (r *Renderer) Success(msg string) {
	if r.mode == ModeMarkdown {
		r.Println("**" + msg + "**")
		return
	}
	r.Println(r.styles.Success.Render(msg))
}

// Warn prints a warning to standard error.
func (r *Renderer) Warn(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.Warning.Render("warning: "+msg))
}

// StatusLine prints one item with a status marker ("success" or "failed")
// and an optional detail.
func (r *Renderer) StatusLine(name, status, detail string) {
	if r.mode == ModeMarkdown {
		line := "- " + name
		if status != "success" {
			line += " (" + status + ")"
		}
		if detail != "" {
			line += ": " + detail
		}
		r.Println(line)
		return
	}

	icon := r.styles.StatusSuccess.String()
	if status != "success" {
		icon = r.styles.StatusFailed.String()
	}
	line := "  " + icon + " " + name
	if detail != "" {
		line += " " + r.styles.Muted.Render(detail)
	}
	r.Println(line)
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
