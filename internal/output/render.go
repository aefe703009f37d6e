package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/term"
)

// Renderer handles styled terminal output.
type Renderer struct {
	width  int
	styled bool

	Summary lipgloss.Style
	Key     lipgloss.Style
	Muted   lipgloss.Style
	Error   lipgloss.Style
	Hint    lipgloss.Style
}

// NewRenderer creates a renderer. Styling is enabled when writing to a TTY,
// or when forceStyled is true. NO_COLOR disables it.
func NewRenderer(w io.Writer, forceStyled bool) *Renderer {
	width, tty := terminalInfo(w)
	styled := (tty || forceStyled) && os.Getenv("NO_COLOR") == ""

	r := &Renderer{width: width, styled: styled}
	if styled {
		r.Summary = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4F1F")).Bold(true)
		r.Key = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FAFD7"))
		r.Muted = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
		r.Error = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F")).Bold(true)
		r.Hint = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080")).Italic(true)
	}
	return r
}

// paint applies style only when styling is enabled.
func (r *Renderer) paint(style lipgloss.Style, s string) string {
	if !r.styled {
		return s
	}
	return style.Render(s)
}

// terminalInfo returns the terminal width and whether the writer is a TTY.
func terminalInfo(w io.Writer) (width int, isTTY bool) {
	width = 80

	if f, ok := w.(*os.File); ok {
		if w, _, err := term.GetSize(f.Fd()); err == nil && w >= 40 {
			width = w
		}
		isTTY = term.IsTerminal(f.Fd())
	}
	return width, isTTY
}

// RenderResponse renders a success response to the writer.
func (r *Renderer) RenderResponse(w io.Writer, resp *Response) error {
	var b strings.Builder

	if resp.Summary != "" {
		b.WriteString(r.paint(r.Summary, resp.Summary))
		b.WriteString("\n\n")
	}

	r.renderData(&b, NormalizeData(resp.Data))

	if len(resp.Breadcrumbs) > 0 {
		b.WriteString("\n")
		for _, bc := range resp.Breadcrumbs {
			fmt.Fprintf(&b, "%s  %s\n", r.paint(r.Muted, bc.Cmd), r.paint(r.Hint, bc.Description))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderError renders an error response to the writer.
func (r *Renderer) RenderError(w io.Writer, resp *ErrorResponse) error {
	var b strings.Builder
	b.WriteString(r.paint(r.Error, "Error: "+resp.Error))
	b.WriteString("\n")
	if resp.Hint != "" {
		b.WriteString(r.paint(r.Hint, resp.Hint))
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Renderer) renderData(b *strings.Builder, data any) {
	switch d := data.(type) {
	case nil:
	case map[string]any:
		r.renderObject(b, d)
	case []any:
		for i, item := range d {
			if i > 0 {
				b.WriteString(r.paint(r.Muted, strings.Repeat("─", min(r.width, 40))))
				b.WriteString("\n")
			}
			r.renderData(b, item)
		}
	default:
		fmt.Fprintf(b, "%v\n", d)
	}
}

func (r *Renderer) renderObject(b *strings.Builder, obj map[string]any) {
	keys := make([]string, 0, len(obj))
	width := 0
	for k := range obj {
		keys = append(keys, k)
		width = max(width, len(k))
	}
	sort.Strings(keys)

	for _, k := range keys {
		label := r.paint(r.Key, fmt.Sprintf("%-*s", width, k))
		fmt.Fprintf(b, "%s  %s\n", label, formatValue(obj[k]))
	}
}

// formatValue renders nested values compactly on one line.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	case bool:
		return fmt.Sprintf("%t", val)
	default:
		out, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(out)
	}
}
