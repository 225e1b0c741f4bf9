package output

import (
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
)

// preferredColumns puts the identifying fields first in tables.
var preferredColumns = []string{
	"item_id", "name", "sku",
	"warehouse_id", "warehouse_name",
	"available_stock", "stock_on_hand",
	"current_quantity", "target_quantity", "delta", "noop",
	"status",
}

// Renderer handles styled terminal output.
type Renderer struct {
	locale Locale

	Summary lipgloss.Style
	Muted   lipgloss.Style
	Data    lipgloss.Style
	Error   lipgloss.Style
	Hint    lipgloss.Style
	Header  lipgloss.Style
	Cell    lipgloss.Style
}

// NewRenderer creates a renderer. Styling is enabled when writing to a TTY,
// or when forceStyled is true.
func NewRenderer(w io.Writer, forceStyled bool) *Renderer {
	r := &Renderer{locale: DetectLocale()}
	if !forceStyled && !isTTY(w) {
		r.Summary = lipgloss.NewStyle()
		r.Muted = lipgloss.NewStyle()
		r.Data = lipgloss.NewStyle()
		r.Error = lipgloss.NewStyle()
		r.Hint = lipgloss.NewStyle()
		r.Header = lipgloss.NewStyle()
		r.Cell = lipgloss.NewStyle()
		return r
	}

	r.Summary = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FAFFF")).Bold(true)
	r.Muted = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
	r.Data = lipgloss.NewStyle().Foreground(lipgloss.Color("#E4E4E4"))
	r.Error = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F")).Bold(true)
	r.Hint = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080")).Italic(true)
	r.Header = lipgloss.NewStyle().Foreground(lipgloss.Color("#E4E4E4")).Bold(true).Padding(0, 1)
	r.Cell = lipgloss.NewStyle().Foreground(lipgloss.Color("#E4E4E4")).Padding(0, 1)
	return r
}

// RenderResponse renders a success response to the writer.
func (r *Renderer) RenderResponse(w io.Writer, resp *Response) error {
	var b strings.Builder

	if resp.Summary != "" {
		b.WriteString(r.Summary.Render(resp.Summary))
		b.WriteString("\n\n")
	}

	r.renderData(&b, NormalizeData(resp.Data))

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderError renders an error response to the writer.
func (r *Renderer) RenderError(w io.Writer, resp *ErrorResponse) error {
	var b strings.Builder

	b.WriteString(r.Error.Render("Error: " + resp.Error))
	b.WriteString("\n")
	if resp.Status != 0 {
		b.WriteString(r.Muted.Render(fmt.Sprintf("HTTP %d", resp.Status)))
		b.WriteString("\n")
	}
	if resp.Hint != "" {
		b.WriteString(r.Hint.Render("Hint: " + resp.Hint))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Renderer) renderData(b *strings.Builder, data any) {
	switch d := data.(type) {
	case []any:
		if len(d) == 0 {
			b.WriteString(r.Muted.Render("(no results)"))
			b.WriteString("\n")
			return
		}
		if rows := toMapSlice(d); rows != nil {
			r.renderTable(b, rows)
			return
		}
		for _, v := range d {
			b.WriteString(r.Data.Render("- " + r.formatValue(v)))
			b.WriteString("\n")
		}
	case map[string]any:
		r.renderObject(b, d)
	case nil:
		b.WriteString(r.Muted.Render("(no data)"))
		b.WriteString("\n")
	default:
		b.WriteString(r.Data.Render(r.formatValue(d)))
		b.WriteString("\n")
	}
}

func (r *Renderer) renderObject(b *strings.Builder, obj map[string]any) {
	keys := orderedKeys([]map[string]any{obj})
	width := 0
	for _, k := range keys {
		width = max(width, len(k))
	}
	for _, k := range keys {
		b.WriteString(r.Muted.Render(fmt.Sprintf("%-*s", width, k)))
		b.WriteString("  ")
		b.WriteString(r.Data.Render(r.formatValue(obj[k])))
		b.WriteString("\n")
	}
}

func (r *Renderer) renderTable(b *strings.Builder, rows []map[string]any) {
	cols := orderedKeys(rows)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(cols...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return r.Header
			}
			return r.Cell
		})
	for _, row := range rows {
		cells := make([]string, len(cols))
		for i, c := range cols {
			cells[i] = r.formatValue(row[c])
		}
		t.Row(cells...)
	}

	b.WriteString(t.String())
	b.WriteString("\n")
}

func (r *Renderer) formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case float64:
		return r.locale.FormatNumber(val)
	case string:
		return val
	case bool:
		if val {
			return "yes"
		}
		return "no"
	case []any:
		return fmt.Sprintf("[%d]", len(val))
	case map[string]any:
		return fmt.Sprintf("{%d}", len(val))
	default:
		return fmt.Sprintf("%v", val)
	}
}

// orderedKeys returns the union of keys, preferred columns first,
// remaining keys sorted. Nested values are skipped for multi-row tables.
func orderedKeys(rows []map[string]any) []string {
	seen := make(map[string]bool)
	for _, row := range rows {
		for k, v := range row {
			if len(rows) > 1 {
				switch v.(type) {
				case []any, map[string]any:
					continue
				}
			}
			seen[k] = true
		}
	}

	var keys []string
	for _, k := range preferredColumns {
		if seen[k] {
			keys = append(keys, k)
		}
	}
	var rest []string
	for k := range seen {
		if !slices.Contains(preferredColumns, k) {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func toMapSlice(items []any) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil
		}
		out = append(out, m)
	}
	return out
}
