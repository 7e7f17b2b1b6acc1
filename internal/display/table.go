package display

import (
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

// Cell is one table cell with an optional color role
type Cell struct {
	Text  string
	Color Color
}

// Alignment represents column alignment options
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
)

// Table renders rows as aligned columns under a header line. The last
// column is truncated to fit MaxWidth when it is set.
type Table struct {
	headers    []string
	rows       [][]Cell
	alignments map[int]Alignment
	colors     *ColorSystem

	Padding  int
	MaxWidth int
}

// NewTable creates a table with the given headers
func NewTable(colors *ColorSystem, headers ...string) *Table {
	return &Table{
		headers:    headers,
		alignments: make(map[int]Alignment),
		colors:     colors,
		Padding:    2,
	}
}

// SetColumnAlignment sets the alignment for a specific column
func (t *Table) SetColumnAlignment(column int, alignment Alignment) {
	t.alignments[column] = alignment
}

// AddRow adds a row of cells
func (t *Table) AddRow(cells ...Cell) {
	t.rows = append(t.rows, cells)
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.rows)
}

// Render returns the formatted table
func (t *Table) Render() string {
	if len(t.headers) == 0 {
		return ""
	}
	widths := t.columnWidths()

	var b strings.Builder
	header := make([]Cell, len(t.headers))
	for i, h := range t.headers {
		header[i] = Cell{Text: h, Color: ColorPrimary}
	}
	t.renderRow(&b, header, widths)
	for _, row := range t.rows {
		t.renderRow(&b, row, widths)
	}
	return b.String()
}

// RenderTo renders the table to w
func (t *Table) RenderTo(w io.Writer) error {
	_, err := io.WriteString(w, t.Render())
	return err
}

func (t *Table) columnWidths() []int {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range t.rows {
		for i, c := range row {
			if i < len(widths) {
				if n := utf8.RuneCountInString(c.Text); n > widths[i] {
					widths[i] = n
				}
			}
		}
	}

	if t.MaxWidth > 0 {
		last := len(widths) - 1
		used := 0
		for i := 0; i < last; i++ {
			used += widths[i] + t.Padding
		}
		if room := t.MaxWidth - used; room < widths[last] {
			if room < len(t.headers[last]) {
				room = len(t.headers[last])
			}
			widths[last] = room
		}
	}
	return widths
}

func (t *Table) renderRow(b *strings.Builder, row []Cell, widths []int) {
	var line strings.Builder
	for i, width := range widths {
		var c Cell
		if i < len(row) {
			c = row[i]
		}
		text := truncate(c.Text, width)
		pad := strings.Repeat(" ", width-utf8.RuneCountInString(text))

		// Padding is added before coloring so escape codes do not skew widths
		if t.alignments[i] == AlignRight {
			line.WriteString(pad + t.colors.Colorize(text, c.Color))
		} else {
			line.WriteString(t.colors.Colorize(text, c.Color) + pad)
		}
		if i < len(widths)-1 {
			line.WriteString(strings.Repeat(" ", t.Padding))
		}
	}
	b.WriteString(strings.TrimRight(line.String(), " "))
	b.WriteString("\n")
}

func truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	runes := []rune(s)
	if width > 3 {
		return string(runes[:width-3]) + "..."
	}
	return string(runes[:width])
}

// TerminalWidth returns the width of w when it is a terminal, else 0
func TerminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}
