package display

import (
	"bytes"
	"strings"
	"testing"
)

func TestTable_Render(t *testing.T) {
	table := NewTable(NewColorSystem(DarkColorTheme(), false), "ITEM", "STATE")
	table.AddRow(Cell{Text: "20250101"}, Cell{Text: "removed"})
	table.AddRow(Cell{Text: "A"}, Cell{Text: "archived"})

	want := "ITEM      STATE\n" +
		"20250101  removed\n" +
		"A         archived\n"
	if got := table.Render(); got != want {
		t.Errorf("Render() =\n%q\nwant\n%q", got, want)
	}
	if table.Len() != 2 {
		t.Errorf("Expected 2 rows, got %d", table.Len())
	}
}

func TestTable_RightAlignment(t *testing.T) {
	table := NewTable(NewColorSystem(DarkColorTheme(), false), "TYPE", "COUNT")
	table.SetColumnAlignment(1, AlignRight)
	table.AddRow(Cell{Text: "daily"}, Cell{Text: "7"})

	lines := strings.Split(strings.TrimSpace(table.Render()), "\n")
	if lines[1] != "daily      7" {
		t.Errorf("Expected right aligned count, got %q", lines[1])
	}
}

func TestTable_TruncatesLastColumn(t *testing.T) {
	table := NewTable(NewColorSystem(DarkColorTheme(), false), "ITEM", "DETAIL")
	table.MaxWidth = 20
	table.AddRow(Cell{Text: "A"}, Cell{Text: "upload failed: connection reset by peer"})

	for _, line := range strings.Split(strings.TrimRight(table.Render(), "\n"), "\n") {
		if len(line) > 20 {
			t.Errorf("Line exceeds max width: %q", line)
		}
	}
	if !strings.Contains(table.Render(), "...") {
		t.Error("Expected truncation marker")
	}
}

func TestTable_ColorDoesNotChangeLayout(t *testing.T) {
	plain := NewTable(NewColorSystem(DarkColorTheme(), false), "ITEM", "STATE")
	colored := NewTable(NewColorSystem(DarkColorTheme(), true), "ITEM", "STATE")
	for _, tbl := range []*Table{plain, colored} {
		tbl.AddRow(Cell{Text: "A"}, Cell{Text: "uploaded", Color: ColorSuccess})
	}

	out := colored.Render()
	if !strings.Contains(out, "\x1b[") {
		t.Fatal("Expected escape codes with color enabled")
	}
	if stripANSI(out) != plain.Render() {
		t.Errorf("Colored layout differs:\n%q\n%q", stripANSI(out), plain.Render())
	}
}

func TestTerminalWidth_NonTerminal(t *testing.T) {
	if w := TerminalWidth(&bytes.Buffer{}); w != 0 {
		t.Errorf("Expected 0 for a buffer, got %d", w)
	}
}

func stripANSI(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == 0x1b {
			for i < len(s) && s[i] != 'm' {
				i++
			}
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
