package cli

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

// columnGap is the space between columns.
const columnGap = 2

var ansiRE = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// Table writes column-aligned output. Rows are buffered until Flush, which
// sizes the columns to their content, narrows the widest ones to fit the
// terminal, and word-wraps cells that no longer fit. Headers and a dash
// divider are only written when the table has rows, so empty tables
// produce no output.
type Table struct {
	out     io.Writer
	headers []string
	rows    [][]string
	prefix  string
}

// NewTable creates a table with the given column headers, writing to stdout.
func NewTable(headers ...string) *Table {
	return &Table{
		out:     os.Stdout,
		headers: headers,
	}
}

// WithWriter sends the table to w instead of stdout.
func (t *Table) WithWriter(w io.Writer) *Table {
	t.out = w
	return t
}

// WithPrefix sets a string prepended to each line (headers, divider, rows).
// Useful for indenting sub-tables within larger output.
func (t *Table) WithPrefix(prefix string) *Table {
	t.prefix = prefix
	return t
}

// Row adds a row. Missing trailing values are blank.
func (t *Table) Row(values ...string) {
	row := make([]string, len(t.headers))
	copy(row, values)
	t.rows = append(t.rows, row)
}

// Flush writes the table. If no rows were added, nothing is printed.
func (t *Table) Flush() {
	if len(t.rows) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = visualLen(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if n := visualLen(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}
	if tw := terminalWidth(t.out); tw > 0 {
		widths = capWidths(widths, t.headers, tw, visualLen(t.prefix))
	}

	dividers := make([]string, len(t.headers))
	for i, h := range t.headers {
		dividers[i] = strings.Repeat("-", len(h))
	}
	t.writeRow(widths, t.headers)
	t.writeRow(widths, dividers)
	for _, row := range t.rows {
		t.writeRow(widths, row)
	}
	t.rows = nil
}

func (t *Table) writeRow(widths []int, cells []string) {
	wrapped := make([][]string, len(cells))
	lines := 1
	for i, cell := range cells {
		wrapped[i] = wrapCell(cell, widths[i])
		if len(wrapped[i]) > lines {
			lines = len(wrapped[i])
		}
	}

	for l := 0; l < lines; l++ {
		var b strings.Builder
		b.WriteString(t.prefix)
		for i := range cells {
			var s string
			if l < len(wrapped[i]) {
				s = wrapped[i][l]
			}
			if i == len(cells)-1 {
				b.WriteString(s)
				break
			}
			b.WriteString(s)
			b.WriteString(strings.Repeat(" ", widths[i]-visualLen(s)+columnGap))
		}
		fmt.Fprintln(t.out, strings.TrimRight(b.String(), " "))
	}
}

// terminalWidth returns the width of w if it is a terminal, else 0.
func terminalWidth(w io.Writer) int {
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

// capWidths narrows the widest columns, one character at a time, until the
// table fits in termWidth. No column goes below its header width.
func capWidths(widths []int, headers []string, termWidth, prefix int) []int {
	out := append([]int(nil), widths...)
	total := prefix + columnGap*(len(out)-1)
	for _, w := range out {
		total += w
	}

	for total > termWidth {
		widest := -1
		for i, w := range out {
			if w <= visualLen(headers[i]) {
				continue
			}
			if widest < 0 || w > out[widest] {
				widest = i
			}
		}
		if widest < 0 {
			break
		}
		out[widest]--
		total--
	}
	return out
}

// visualLen is the printed width of s, ignoring ANSI color codes.
func visualLen(s string) int {
	return utf8.RuneCountInString(ansiRE.ReplaceAllString(s, ""))
}

// wrapCell splits s into lines of at most width characters, breaking at
// spaces where possible. Color codes are kept only when s fits unchanged.
func wrapCell(s string, width int) []string {
	if width <= 0 || visualLen(s) <= width {
		return []string{s}
	}

	var lines []string
	var cur []rune
	for _, word := range strings.Fields(ansiRE.ReplaceAllString(s, "")) {
		w := []rune(word)
		if len(cur) > 0 && len(cur)+1+len(w) <= width {
			cur = append(cur, ' ')
			cur = append(cur, w...)
			continue
		}
		if len(cur) > 0 {
			lines = append(lines, string(cur))
			cur = nil
		}
		for len(w) > width {
			lines = append(lines, string(w[:width]))
			w = w[width:]
		}
		cur = w
	}
	if len(cur) > 0 {
		lines = append(lines, string(cur))
	}
	return lines
}
