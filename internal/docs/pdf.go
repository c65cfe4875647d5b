package docs

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// minTableRows is the number of consecutive multi-cell rows that count as a table.
const minTableRows = 2

func extractPDF(file string) ([]Table, error) {
	fh, r, err := pdf.Open(file)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer fh.Close()

	var tables []Table
	for n := 1; n <= r.NumPage(); n++ {
		page := r.Page(n)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", n, err)
		}
		lines := make([][]pdf.Text, 0, len(rows))
		for _, row := range rows {
			lines = append(lines, row.Content)
		}
		for _, g := range groupRows(lines) {
			tables = append(tables, Table{Source: fmt.Sprintf("page %d", n), Rows: g})
		}
	}
	return tables, nil
}

// groupRows turns text lines into tables: runs of at least minTableRows lines
// that split into two or more cells.
func groupRows(lines [][]pdf.Text) [][][]string {
	var (
		tables [][][]string
		run    [][]string
	)
	flush := func() {
		if len(run) >= minTableRows {
			tables = append(tables, run)
		}
		run = nil
	}
	for _, line := range lines {
		cells := splitCells(line)
		if len(cells) < 2 {
			flush()
			continue
		}
		run = append(run, cells)
	}
	flush()
	return tables
}

// splitCells orders a line's fragments left to right and starts a new cell
// wherever the horizontal gap is at least one em.
func splitCells(line []pdf.Text) []string {
	frags := make([]pdf.Text, 0, len(line))
	for _, t := range line {
		if t.S != "" {
			frags = append(frags, t)
		}
	}
	if len(frags) == 0 {
		return nil
	}
	sort.SliceStable(frags, func(i, j int) bool { return frags[i].X < frags[j].X })

	var (
		cells []string
		cur   strings.Builder
	)
	end := frags[0].X
	for i, t := range frags {
		em := t.FontSize
		if em <= 0 {
			em = 10
		}
		gap := t.X - end
		if i > 0 {
			switch {
			case gap >= em:
				if s := strings.TrimSpace(cur.String()); s != "" {
					cells = append(cells, s)
				}
				cur.Reset()
			case gap > em*0.15 && !strings.HasSuffix(cur.String(), " "):
				cur.WriteByte(' ')
			}
		}
		cur.WriteString(t.S)
		if e := t.X + t.W; e > end {
			end = e
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		cells = append(cells, s)
	}
	return cells
}
