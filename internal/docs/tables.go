package docs

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

// Table is a grid of cell text lifted from a document. Source names where it
// was found, e.g. "slide 2" or "page 1".
type Table struct {
	Source string
	Rows   [][]string
}

// Columns is the width of the widest row.
func (t Table) Columns() int {
	n := 0
	for _, r := range t.Rows {
		if len(r) > n {
			n = len(r)
		}
	}
	return n
}

// scanXMLTables collects every top-level table in an OOXML part. DrawingML
// (a:tbl) and WordprocessingML (w:tbl) share the tbl/tr/tc/p/t local names, so
// one scanner serves pptx slides and docx bodies. Tables nested inside a cell
// are flattened into that cell's text.
func scanXMLTables(r io.Reader) ([][][]string, error) {
	dec := xml.NewDecoder(r)
	var (
		tables [][][]string
		rows   [][]string
		row    []string
		cell   strings.Builder
		paras  int
		depth  int // tbl nesting
		inCell bool
		inText bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return tables, nil
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				depth++
				if depth == 1 {
					rows = nil
				}
			case "tr":
				if depth == 1 {
					row = nil
				}
			case "tc":
				if depth == 1 {
					inCell = true
					cell.Reset()
					paras = 0
				}
			case "p":
				if inCell {
					if paras > 0 {
						cell.WriteByte('\n')
					}
					paras++
				}
			case "t":
				inText = inCell
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "tbl":
				if depth == 1 && len(rows) > 0 {
					tables = append(tables, rows)
				}
				depth--
			case "tr":
				if depth == 1 {
					rows = append(rows, row)
				}
			case "tc":
				if depth == 1 {
					row = append(row, strings.TrimSpace(cell.String()))
					inCell = false
				}
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText {
				cell.Write(t)
			}
		}
	}
}
