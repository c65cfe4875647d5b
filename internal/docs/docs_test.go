package docs

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/require"
	"github.com/vinodismyname/sheetrelay/internal/fetch"
	"github.com/vinodismyname/sheetrelay/pkg/result"
	"github.com/xuri/excelize/v2"
)

const slideTable = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
<p:cSld><p:spTree>
<p:sp><p:txBody><a:p><a:r><a:t>Quarterly results</a:t></a:r></a:p></p:txBody></p:sp>
<p:graphicFrame><a:graphic><a:graphicData><a:tbl>
<a:tr><a:tc><a:txBody><a:p><a:r><a:t>Region</a:t></a:r></a:p></a:txBody></a:tc><a:tc><a:txBody><a:p><a:r><a:t>Sales</a:t></a:r></a:p></a:txBody></a:tc></a:tr>
<a:tr><a:tc><a:txBody><a:p><a:r><a:t>North</a:t></a:r></a:p></a:txBody></a:tc><a:tc><a:txBody><a:p><a:r><a:t> 120 </a:t></a:r></a:p></a:txBody></a:tc></a:tr>
</a:tbl></a:graphicData></a:graphic></p:graphicFrame>
</p:spTree></p:cSld></p:sld>`

const slideNoTable = `<?xml version="1.0" encoding="UTF-8"?>
<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
<p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>Title only</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`

const docBody = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:r><w:t>Intro</w:t></w:r></w:p>
<w:tbl>
<w:tr><w:tc><w:p><w:r><w:t>Name</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>Notes</w:t></w:r></w:p></w:tc></w:tr>
<w:tr><w:tc><w:p><w:r><w:t>Ada</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>line one</w:t></w:r></w:p><w:p><w:r><w:t>line two</w:t></w:r></w:p></w:tc></w:tr>
</w:tbl>
<w:tbl><w:tr><w:tc><w:p><w:r><w:t>=SUM(A1:A2)</w:t></w:r></w:p></w:tc></w:tr></w:tbl>
</w:body></w:document>`

const docRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0o600))
	return p
}

func pptxBytes(t *testing.T) []byte {
	return zipBytes(t, map[string]string{
		"ppt/slides/slide10.xml":           slideTable,
		"ppt/slides/slide2.xml":            slideTable,
		"ppt/slides/slide1.xml":            slideNoTable,
		"ppt/slides/_rels/slide1.xml.rels": docRels,
	})
}

func TestExtractPPTX(t *testing.T) {
	file := writeFile(t, t.TempDir(), "deck.pptx", pptxBytes(t))
	tables, err := ExtractFile(file)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	require.Equal(t, "slide 2", tables[0].Source)
	require.Equal(t, "slide 10", tables[1].Source)
	require.Equal(t, [][]string{{"Region", "Sales"}, {"North", "120"}}, tables[0].Rows)
	require.Equal(t, 2, tables[0].Columns())
}

func TestExtractDOCX(t *testing.T) {
	file := writeFile(t, t.TempDir(), "report.docx", zipBytes(t, map[string]string{
		"word/document.xml":            docBody,
		"word/_rels/document.xml.rels": docRels,
	}))
	tables, err := ExtractFile(file)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	require.Equal(t, "table 1", tables[0].Source)
	require.Equal(t, [][]string{{"Name", "Notes"}, {"Ada", "line one\nline two"}}, tables[0].Rows)
	require.Equal(t, [][]string{{"=SUM(A1:A2)"}}, tables[1].Rows)
}

func TestScanNestedTable(t *testing.T) {
	grids, err := scanXMLTables(bytes.NewReader([]byte(`<w:body xmlns:w="w">
<w:tbl><w:tr><w:tc><w:p><w:r><w:t>outer</w:t></w:r></w:p>
<w:tbl><w:tr><w:tc><w:p><w:r><w:t>inner</w:t></w:r></w:p></w:tc></w:tr></w:tbl>
</w:tc><w:tc><w:p><w:r><w:t>b</w:t></w:r></w:p></w:tc></w:tr></w:tbl></w:body>`)))
	require.NoError(t, err)
	require.Equal(t, [][][]string{{{"outer\ninner", "b"}}}, grids)
}

func TestGroupRows(t *testing.T) {
	text := func(x float64, s string) pdf.Text {
		return pdf.Text{X: x, W: 5 * float64(len(s)), S: s, FontSize: 10}
	}
	lines := [][]pdf.Text{
		{text(50, "Monthly"), text(87, "report")},
		{text(50, "Item"), text(200, "Qty"), text(300, "Price")},
		{text(200, "3"), text(50, "Apples"), text(300, "1.20")},
		{text(50, "Total"), text(80, "due")},
		{text(50, "A"), text(200, "B")},
	}
	tables := groupRows(lines)
	require.Len(t, tables, 1)
	require.Equal(t, [][]string{{"Item", "Qty", "Price"}, {"Apples", "3", "1.20"}}, tables[0])

	require.Equal(t, []string{"Monthly report"}, splitCells(lines[0]))
	require.Nil(t, splitCells(nil))
}

func TestSave(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out", "tables.xlsx")
	summaries, err := Save([]Table{
		{Source: "table 1", Rows: [][]string{{"h1", "h2"}, {"=1+1", "x"}}},
		{Source: "table 2", Rows: [][]string{{"only"}}},
	}, out)
	require.NoError(t, err)
	require.Equal(t, []SheetSummary{
		{SheetName: "Table_1", Source: "table 1", Rows: 2, Columns: 2},
		{SheetName: "Table_2", Source: "table 2", Rows: 1, Columns: 1},
	}, summaries)

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, []string{"Table_1", "Table_2"}, f.GetSheetList())
	formula, err := f.GetCellFormula("Table_1", "A2")
	require.NoError(t, err)
	require.Empty(t, formula)
	v, err := f.GetCellValue("Table_1", "A2")
	require.NoError(t, err)
	require.Equal(t, "=1+1", v)
}

func TestExtractor(t *testing.T) {
	deck := pptxBytes(t)
	empty := zipBytes(t, map[string]string{"ppt/slides/slide1.xml": slideNoTable})
	mux := http.NewServeMux()
	mux.HandleFunc("/deck.pptx", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write(deck) })
	mux.HandleFunc("/empty.pptx", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write(empty) })
	mux.HandleFunc("/archive.zip", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write(empty) })
	mux.HandleFunc("/notes.txt", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("plain text")) })
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tmp := t.TempDir()
	ex := NewExtractor(fetch.New(fetch.Options{TempDir: tmp}))
	ctx := context.Background()
	out := filepath.Join(t.TempDir(), DefaultOutputName(srv.URL+"/deck.pptx"))

	rep, err := ex.Extract(ctx, srv.URL+"/deck.pptx", out)
	require.NoError(t, err)
	require.Equal(t, 2, rep.TotalTables)
	require.Equal(t, out, rep.OutputFile)
	require.Equal(t, "deck_extracted_tables.xlsx", filepath.Base(out))

	cases := map[string]result.Kind{
		"/empty.pptx":  result.Data,
		"/archive.zip": result.Validation,
		"/notes.txt":   result.Fetch,
		"/missing.pdf": result.Fetch,
	}
	for p, want := range cases {
		_, err := ex.Extract(ctx, srv.URL+p, filepath.Join(t.TempDir(), "x.xlsx"))
		require.Error(t, err, p)
		kind, ok := result.Classify(err)
		require.True(t, ok, p)
		require.Equal(t, want, kind, p)
	}

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	require.Empty(t, entries, "downloaded documents must be removed")
}

func TestDefaultOutputName(t *testing.T) {
	require.Equal(t, "report_extracted_tables.xlsx", DefaultOutputName("https://example.com/a/report.pdf?x=1"))
	require.Equal(t, "document_extracted_tables.xlsx", DefaultOutputName("https://example.com/"))
}
