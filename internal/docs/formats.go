package docs

import (
	"archive/zip"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

func extractPPTX(file string) ([]Table, error) {
	zr, err := zip.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("open pptx: %w", err)
	}
	defer zr.Close()

	type slide struct {
		num int
		f   *zip.File
	}
	var slides []slide
	for _, f := range zr.File {
		dir, name := path.Split(f.Name)
		if dir != "ppt/slides/" || !strings.HasPrefix(name, "slide") || path.Ext(name) != ".xml" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "slide"), ".xml"))
		if err != nil {
			continue
		}
		slides = append(slides, slide{num: n, f: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var tables []Table
	for _, s := range slides {
		rc, err := s.f.Open()
		if err != nil {
			return nil, fmt.Errorf("read slide %d: %w", s.num, err)
		}
		grids, err := scanXMLTables(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("parse slide %d: %w", s.num, err)
		}
		for _, g := range grids {
			tables = append(tables, Table{Source: fmt.Sprintf("slide %d", s.num), Rows: g})
		}
	}
	return tables, nil
}

func extractDOCX(file string) ([]Table, error) {
	doc, err := docx.ReadDocxFile(file)
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	defer doc.Close()

	grids, err := scanXMLTables(strings.NewReader(doc.Editable().GetContent()))
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}
	tables := make([]Table, 0, len(grids))
	for i, g := range grids {
		tables = append(tables, Table{Source: fmt.Sprintf("table %d", i+1), Rows: g})
	}
	return tables, nil
}
