// Package records reads property rows from a spreadsheet CSV export and
// stores them as a batch.
package records

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/TobiSchelling/condrater/internal/config"
	"github.com/TobiSchelling/condrater/internal/database"
)

const bom = "\ufeff"

// Window selects a slice of data rows. Limit 0 means no limit.
type Window struct {
	Offset int
	Limit  int
}

// Row is one data row mapped onto record fields.
type Row struct {
	Line    int
	Key     string
	Address string
	City    string
	State   string
	Zip     string
	Primary database.Narrative
	Areas   []database.Narrative
}

// CleanKey strips '#' characters and surrounding whitespace from a record
// key, so "#1001 " and "1001" identify the same property.
func CleanKey(key string) string {
	return strings.TrimSpace(strings.ReplaceAll(key, "#", ""))
}

type columns struct {
	key, address, city, state, zip, primary int
	areas                                   []int
}

// ReadCSV reads rows from r using the column mapping in in. The key and
// primary columns must exist; other missing columns read as empty.
func ReadCSV(r io.Reader, in config.Input, w Window) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty CSV: no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], bom)
	}

	cols, err := mapColumns(header, in)
	if err != nil {
		return nil, err
	}

	var rows []Row
	index := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV: %w", err)
		}
		line, _ := cr.FieldPos(0)

		if isEmptyRow(rec) {
			continue
		}
		index++
		if index <= w.Offset {
			continue
		}
		if w.Limit > 0 && len(rows) >= w.Limit {
			break
		}

		row := Row{
			Line:    line,
			Key:     CleanKey(cell(rec, cols.key)),
			Address: strings.TrimSpace(cell(rec, cols.address)),
			City:    strings.TrimSpace(cell(rec, cols.city)),
			State:   strings.TrimSpace(cell(rec, cols.state)),
			Zip:     strings.TrimSpace(cell(rec, cols.zip)),
			Primary: database.Narrative{Name: in.Primary.Name, Text: strings.TrimSpace(cell(rec, cols.primary))},
		}
		if row.Key == "" {
			row.Key = "row-" + strconv.Itoa(line)
		}
		for i, a := range in.Areas {
			row.Areas = append(row.Areas, database.Narrative{
				Name: a.Name,
				Text: strings.TrimSpace(cell(rec, cols.areas[i])),
			})
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func mapColumns(header []string, in config.Input) (*columns, error) {
	find := func(name string) int {
		if name == "" {
			return -1
		}
		for i, h := range header {
			if strings.TrimSpace(h) == name {
				return i
			}
		}
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				return i
			}
		}
		return -1
	}

	c := &columns{
		key:     find(in.KeyColumn),
		address: find(in.AddressColumn),
		city:    find(in.CityColumn),
		state:   find(in.StateColumn),
		zip:     find(in.ZipColumn),
		primary: find(in.Primary.Column),
	}
	if c.key < 0 {
		return nil, fmt.Errorf("key column %q not found in header", in.KeyColumn)
	}
	if c.primary < 0 {
		return nil, fmt.Errorf("primary column %q not found in header", in.Primary.Column)
	}
	for _, a := range in.Areas {
		idx := find(a.Column)
		if idx < 0 {
			log.Printf("Column %q not found; %s will read as blank", a.Column, a.Name)
		}
		c.areas = append(c.areas, idx)
	}
	return c, nil
}

func cell(rec []string, idx int) string {
	if idx < 0 || idx >= len(rec) {
		return ""
	}
	return rec[idx]
}

func isEmptyRow(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
