package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aouyang1/go-demand-forecaster/store"
)

var ErrMissingColumn = errors.New("missing required column")

const (
	ColumnDate       = "date"
	ColumnMedicine   = "medicine"
	ColumnRegion     = "region"
	ColumnUrbanRural = "urban_rural"
	ColumnDemand     = "demand"
)

var requiredColumns = []string{ColumnDate, ColumnMedicine, ColumnRegion, ColumnUrbanRural, ColumnDemand}

// DecodeCSV reads a header row followed by records into raw rows. Columns are matched
// by case-insensitive name and extra columns are ignored. Values are not validated here.
func DecodeCSV(r io.Reader) ([]store.Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty csv, %w", store.ErrLoadFailure)
		}
		return nil, fmt.Errorf("unable to read csv header, %w, %w", err, store.ErrLoadFailure)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF")))
		if _, exists := idx[name]; !exists {
			idx[name] = i
		}
	}
	for _, col := range requiredColumns {
		if _, exists := idx[col]; !exists {
			return nil, fmt.Errorf("%s, %w, %w", col, ErrMissingColumn, store.ErrLoadFailure)
		}
	}

	get := func(rec []string, col string) string {
		i := idx[col]
		if i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	var rows []store.Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("unable to read csv record, %w, %w", err, store.ErrLoadFailure)
		}
		rows = append(rows, store.Row{
			Date:       get(rec, ColumnDate),
			Medicine:   get(rec, ColumnMedicine),
			Region:     get(rec, ColumnRegion),
			UrbanRural: get(rec, ColumnUrbanRural),
			Demand:     get(rec, ColumnDemand),
		})
	}
	return rows, nil
}
