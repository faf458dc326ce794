package store

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
)

var ErrLoadFailure = errors.New("load failure")

// LoadError describes why a dataset could not be turned into a store.
type LoadError struct {
	Reason string
	Report *LoadReport
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s, %s", e.Reason, ErrLoadFailure.Error())
}

func (e *LoadError) Unwrap() error {
	return ErrLoadFailure
}

// DropReason names why a row was excluded from the store.
type DropReason string

const (
	DropMissingField    DropReason = "missing_field"
	DropNonNumeric      DropReason = "non_numeric_demand"
	DropInvalidDemand   DropReason = "invalid_demand"
	DropUnparseableDate DropReason = "unparseable_date"
)

const maxDroppedSamples = 10

// DroppedRow records a rejected input row and its position in the input.
type DroppedRow struct {
	Index  int
	Row    Row
	Reason DropReason
}

// LoadReport summarizes a load. Kept + Dropped == Total.
type LoadReport struct {
	Total   int
	Kept    int
	Dropped int
	Reasons map[DropReason]int
	Samples []DroppedRow
}

func newLoadReport(total int) *LoadReport {
	return &LoadReport{
		Total:   total,
		Reasons: make(map[DropReason]int),
	}
}

func (r *LoadReport) drop(idx int, row Row, reason DropReason) {
	r.Dropped++
	r.Reasons[reason]++
	if len(r.Samples) < maxDroppedSamples {
		r.Samples = append(r.Samples, DroppedRow{Index: idx, Row: row, Reason: reason})
	}
}

func (r *LoadReport) TablePrint(w io.Writer) error {
	if r == nil {
		return nil
	}
	tbl := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tbl, "Total:\t%d\t\n", r.Total)
	fmt.Fprintf(tbl, "Kept:\t%d\t\n", r.Kept)
	fmt.Fprintf(tbl, "Dropped:\t%d\t\n", r.Dropped)

	reasons := make([]string, 0, len(r.Reasons))
	for reason := range r.Reasons {
		reasons = append(reasons, string(reason))
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		fmt.Fprintf(tbl, "  %s:\t%d\t\n", reason, r.Reasons[DropReason(reason)])
	}
	return tbl.Flush()
}
