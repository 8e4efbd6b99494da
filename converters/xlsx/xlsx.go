// Package xlsx writes table sections as worksheets of one workbook. Rows are
// pushed through excelize stream writers, so a sheet is never held in memory
// cell by cell.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/darianmavgo/garsql/converters/common"
)

// MaxRows is the number of data rows placed on one sheet before the table
// continues on the next one. The format allows 1,048,576 rows including the
// header.
const MaxRows = excelize.TotalRows - 1

const maxSheetName = 31

// progressEvery is the row interval between progress calls within a sheet.
const progressEvery = 1000

// Workbook accumulates sheets until WriteTo is called.
type Workbook struct {
	file    *excelize.File
	header  int
	names   map[string]bool
	sheets  int
	maxRows int64
}

// New returns an empty workbook.
func New() (*Workbook, error) {
	f := excelize.NewFile()
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	return &Workbook{file: f, header: header, names: map[string]bool{}, maxRows: MaxRows}, nil
}

// AddTable writes every row of rows to a new sheet named after title, with
// the field names as a header. Absent values are left blank. progress, when
// set, is called every progressEvery rows and after each sheet with the
// running row count.
func (w *Workbook) AddTable(ctx context.Context, title string, rows common.RowSource, progress func(int64)) (int64, error) {
	fields := rows.Fields()
	headerRow := make([]interface{}, len(fields))
	for i, f := range fields {
		headerRow[i] = f
	}
	cells := make([]interface{}, len(fields))

	// The next row is read before a continuation sheet is opened, so a table
	// that fills its last sheet exactly does not leave an empty one behind.
	values, present, err := next(ctx, rows)
	var total int64
	for part := 1; ; part++ {
		name := w.sheetName(title, part)
		sw, serr := w.newSheet(name)
		if serr != nil {
			return total, serr
		}
		if err := sw.SetRow("A1", headerRow, excelize.RowOpts{StyleID: w.header}); err != nil {
			return total, fmt.Errorf("failed to write header of %s: %w", name, err)
		}

		for n := int64(0); err == nil && n < w.maxRows; n++ {
			for i := range cells {
				if present[i] {
					cells[i] = values[i]
				} else {
					cells[i] = nil
				}
			}
			cell, cerr := excelize.CoordinatesToCellName(1, int(n)+2)
			if cerr != nil {
				return total, cerr
			}
			if werr := sw.SetRow(cell, cells); werr != nil {
				return total, fmt.Errorf("failed to write row %d of %s: %w", n+1, name, werr)
			}
			total++
			if progress != nil && total%progressEvery == 0 {
				progress(total)
			}
			values, present, err = next(ctx, rows)
		}
		ferr := sw.Flush()
		if err != nil && !errors.Is(err, io.EOF) {
			return total, err
		}
		if ferr != nil {
			return total, fmt.Errorf("failed to flush sheet %s: %w", name, ferr)
		}
		if progress != nil {
			progress(total)
		}
		if err != nil {
			return total, nil
		}
	}
}

// next reads one row unless ctx is done.
func next(ctx context.Context, rows common.RowSource) ([]string, []bool, error) {
	if ctx.Err() != nil {
		return nil, nil, context.Cause(ctx)
	}
	return rows.Next()
}

func (w *Workbook) newSheet(name string) (*excelize.StreamWriter, error) {
	if _, err := w.file.NewSheet(name); err != nil {
		return nil, fmt.Errorf("failed to add sheet %s: %w", name, err)
	}
	w.sheets++
	w.names[strings.ToLower(name)] = true
	sw, err := w.file.NewStreamWriter(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open sheet %s: %w", name, err)
	}
	return sw, nil
}

// sheetName shortens title to the sheet name limit and makes it unique.
// Continuation sheets get a " (n)" suffix.
func (w *Workbook) sheetName(title string, part int) string {
	title = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return '_'
		}
		return r
	}, title)

	for n := part; ; n++ {
		suffix := ""
		if n > 1 {
			suffix = fmt.Sprintf(" (%d)", n)
		}
		base := title
		if len(base)+len(suffix) > maxSheetName {
			base = base[:maxSheetName-len(suffix)]
		}
		name := base + suffix
		if !w.names[strings.ToLower(name)] {
			return name
		}
	}
}

// Sheets returns the number of sheets added.
func (w *Workbook) Sheets() int { return w.sheets }

// WriteTo serializes the workbook. The default empty sheet is dropped once
// any table was added.
func (w *Workbook) WriteTo(out io.Writer) (int64, error) {
	if w.sheets > 0 {
		if err := w.file.DeleteSheet("Sheet1"); err != nil {
			return 0, fmt.Errorf("failed to drop default sheet: %w", err)
		}
		w.file.SetActiveSheet(0)
	}
	n, err := w.file.WriteTo(out)
	if err != nil {
		return n, fmt.Errorf("failed to write workbook: %w", err)
	}
	return n, nil
}

// Close releases temporary files held by the stream writers.
func (w *Workbook) Close() error {
	return w.file.Close()
}
