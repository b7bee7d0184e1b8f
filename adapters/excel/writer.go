package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"schoolprep/domain/incident"
	"schoolprep/ports"
)

// AnalysisSheet is the worksheet name of the .xlsx analysis dataset
const AnalysisSheet = "analysis"

// CSVSink writes the analysis dataset as CSV
type CSVSink struct {
	path string
}

// NewCSVSink creates a CSV sink writing to path
func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

func (s *CSVSink) Name() string { return "csv" }

// Stage renders the table as CSV into a temp file beside path
func (s *CSVSink) Stage(ctx context.Context, table *incident.Table) (ports.StagedOutput, error) {
	staged, err := stageFile(ctx, s.path, func(w io.Writer) error {
		return WriteCSV(w, table)
	})
	if err != nil {
		return nil, err
	}
	return staged, nil
}

// Write stages and commits in one step
func (s *CSVSink) Write(ctx context.Context, table *incident.Table) (string, error) {
	return writeNow(ctx, s, table)
}

// WriteCSV renders a table as CSV with a header row
func WriteCSV(w io.Writer, table *incident.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(table.ColumnNames()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i := 0; i < table.Len(); i++ {
		if err := cw.Write(table.Strings(i)); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// XLSXSink writes the analysis dataset as an Excel workbook
type XLSXSink struct {
	path string
}

// NewXLSXSink creates an XLSX sink writing to path
func NewXLSXSink(path string) *XLSXSink {
	return &XLSXSink{path: path}
}

func (s *XLSXSink) Name() string { return "xlsx" }

// Stage streams the table into a single worksheet of a temp workbook beside path
func (s *XLSXSink) Stage(ctx context.Context, table *incident.Table) (ports.StagedOutput, error) {
	staged, err := stageFile(ctx, s.path, func(w io.Writer) error {
		return WriteXLSX(w, table)
	})
	if err != nil {
		return nil, err
	}
	return staged, nil
}

// Write stages and commits in one step
func (s *XLSXSink) Write(ctx context.Context, table *incident.Table) (string, error) {
	return writeNow(ctx, s, table)
}

// WriteXLSX renders a table as an Excel workbook with typed cells
func WriteXLSX(w io.Writer, table *incident.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", AnalysisSheet); err != nil {
		return fmt.Errorf("failed to name worksheet: %w", err)
	}
	sw, err := f.NewStreamWriter(AnalysisSheet)
	if err != nil {
		return fmt.Errorf("failed to open stream writer: %w", err)
	}

	names := table.ColumnNames()
	header := make([]interface{}, len(names))
	for i, name := range names {
		header[i] = name
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	columns := table.Columns()
	for i := 0; i < table.Len(); i++ {
		cells := make([]interface{}, len(columns))
		for j, col := range columns {
			cells[j] = cellValue(table.Value(i, col.Name), col.Kind)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, cells); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush worksheet: %w", err)
	}
	_, err = f.WriteTo(w)
	return err
}

// cellValue maps a typed value to the excelize cell representation
func cellValue(v incident.Value, kind incident.Kind) interface{} {
	switch {
	case v.IsMissing():
		return nil
	case v.IsNumeric() && kind == incident.KindInteger:
		return int64(math.Round(v.Num))
	case v.IsNumeric():
		return v.Num
	}
	return v.Format(kind)
}

func writeNow(ctx context.Context, sink ports.TableSink, table *incident.Table) (string, error) {
	staged, err := sink.Stage(ctx, table)
	if err != nil {
		return "", err
	}
	if err := staged.Commit(); err != nil {
		staged.Discard()
		return "", err
	}
	return staged.Path(), nil
}

// stagedFile is a rendered temp file in the destination directory
type stagedFile struct {
	tmpPath   string
	path      string
	committed bool
}

func (f *stagedFile) Path() string { return f.path }

// Commit renames the temp file over the destination
func (f *stagedFile) Commit() error {
	if f.committed {
		return nil
	}
	if err := os.Rename(f.tmpPath, f.path); err != nil {
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	f.committed = true
	return nil
}

// Discard removes whichever file this output currently occupies
func (f *stagedFile) Discard() error {
	target := f.tmpPath
	if f.committed {
		target = f.path
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// stageFile renders into a temp file in the target directory. Nothing is left
// behind when render fails.
func stageFile(ctx context.Context, path string, render func(io.Writer) error) (*stagedFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := render(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		os.Remove(tmpPath)
		return nil, err
	}
	return &stagedFile{tmpPath: tmpPath, path: path}, nil
}
