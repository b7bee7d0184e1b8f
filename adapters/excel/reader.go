package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"schoolprep/adapters/datareadiness/coercer"
	"schoolprep/domain/incident"
	"schoolprep/internal"

	"github.com/xuri/excelize/v2"
)

// DefaultSheet is the worksheet read from .xlsx sources when none is configured
const DefaultSheet = "Sheet1"

// DataReader handles reading Excel and CSV incident sources
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	sheet    string
	logger   *internal.Logger
}

// NewDataReader creates a data reader that handles both Excel and CSV files
func NewDataReader(filePath, sheet string, logger *internal.Logger) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	if sheet == "" {
		sheet = DefaultSheet
	}
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &DataReader{filePath: filePath, fileType: fileType, sheet: sheet, logger: logger}
}

// Read implements ports.SourceReader
func (r *DataReader) Read(ctx context.Context) (*incident.RawTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.ReadData()
}

// ReadData reads data from Excel or CSV files into a raw table
func (r *DataReader) ReadData() (*incident.RawTable, error) {
	r.logger.Info("reading incident source", zap.String("type", r.fileType), zap.String("path", r.filePath))

	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
	}

	switch r.fileType {
	case "csv":
		return r.readCSVData()
	case "xlsx":
		return r.readExcelData()
	default:
		return nil, fmt.Errorf("unsupported file type: %s", r.fileType)
	}
}

// readExcelData reads the configured worksheet
func (r *DataReader) readExcelData() (*incident.RawTable, error) {
	startTime := time.Now()
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	// raw values keep full float precision; dates arrive as serials, which the coercer accepts
	rows, err := f.GetRows(r.sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", r.sheet, err)
	}
	r.logger.Debug("worksheet read", zap.String("sheet", r.sheet), zap.Int("rows", len(rows)), zap.Duration("elapsed", time.Since(startTime)))

	if len(rows) < 1 {
		return nil, fmt.Errorf("Excel file must have at least a header row")
	}

	return r.processRows(rows)
}

// readCSVData reads CSV data
func (r *DataReader) readCSVData() (*incident.RawTable, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	return ReadCSV(file, r.logger)
}

// ReadCSV reads a CSV stream with a header row into a raw table
func ReadCSV(src io.Reader, logger *internal.Logger) (*incident.RawTable, error) {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1

	readStart := time.Now()
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	logger.Debug("csv read", zap.Int("rows", len(rows)), zap.Duration("elapsed", time.Since(readStart)))

	if len(rows) < 1 {
		return nil, fmt.Errorf("CSV file must have at least a header row")
	}

	r := &DataReader{fileType: "csv", logger: logger}
	return r.processRows(rows)
}

// processRows converts raw string rows into a raw table. Short rows read the
// missing trailing cells as empty.
func (r *DataReader) processRows(rows [][]string) (*incident.RawTable, error) {
	headerRow := rows[0]
	headers := make([]string, len(headerRow))
	seen := make(map[string]bool, len(headerRow))
	for i, header := range headerRow {
		h := strings.TrimSpace(strings.TrimPrefix(header, "\ufeff"))
		if h == "" {
			return nil, fmt.Errorf("column %d has an empty header", i+1)
		}
		if seen[h] {
			return nil, fmt.Errorf("duplicate header %q", h)
		}
		seen[h] = true
		headers[i] = h
	}

	dataRows := make([]incident.RawRow, 0, len(rows)-1)
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if isBlank(row) {
			continue
		}
		rowData := make(incident.RawRow, len(headers))
		for j, header := range headers {
			if j < len(row) {
				rowData[header] = strings.TrimSpace(row[j])
			} else {
				rowData[header] = ""
			}
		}
		dataRows = append(dataRows, rowData)
	}

	r.logger.Info("incident source processed",
		zap.String("type", r.fileType), zap.Int("columns", len(headers)), zap.Int("rows", len(dataRows)))

	return &incident.RawTable{
		Headers: headers,
		Rows:    dataRows,
	}, nil
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// InferColumnTypes analyzes a stratified sample of each column to infer its kind
func InferColumnTypes(data *incident.RawTable) map[string]coercer.TypeAnalysis {
	c := coercer.NewTypeCoercer(coercer.DefaultCoercionConfig())
	analyses := make(map[string]coercer.TypeAnalysis, len(data.Headers))

	sampleIndices := getStratifiedSample(len(data.Rows), 500)
	for _, header := range data.Headers {
		values := make([]string, 0, len(sampleIndices))
		for _, idx := range sampleIndices {
			values = append(values, data.Rows[idx][header])
		}
		analyses[header] = c.AnalyzeTypeDistribution(values)
	}
	return analyses
}

// getStratifiedSample returns evenly distributed row indices across the dataset
func getStratifiedSample(totalRows, sampleSize int) []int {
	if sampleSize >= totalRows {
		indices := make([]int, totalRows)
		for i := range indices {
			indices[i] = i
		}
		return indices
	}

	indices := make([]int, 0, sampleSize)
	step := float64(totalRows) / float64(sampleSize)
	for i := 0; i < sampleSize; i++ {
		idx := int(math.Floor(float64(i) * step))
		if idx < totalRows {
			indices = append(indices, idx)
		}
	}
	return indices
}
