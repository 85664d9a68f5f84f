package excel

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"ringstat/internal"
	"ringstat/internal/errors"

	"github.com/xuri/excelize/v2"
)

// DataReader reads numeric tables from CSV or Excel files.
// Rows are channels, columns are timepoints; there is no header row.
type DataReader struct {
	sheet  string
	logger *internal.Logger
}

// NewDataReader creates a reader. sheet selects the Excel sheet; empty means the first one.
func NewDataReader(sheet string) *DataReader {
	return &DataReader{sheet: sheet, logger: internal.DefaultLogger.For("DataReader")}
}

// ReadTable implements ports.MatrixReader
func (r *DataReader) ReadTable(path string) ([][]float64, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, errors.DataNotFound(path)
	}

	start := time.Now()
	var (
		rows [][]string
		err  error
	)
	switch fileType(path) {
	case "xlsx":
		rows, err = r.readExcelRows(path)
	default:
		rows, err = readCSVRows(path)
	}
	if err != nil {
		return nil, err
	}

	table, err := parseRows(rows)
	if err != nil {
		return nil, errors.Wrapf(errors.InvalidInput(err.Error()), "failed to parse %s", path)
	}
	if len(table) > 0 {
		r.logger.Info("Read %s: %d channels x %d timepoints in %.2fms",
			path, len(table), len(table[0]), float64(time.Since(start).Nanoseconds())/1e6)
	}
	return table, nil
}

func fileType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return "xlsx"
	default:
		return "csv"
	}
}

func (r *DataReader) readExcelRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := r.sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	return rows, nil
}

func readCSVRows(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	var rows [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV file: %w", err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// parseRows converts string cells to floats, skipping blank lines and
// requiring every row to have the same length.
func parseRows(rows [][]string) ([][]float64, error) {
	table := make([][]float64, 0, len(rows))
	width := -1
	for i, row := range rows {
		if isBlank(row) {
			continue
		}
		values := make([]float64, len(row))
		for j, cell := range row {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %q is not numeric", i+1, j+1, cell)
			}
			values[j] = v
		}
		if width < 0 {
			width = len(values)
		} else if len(values) != width {
			return nil, fmt.Errorf("row %d has %d values, expected %d", i+1, len(values), width)
		}
		table = append(table, values)
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("table is empty")
	}
	return table, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
