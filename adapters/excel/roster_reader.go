package excel

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"merlt/domain/core"
	"merlt/domain/review"

	"github.com/xuri/excelize/v2"
)

// Expected roster columns, matched case-insensitively by header name.
const (
	colID       = "id"
	colName     = "name"
	colBaseline = "baseline_credential"
	colCategory = "category"
	colRegion   = "region"
)

// RosterReader reads evaluator rosters from Excel and CSV files. A roster
// row becomes a registration: id, name, baseline credential, professional
// category and region.
type RosterReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
}

// NewRosterReader creates a roster reader for an .xlsx or .csv file
func NewRosterReader(filePath string) *RosterReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &RosterReader{filePath: filePath, fileType: fileType}
}

// Read parses the roster file into evaluator registrations
func (r *RosterReader) Read() ([]*review.Evaluator, error) {
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("roster file not found: %s", r.filePath)
	}

	var rows [][]string
	var err error
	switch r.fileType {
	case "csv":
		rows, err = r.readCSV()
	case "xlsx":
		rows, err = r.readExcel()
	default:
		return nil, fmt.Errorf("unsupported roster file type: %s", r.fileType)
	}
	if err != nil {
		return nil, err
	}

	if len(rows) < 2 {
		return nil, fmt.Errorf("roster must have a header row and at least one evaluator")
	}

	return r.processRows(rows)
}

func (r *RosterReader) readExcel() ([][]string, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func (r *RosterReader) readCSV() ([][]string, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

func (r *RosterReader) processRows(rows [][]string) ([]*review.Evaluator, error) {
	columns := make(map[string]int)
	for i, header := range rows[0] {
		columns[strings.ToLower(strings.TrimSpace(header))] = i
	}
	for _, required := range []string{colID, colName, colBaseline, colCategory} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("roster is missing required column %q", required)
		}
	}

	evaluators := make([]*review.Evaluator, 0, len(rows)-1)
	for i, row := range rows[1:] {
		cell := func(col string) string {
			idx, ok := columns[col]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		if cell(colID) == "" && cell(colName) == "" {
			continue // blank row
		}

		id, err := core.ParseEvaluatorID(cell(colID))
		if err != nil {
			return nil, fmt.Errorf("roster row %d: %w", i+2, err)
		}

		baseline, err := strconv.ParseFloat(cell(colBaseline), 64)
		if err != nil {
			return nil, fmt.Errorf("roster row %d: invalid baseline credential %q", i+2, cell(colBaseline))
		}

		category, err := parseCategory(cell(colCategory))
		if err != nil {
			return nil, fmt.Errorf("roster row %d: %w", i+2, err)
		}

		evaluators = append(evaluators,
			review.NewEvaluator(id, cell(colName), baseline, category, cell(colRegion)))
	}

	if len(evaluators) == 0 {
		return nil, fmt.Errorf("roster contains no evaluators")
	}
	return evaluators, nil
}

func parseCategory(s string) (review.ProfessionalCategory, error) {
	switch review.ProfessionalCategory(strings.ToLower(s)) {
	case review.CategoryAcademic, review.CategoryPractitioner, review.CategoryJudiciary, review.CategoryStudent:
		return review.ProfessionalCategory(strings.ToLower(s)), nil
	}
	return "", fmt.Errorf("unknown professional category %q", s)
}
