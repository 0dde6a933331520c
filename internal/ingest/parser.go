package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"credit-engine/internal/models"
)

const spreadsheetMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Parse dispatches on media type and file extension. The second return is
// false when the file kind is unsupported, which the orchestrator records as
// a skip rather than a failure.
func Parse(name, mediaType string, data []byte) (models.RawTable, bool, error) {
	switch {
	case mediaType == "text/csv" || strings.HasSuffix(strings.ToLower(name), ".csv"):
		table, err := parseCSV(data)
		return table, true, err
	case strings.HasSuffix(mediaType, "spreadsheetml.sheet") || strings.HasSuffix(strings.ToLower(name), ".xlsx"):
		table, err := parseXLSX(data)
		return table, true, err
	default:
		return models.RawTable{}, false, nil
	}
}

// parseCSV reads the header row plus all data rows. Ragged rows are allowed;
// the normalizer pads short rows with missing values.
func parseCSV(data []byte) (models.RawTable, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return models.RawTable{}, nil
		}
		return models.RawTable{}, fmt.Errorf("failed to read CSV header row: %w", err)
	}

	var rows [][]string
	for {
		row, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return models.RawTable{}, fmt.Errorf("failed to read CSV row: %w", err)
		}
		rows = append(rows, row)
	}

	return models.RawTable{Columns: header, Rows: rows}, nil
}

// parseXLSX reads the first sheet of a workbook, first row as header.
func parseXLSX(data []byte) (models.RawTable, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return models.RawTable{}, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return models.RawTable{}, nil
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return models.RawTable{}, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return models.RawTable{}, nil
	}

	return models.RawTable{Columns: rows[0], Rows: rows[1:]}, nil
}
