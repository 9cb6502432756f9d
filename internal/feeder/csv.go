package feeder

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// parseCSVRecords treats the first row as the header naming each field.
// A file with only a header yields no records.
func parseCSVRecords(raw []byte) ([]Record, error) {
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: read CSV: %v", ErrInvalid, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := rows[0]
	records := make([]Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) != len(header) {
			return nil, fmt.Errorf("%w: row %d has %d fields, expected %d", ErrInvalid, i+2, len(row), len(header))
		}
		var rec Record
		for j, field := range header {
			rec.Put(field, row[j])
		}
		records = append(records, rec)
	}
	return records, nil
}
