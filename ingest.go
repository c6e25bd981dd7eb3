package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

const sampleLimit = 3

// UploadOutcome summarizes one ingestion batch for human review.
type UploadOutcome struct {
	NewRecords       int           `json:"newRecords"`
	Duplicates       int           `json:"duplicates"`
	Errors           int           `json:"errors"`
	Committed        bool          `json:"committed"`
	SampleNewRecords []ChurnRecord `json:"sampleNewRecords,omitempty"`
	SampleDuplicates []ChurnRecord `json:"sampleDuplicates,omitempty"`
}

// readCSVRows tokenizes a CSV upload into raw rows keyed by the literal
// header strings. A file the parser cannot tokenize is a format error and
// aborts the whole ingestion; no partial batch is produced.
func readCSVRows(r io.Reader) ([]rawRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty file")
		}
		return nil, fmt.Errorf("unable to read header: %w", err)
	}

	var rows []rawRow
	for {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("unable to read CSV: %w", err)
		}
		if len(record) == 0 {
			continue
		}
		row := make(rawRow, len(headers))
		for idx, header := range headers {
			if idx >= len(record) {
				break
			}
			if _, exists := row[header]; !exists {
				row[header] = record[idx]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// loadBatch reads and normalizes an uploaded CSV file. Rows that fail
// normalization are counted, not returned.
func loadBatch(path string) ([]ChurnRecord, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer file.Close()

	rows, err := readCSVRows(file)
	if err != nil {
		return nil, 0, err
	}

	batch := make([]ChurnRecord, 0, len(rows))
	malformed := 0
	for _, row := range rows {
		record, err := normalizeRow(row)
		if err != nil {
			malformed++
			continue
		}
		batch = append(batch, record)
	}
	return batch, malformed, nil
}

// partitionBatch splits a normalized batch into new records and duplicates
// against a snapshot of existing Stripe user IDs, preserving input order.
// The snapshot grows as the batch is walked, so a repeated ID inside one
// batch makes the first occurrence new and the rest duplicates.
func partitionBatch(existingIDs map[string]struct{}, batch []ChurnRecord) ([]ChurnRecord, []ChurnRecord) {
	seen := make(map[string]struct{}, len(existingIDs)+len(batch))
	for id := range existingIDs {
		seen[id] = struct{}{}
	}

	newRecords := make([]ChurnRecord, 0, len(batch))
	var duplicates []ChurnRecord
	for _, record := range batch {
		if _, dup := seen[record.StripeUserID]; dup {
			duplicates = append(duplicates, record)
			continue
		}
		seen[record.StripeUserID] = struct{}{}
		newRecords = append(newRecords, record)
	}
	return newRecords, duplicates
}

func sampleRecords(records []ChurnRecord) []ChurnRecord {
	if len(records) <= sampleLimit {
		return records
	}
	return records[:sampleLimit]
}
