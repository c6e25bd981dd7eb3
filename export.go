package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// exportCSVContent renders the filtered subset in the fixed recognized
// column order. Values are comma-joined without quoting; fields containing
// commas are a known limitation of the format.
func exportCSVContent(records []ChurnRecord) string {
	lines := make([]string, 0, len(records)+1)
	lines = append(lines, strings.Join(exportHeaders, ","))
	for _, record := range records {
		lines = append(lines, strings.Join([]string{
			record.Email,
			record.StripeUserID,
			record.Plans,
			record.Activity,
			strconv.FormatFloat(record.MRRCancelled, 'f', -1, 64),
			record.CancellationDate,
			record.SignUpDate,
			strconv.Itoa(record.Seats),
			strconv.Itoa(record.MonthsSubscribed),
			record.Country,
			record.CRM,
		}, ","))
	}
	return strings.Join(lines, "\n")
}

func exportCSV(records []ChurnRecord, path string) error {
	if path == "" {
		path = fmt.Sprintf("churn_data_%s.csv", time.Now().Format("2006-01-02"))
	}
	return os.WriteFile(path, []byte(exportCSVContent(records)), 0644)
}

func writeJSON(report Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
