package main

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const noCRM = "No_CRM"

// ChurnRecord is one cancelled customer. StripeUserID is the uniqueness key
// for the whole dataset; MRRCancelled is stored as a non-negative magnitude.
type ChurnRecord struct {
	Email            string  `json:"email"`
	StripeUserID     string  `json:"stripeUserId"`
	Plans            string  `json:"plans"`
	Activity         string  `json:"activity"`
	MRRCancelled     float64 `json:"mrrCancelled"`
	CancellationDate string  `json:"cancellationDate"`
	SignUpDate       string  `json:"signUpDate"`
	Seats            int     `json:"seats"`
	MonthsSubscribed int     `json:"monthsSubscribed"`
	Country          string  `json:"country"`
	CRM              string  `json:"crm"`
}

// exportHeaders is the recognized human-readable column set, in export order.
// Each also has a camelCase fallback accepted on ingest.
var exportHeaders = []string{
	"Email",
	"Stripe User ID",
	"Plans",
	"Activity",
	"MRR Cancelled",
	"Cancellation date",
	"Sign Up Date",
	"Seats",
	"Months Subscribed",
	"Country",
	"CRM",
}

// rawRow is one CSV data row keyed by the file's literal header strings.
type rawRow map[string]string

// fieldValue resolves a field from a raw row: the human-readable header wins,
// the camelCase name is the fallback, empty values fall through.
func fieldValue(row rawRow, header string, fallback string) string {
	if value := strings.TrimSpace(row[header]); value != "" {
		return value
	}
	return strings.TrimSpace(row[fallback])
}

func floatField(row rawRow, header string, fallback string, def float64) float64 {
	raw := fieldValue(row, header, fallback)
	if raw == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return parsed
}

func intField(row rawRow, header string, fallback string, def int) int {
	raw := fieldValue(row, header, fallback)
	if raw == "" {
		return def
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return parsed
}

// normalizeRow converts one raw CSV row into a canonical ChurnRecord.
// Rows without a Stripe user ID or email are rejected; the caller counts
// those as parse errors and keeps going.
func normalizeRow(row rawRow) (ChurnRecord, error) {
	record := ChurnRecord{
		Email:            fieldValue(row, "Email", "email"),
		StripeUserID:     fieldValue(row, "Stripe User ID", "stripeUserId"),
		Plans:            fieldValue(row, "Plans", "plans"),
		Activity:         fieldValue(row, "Activity", "activity"),
		MRRCancelled:     math.Abs(floatField(row, "MRR Cancelled", "mrrCancelled", 0)),
		CancellationDate: fieldValue(row, "Cancellation date", "cancellationDate"),
		SignUpDate:       fieldValue(row, "Sign Up Date", "signUpDate"),
		Seats:            intField(row, "Seats", "seats", 1),
		MonthsSubscribed: intField(row, "Months Subscribed", "monthsSubscribed", 0),
		Country:          fieldValue(row, "Country", "country"),
		CRM:              fieldValue(row, "CRM", "crm"),
	}
	if record.CRM == "" {
		record.CRM = noCRM
	}
	if record.StripeUserID == "" {
		return ChurnRecord{}, errors.New("missing stripe user id")
	}
	if record.Email == "" {
		return ChurnRecord{}, errors.New("missing email")
	}
	return record, nil
}

var planSuffixPattern = regexp.MustCompile(`\s*\([^)]*\)\s*$`)

// cleanPlanName strips a trailing billing-cycle suffix like "(Monthly)".
// Grouping keeps the raw plan string; this is for filter option lists only.
func cleanPlanName(plan string) string {
	return strings.TrimSpace(planSuffixPattern.ReplaceAllString(plan, ""))
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty date")
	}
	layouts := []string{
		"2006-01-02",
		"2006/01/02",
		"01/02/2006",
		"01-02-2006",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04:05Z07:00",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date format: %s", value)
}

func dateOnly(value time.Time) time.Time {
	if value.IsZero() {
		return value
	}
	return time.Date(value.Year(), value.Month(), value.Day(), 0, 0, 0, 0, value.Location())
}
