package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRowHumanHeaders(t *testing.T) {
	record, err := normalizeRow(rawRow{
		"Email":             "a@x.com",
		"Stripe User ID":    "cus_123",
		"Plans":             "Pro (Monthly)",
		"Activity":          "Cancelled",
		"MRR Cancelled":     "-49.50",
		"Cancellation date": "2024-03-15",
		"Sign Up Date":      "2022-01-01",
		"Seats":             "4",
		"Months Subscribed": "26",
		"Country":           "US",
		"CRM":               "HubSpot",
	})
	require.NoError(t, err)

	assert.Equal(t, "a@x.com", record.Email)
	assert.Equal(t, "cus_123", record.StripeUserID)
	assert.Equal(t, "Pro (Monthly)", record.Plans)
	assert.Equal(t, 49.50, record.MRRCancelled)
	assert.Equal(t, 4, record.Seats)
	assert.Equal(t, 26, record.MonthsSubscribed)
	assert.Equal(t, "HubSpot", record.CRM)
}

func TestNormalizeRowCamelCaseFallback(t *testing.T) {
	record, err := normalizeRow(rawRow{
		"email":        "b@x.com",
		"stripeUserId": "cus_456",
		"plans":        "Starter",
		"mrrCancelled": "12",
	})
	require.NoError(t, err)

	assert.Equal(t, "b@x.com", record.Email)
	assert.Equal(t, "cus_456", record.StripeUserID)
	assert.Equal(t, 12.0, record.MRRCancelled)
}

func TestNormalizeRowHumanHeaderWins(t *testing.T) {
	record, err := normalizeRow(rawRow{
		"Email":          "human@x.com",
		"email":          "camel@x.com",
		"Stripe User ID": "cus_789",
	})
	require.NoError(t, err)
	assert.Equal(t, "human@x.com", record.Email)
}

func TestNormalizeRowDefaults(t *testing.T) {
	record, err := normalizeRow(rawRow{
		"Email":          "c@x.com",
		"Stripe User ID": "cus_1",
	})
	require.NoError(t, err)

	assert.Equal(t, "", record.Plans)
	assert.Equal(t, 0.0, record.MRRCancelled)
	assert.Equal(t, 1, record.Seats)
	assert.Equal(t, 0, record.MonthsSubscribed)
	assert.Equal(t, noCRM, record.CRM)
}

func TestNormalizeRowUnparseableNumbers(t *testing.T) {
	record, err := normalizeRow(rawRow{
		"Email":             "d@x.com",
		"Stripe User ID":    "cus_2",
		"MRR Cancelled":     "n/a",
		"Seats":             "many",
		"Months Subscribed": "??",
	})
	require.NoError(t, err)

	assert.Equal(t, 0.0, record.MRRCancelled)
	assert.Equal(t, 1, record.Seats)
	assert.Equal(t, 0, record.MonthsSubscribed)
}

func TestNormalizeRowRejectsMissingIdentity(t *testing.T) {
	_, err := normalizeRow(rawRow{"Email": "e@x.com"})
	assert.Error(t, err)

	_, err = normalizeRow(rawRow{"Stripe User ID": "cus_3"})
	assert.Error(t, err)

	_, err = normalizeRow(rawRow{"Email": "  ", "Stripe User ID": "cus_3"})
	assert.Error(t, err)
}

func TestCleanPlanName(t *testing.T) {
	assert.Equal(t, "Pro", cleanPlanName("Pro (Monthly)"))
	assert.Equal(t, "Pro", cleanPlanName("Pro (default_monthly)  "))
	assert.Equal(t, "Enterprise", cleanPlanName("Enterprise"))
	assert.Equal(t, "Team (Legacy)", cleanPlanName("Team (Legacy) (Annual)"))
	assert.Equal(t, "", cleanPlanName(""))
}

func TestParseDateLayouts(t *testing.T) {
	for _, value := range []string{"2024-03-15", "2024/03/15", "03/15/2024", "2024-03-15T10:30:00"} {
		parsed, err := parseDate(value)
		require.NoError(t, err, value)
		assert.Equal(t, 2024, parsed.Year())
		assert.Equal(t, 15, parsed.Day())
	}

	_, err := parseDate("not a date")
	assert.Error(t, err)
	_, err = parseDate("")
	assert.Error(t, err)
}
