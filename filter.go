package main

import (
	"sort"
	"strings"
	"time"
)

const filterAll = "all"

// unboundedMax mirrors the dashboard's default range ceiling.
const unboundedMax = 999999

// FilterConfig is the active view criteria. It is a value object: every
// edit replaces the whole config, the engines never mutate it.
type FilterConfig struct {
	StartDate string
	EndDate   string
	Plan      string
	Country   string
	CRM       string

	MRRMin    float64
	MRRMax    float64
	SeatsMin  int
	SeatsMax  int
	TenureMin int
	TenureMax int
}

func defaultFilters() FilterConfig {
	return FilterConfig{
		Plan:      filterAll,
		Country:   filterAll,
		CRM:       filterAll,
		MRRMax:    unboundedMax,
		SeatsMax:  unboundedMax,
		TenureMax: unboundedMax,
	}
}

// applyFilters returns the subset of records matching every active
// predicate, in input order. It is a total function: records whose
// cancellation date cannot be parsed are excluded whenever either date
// bound is set, instead of failing the whole pass.
func applyFilters(records []ChurnRecord, filters FilterConfig) []ChurnRecord {
	var startDate, endDate time.Time
	startSet, endSet := false, false
	if filters.StartDate != "" {
		if parsed, err := parseDate(filters.StartDate); err == nil {
			startDate = dateOnly(parsed)
			startSet = true
		}
	}
	if filters.EndDate != "" {
		if parsed, err := parseDate(filters.EndDate); err == nil {
			endDate = dateOnly(parsed)
			endSet = true
		}
	}

	planFilter := strings.ToLower(filters.Plan)

	filtered := make([]ChurnRecord, 0, len(records))
	for _, record := range records {
		if startSet || endSet {
			cancelled, err := parseDate(record.CancellationDate)
			if err != nil {
				continue
			}
			cancelledDay := dateOnly(cancelled)
			if startSet && cancelledDay.Before(startDate) {
				continue
			}
			if endSet && cancelledDay.After(endDate) {
				continue
			}
		}
		if filters.Plan != filterAll && !strings.Contains(strings.ToLower(record.Plans), planFilter) {
			continue
		}
		if filters.Country != filterAll && record.Country != filters.Country {
			continue
		}
		if filters.CRM != filterAll && record.CRM != filters.CRM {
			continue
		}
		if record.MRRCancelled < filters.MRRMin || record.MRRCancelled > filters.MRRMax {
			continue
		}
		if record.Seats < filters.SeatsMin || record.Seats > filters.SeatsMax {
			continue
		}
		if record.MonthsSubscribed < filters.TenureMin || record.MonthsSubscribed > filters.TenureMax {
			continue
		}
		filtered = append(filtered, record)
	}
	return filtered
}

// FilterOptions lists the distinct values offered for the plan, country and
// CRM dropdowns. Plans are cleaned of billing suffixes, countries drop the
// empty value, CRM maps empty to the No_CRM sentinel.
type FilterOptions struct {
	Plans     []string
	Countries []string
	CRMs      []string
}

func filterOptions(records []ChurnRecord) FilterOptions {
	plans := map[string]struct{}{}
	countries := map[string]struct{}{}
	crms := map[string]struct{}{}
	for _, record := range records {
		plans[cleanPlanName(record.Plans)] = struct{}{}
		if record.Country != "" {
			countries[record.Country] = struct{}{}
		}
		crm := record.CRM
		if crm == "" {
			crm = noCRM
		}
		crms[crm] = struct{}{}
	}
	return FilterOptions{
		Plans:     sortedKeys(plans),
		Countries: sortedKeys(countries),
		CRMs:      sortedKeys(crms),
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
