package main

import (
	"fmt"
	"math"
	"sort"
)

const (
	geoLimit       = 15
	topPlansLimit  = 5
	defaultTopN    = 10
	unknownCountry = "Unknown"
	viewMonth      = "month"
	viewQuarter    = "quarter"
)

// Metrics are the headline numbers over the filtered subset.
type Metrics struct {
	TotalChurnedCustomers int     `json:"totalChurnedCustomers"`
	TotalMRRLost          float64 `json:"totalMRRLost"`
	AvgCustomerLifetime   float64 `json:"avgCustomerLifetime"`
	AvgMRRPerCustomer     float64 `json:"avgMRRPerCustomer"`
}

func computeMetrics(records []ChurnRecord) Metrics {
	metrics := Metrics{TotalChurnedCustomers: len(records)}
	if len(records) == 0 {
		return metrics
	}
	totalMonths := 0
	for _, record := range records {
		metrics.TotalMRRLost += record.MRRCancelled
		totalMonths += record.MonthsSubscribed
	}
	metrics.AvgCustomerLifetime = float64(totalMonths) / float64(len(records))
	metrics.AvgMRRPerCustomer = metrics.TotalMRRLost / float64(len(records))
	return metrics
}

// PlanRollup is the per-plan breakdown, grouped on the raw plan string so
// billing variants of the same plan stay separate.
type PlanRollup struct {
	Plan      string  `json:"plan"`
	Customers int     `json:"customers"`
	MRRLost   float64 `json:"mrrLost"`
	AvgMRR    float64 `json:"avgMRR"`
}

func churnByPlan(records []ChurnRecord) []PlanRollup {
	order := []string{}
	grouped := map[string]*PlanRollup{}
	for _, record := range records {
		plan := record.Plans
		if plan == "" {
			plan = "Unknown"
		}
		entry, exists := grouped[plan]
		if !exists {
			entry = &PlanRollup{Plan: plan}
			grouped[plan] = entry
			order = append(order, plan)
		}
		entry.Customers++
		entry.MRRLost += math.Abs(record.MRRCancelled)
	}

	rollups := make([]PlanRollup, 0, len(order))
	for _, plan := range order {
		entry := grouped[plan]
		entry.AvgMRR = entry.MRRLost / float64(entry.Customers)
		rollups = append(rollups, *entry)
	}
	sort.SliceStable(rollups, func(i, j int) bool {
		return rollups[i].MRRLost > rollups[j].MRRLost
	})
	return rollups
}

func topPlans(records []ChurnRecord, limit int) []PlanRollup {
	if limit <= 0 {
		limit = topPlansLimit
	}
	rollups := churnByPlan(records)
	if len(rollups) > limit {
		rollups = rollups[:limit]
	}
	return rollups
}

// CountryCount is one bar of the geographic distribution. Records without
// a country are left out of this view.
type CountryCount struct {
	Country   string `json:"country"`
	Customers int    `json:"customers"`
}

func geographicDistribution(records []ChurnRecord) []CountryCount {
	order := []string{}
	counts := map[string]int{}
	for _, record := range records {
		if record.Country == "" {
			continue
		}
		if _, exists := counts[record.Country]; !exists {
			order = append(order, record.Country)
		}
		counts[record.Country]++
	}

	distribution := make([]CountryCount, 0, len(order))
	for _, country := range order {
		distribution = append(distribution, CountryCount{Country: country, Customers: counts[country]})
	}
	sort.SliceStable(distribution, func(i, j int) bool {
		return distribution[i].Customers > distribution[j].Customers
	})
	if len(distribution) > geoLimit {
		distribution = distribution[:geoLimit]
	}
	return distribution
}

// TenureBucket is one slice of the tenure distribution. All five buckets
// are always present, in display order, even when empty.
type TenureBucket struct {
	Label      string  `json:"label"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

var tenureLabels = []string{"0-3 months", "4-6 months", "7-12 months", "13-24 months", "25+ months"}

func tenureSegment(months int) string {
	switch {
	case months <= 3:
		return tenureLabels[0]
	case months <= 6:
		return tenureLabels[1]
	case months <= 12:
		return tenureLabels[2]
	case months <= 24:
		return tenureLabels[3]
	default:
		return tenureLabels[4]
	}
}

func tenureDistribution(records []ChurnRecord) []TenureBucket {
	counts := map[string]int{}
	for _, record := range records {
		counts[tenureSegment(record.MonthsSubscribed)]++
	}

	total := len(records)
	buckets := make([]TenureBucket, 0, len(tenureLabels))
	for _, label := range tenureLabels {
		bucket := TenureBucket{Label: label, Count: counts[label]}
		if total > 0 {
			bucket.Percentage = float64(bucket.Count) / float64(total) * 100
		}
		buckets = append(buckets, bucket)
	}
	return buckets
}

// TrendPoint is one time bucket of the churn trend. MRR is summed as
// stored, not forced to absolute value.
type TrendPoint struct {
	Period    string  `json:"period"`
	Customers int     `json:"customers"`
	MRRLost   float64 `json:"mrrLost"`
}

// churnTrend buckets records by calendar month (YYYY-MM) or quarter
// (YYYY-Qn) of cancellation. Both key formats sort chronologically as
// plain strings. Records with unparseable dates are dropped.
func churnTrend(records []ChurnRecord, view string) []TrendPoint {
	grouped := map[string]*TrendPoint{}
	for _, record := range records {
		cancelled, err := parseDate(record.CancellationDate)
		if err != nil {
			continue
		}
		var key string
		if view == viewQuarter {
			quarter := (int(cancelled.Month())-1)/3 + 1
			key = fmt.Sprintf("%04d-Q%d", cancelled.Year(), quarter)
		} else {
			key = fmt.Sprintf("%04d-%02d", cancelled.Year(), int(cancelled.Month()))
		}
		point, exists := grouped[key]
		if !exists {
			point = &TrendPoint{Period: key}
			grouped[key] = point
		}
		point.Customers++
		point.MRRLost += record.MRRCancelled
	}

	keys := make([]string, 0, len(grouped))
	for key := range grouped {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	trend := make([]TrendPoint, 0, len(keys))
	for _, key := range keys {
		trend = append(trend, *grouped[key])
	}
	return trend
}

// CountryRollup is one row of the top-countries table. Unlike the
// geographic distribution, missing countries are kept as "Unknown".
type CountryRollup struct {
	Country        string  `json:"country"`
	Customers      int     `json:"customers"`
	MRRLost        float64 `json:"mrrLost"`
	PercentOfTotal float64 `json:"percentOfTotal"`
}

func topCountries(records []ChurnRecord, limit int) []CountryRollup {
	if limit <= 0 {
		limit = defaultTopN
	}
	order := []string{}
	grouped := map[string]*CountryRollup{}
	for _, record := range records {
		country := record.Country
		if country == "" {
			country = unknownCountry
		}
		entry, exists := grouped[country]
		if !exists {
			entry = &CountryRollup{Country: country}
			grouped[country] = entry
			order = append(order, country)
		}
		entry.Customers++
		entry.MRRLost += math.Abs(record.MRRCancelled)
	}

	total := len(records)
	rollups := make([]CountryRollup, 0, len(order))
	for _, country := range order {
		entry := grouped[country]
		if total > 0 {
			entry.PercentOfTotal = float64(entry.Customers) / float64(total) * 100
		}
		rollups = append(rollups, *entry)
	}
	sort.SliceStable(rollups, func(i, j int) bool {
		return rollups[i].MRRLost > rollups[j].MRRLost
	})
	if len(rollups) > limit {
		rollups = rollups[:limit]
	}
	return rollups
}

// CRMRollup is the per-CRM breakdown on the raw CRM field.
type CRMRollup struct {
	CRM       string  `json:"crm"`
	Customers int     `json:"customers"`
	MRRLost   float64 `json:"mrrLost"`
	AvgMRR    float64 `json:"avgMRR"`
}

func crmStats(records []ChurnRecord) []CRMRollup {
	order := []string{}
	grouped := map[string]*CRMRollup{}
	for _, record := range records {
		crm := record.CRM
		if crm == "" {
			crm = noCRM
		}
		entry, exists := grouped[crm]
		if !exists {
			entry = &CRMRollup{CRM: crm}
			grouped[crm] = entry
			order = append(order, crm)
		}
		entry.Customers++
		entry.MRRLost += record.MRRCancelled
	}

	rollups := make([]CRMRollup, 0, len(order))
	for _, crm := range order {
		entry := grouped[crm]
		entry.AvgMRR = entry.MRRLost / float64(entry.Customers)
		rollups = append(rollups, *entry)
	}
	sort.SliceStable(rollups, func(i, j int) bool {
		return rollups[i].MRRLost > rollups[j].MRRLost
	})
	return rollups
}
