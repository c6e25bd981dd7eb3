package main

import (
	"fmt"
	"strings"
)

// Report is the full set of derived views over the filtered subset.
type Report struct {
	Metrics      Metrics         `json:"metrics"`
	ByPlan       []PlanRollup    `json:"byPlan"`
	Geographic   []CountryCount  `json:"geographic"`
	Tenure       []TenureBucket  `json:"tenure"`
	Trend        []TrendPoint    `json:"trend"`
	TopPlans     []PlanRollup    `json:"topPlans"`
	TopCountries []CountryRollup `json:"topCountries"`
	CRM          []CRMRollup     `json:"crm"`
	TimeView     string          `json:"timeView"`
}

func buildReport(records []ChurnRecord, timeView string, topN int) Report {
	return Report{
		Metrics:      computeMetrics(records),
		ByPlan:       churnByPlan(records),
		Geographic:   geographicDistribution(records),
		Tenure:       tenureDistribution(records),
		Trend:        churnTrend(records, timeView),
		TopPlans:     topPlans(records, topPlansLimit),
		TopCountries: topCountries(records, topN),
		CRM:          crmStats(records),
		TimeView:     timeView,
	}
}

func printReport(report Report, totalRecords int, filteredCount int) {
	fmt.Println("Churn Analysis Report")
	fmt.Println(strings.Repeat("=", 38))
	fmt.Printf("Records: %d total, %d after filters\n", totalRecords, filteredCount)
	fmt.Printf("Churned customers: %d\n", report.Metrics.TotalChurnedCustomers)
	fmt.Printf("Total MRR lost: $%.2f\n", report.Metrics.TotalMRRLost)
	fmt.Printf("Avg customer lifetime: %.1f months\n", report.Metrics.AvgCustomerLifetime)
	fmt.Printf("Avg MRR per customer: $%.2f\n", report.Metrics.AvgMRRPerCustomer)

	if len(report.Trend) > 0 {
		fmt.Printf("\nChurn trend (%sly)\n", report.TimeView)
		fmt.Println(strings.Repeat("-", 38))
		for _, point := range report.Trend {
			fmt.Printf("%s | %d customers | $%.2f MRR lost\n", point.Period, point.Customers, point.MRRLost)
		}
	}

	if len(report.TopPlans) > 0 {
		fmt.Println("\nTop plans by MRR lost")
		fmt.Println(strings.Repeat("-", 38))
		for _, entry := range report.TopPlans {
			fmt.Printf("%s | %d customers | $%.2f lost | $%.2f avg\n",
				entry.Plan, entry.Customers, entry.MRRLost, entry.AvgMRR)
		}
	}

	if len(report.TopCountries) > 0 {
		fmt.Println("\nTop countries by MRR lost")
		fmt.Println(strings.Repeat("-", 38))
		for _, entry := range report.TopCountries {
			fmt.Printf("%s | %d customers | $%.2f lost | %.1f%% of churn\n",
				entry.Country, entry.Customers, entry.MRRLost, entry.PercentOfTotal)
		}
	}

	fmt.Println("\nTenure distribution")
	fmt.Println(strings.Repeat("-", 38))
	for _, bucket := range report.Tenure {
		fmt.Printf("%-13s | %4d | %5.1f%%\n", bucket.Label, bucket.Count, bucket.Percentage)
	}

	if len(report.CRM) > 0 {
		fmt.Println("\nCRM breakdown")
		fmt.Println(strings.Repeat("-", 38))
		for _, entry := range report.CRM {
			fmt.Printf("%s | %d customers | $%.2f lost\n", entry.CRM, entry.Customers, entry.MRRLost)
		}
	}
}

func printOutcome(outcome UploadOutcome, path string) {
	fmt.Printf("Upload %s: %d new, %d duplicates, %d errors\n",
		path, outcome.NewRecords, outcome.Duplicates, outcome.Errors)
	if outcome.Committed {
		return
	}
	fmt.Println("Duplicates detected; merge not committed. Re-run with --force to commit.")
	if len(outcome.SampleNewRecords) > 0 {
		fmt.Println("Sample new records:")
		for _, record := range outcome.SampleNewRecords {
			fmt.Printf("  %s | %s | %s\n", record.StripeUserID, record.Email, record.Plans)
		}
	}
	if len(outcome.SampleDuplicates) > 0 {
		fmt.Println("Sample duplicates:")
		for _, record := range outcome.SampleDuplicates {
			fmt.Printf("  %s | %s | %s\n", record.StripeUserID, record.Email, record.Plans)
		}
	}
}

func printHistory(history []UploadHistoryEntry) {
	fmt.Println("Upload history")
	fmt.Println(strings.Repeat("-", 38))
	if len(history) == 0 {
		fmt.Println("No uploads recorded.")
		return
	}
	for _, entry := range history {
		fmt.Printf("%s | +%d records | %d duplicates skipped | %d total\n",
			entry.Timestamp, entry.RecordsAdded, entry.DuplicatesSkipped, entry.TotalRecords)
	}
}

func printOptions(options FilterOptions) {
	fmt.Println("Filter options")
	fmt.Println(strings.Repeat("-", 38))
	fmt.Printf("Plans: %s\n", strings.Join(options.Plans, ", "))
	fmt.Printf("Countries: %s\n", strings.Join(options.Countries, ", "))
	fmt.Printf("CRMs: %s\n", strings.Join(options.CRMs, ", "))
}
