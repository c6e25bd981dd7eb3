package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const defaultStatePath = "churn_state.json"

func main() {
	inputPath := flag.String("input", "", "CSV upload to merge (comma-separated for multiple files)")
	force := flag.Bool("force", false, "Commit a merge even when duplicates were detected")
	statePath := flag.String("state", defaultStatePath, "Path to the JSON state file")
	clearData := flag.Bool("clear", false, "Clear all records and upload history")
	exportOut := flag.String("export", "", "Export the filtered subset as CSV")
	jsonOut := flag.String("json", "", "Optional JSON report output path")
	timeView := flag.String("view", viewMonth, "Trend granularity (month or quarter)")
	topN := flag.Int("top", defaultTopN, "Top N countries to show")
	showHistory := flag.Bool("history", false, "Print upload history")
	listOptions := flag.Bool("list-options", false, "Print distinct plan/country/CRM filter options")
	startDate := flag.String("start", "", "Cancellation date range start (YYYY-MM-DD)")
	endDate := flag.String("end", "", "Cancellation date range end (YYYY-MM-DD)")
	plan := flag.String("plan", filterAll, "Plan filter (substring match)")
	country := flag.String("country", filterAll, "Country filter (exact match)")
	crm := flag.String("crm", filterAll, "CRM filter (exact match)")
	mrrMin := flag.Float64("mrr-min", 0, "Minimum MRR cancelled")
	mrrMax := flag.Float64("mrr-max", unboundedMax, "Maximum MRR cancelled")
	seatsMin := flag.Int("seats-min", 0, "Minimum seats")
	seatsMax := flag.Int("seats-max", unboundedMax, "Maximum seats")
	tenureMin := flag.Int("tenure-min", 0, "Minimum months subscribed")
	tenureMax := flag.Int("tenure-max", unboundedMax, "Maximum months subscribed")
	dbEnabled := flag.Bool("db", false, "Mirror state to Postgres (requires CHURN_DB_URL or DATABASE_URL)")
	logJSON := flag.Bool("log-json", false, "Emit logs as JSON")
	flag.Parse()

	if *logJSON {
		log.SetFormatter(&log.JSONFormatter{})
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("could not load .env")
	}

	if *timeView != viewMonth && *timeView != viewQuarter {
		exitWithError(fmt.Errorf("invalid --view value: %s", *timeView))
	}
	if *topN <= 0 {
		exitWithError(errors.New("--top must be positive"))
	}

	var persist Persistence = newFilePersistence(*statePath)
	if *dbEnabled {
		cfg, err := dbConfigFromEnv()
		if err != nil {
			exitWithError(err)
		}
		pg, err := newPostgresPersistence(cfg)
		if err != nil {
			exitWithError(err)
		}
		persist = newMirrorPersistence(persist, pg)
	}

	store := NewDataStore(persist)
	store.Load()

	if *clearData {
		store.Clear()
		fmt.Println("All data cleared.")
	}

	if *inputPath != "" {
		for _, path := range strings.Split(*inputPath, ",") {
			path = strings.TrimSpace(path)
			if path == "" {
				continue
			}
			batch, malformed, err := loadBatch(path)
			if err != nil {
				exitWithError(fmt.Errorf("upload %s: %w", path, err))
			}
			outcome := store.Merge(batch, malformed, *force)
			printOutcome(outcome, path)
		}
		fmt.Println()
	}

	if *showHistory {
		printHistory(store.History())
		fmt.Println()
	}
	if *listOptions {
		printOptions(filterOptions(store.Records()))
		fmt.Println()
	}

	filters := FilterConfig{
		StartDate: *startDate,
		EndDate:   *endDate,
		Plan:      *plan,
		Country:   *country,
		CRM:       *crm,
		MRRMin:    *mrrMin,
		MRRMax:    *mrrMax,
		SeatsMin:  *seatsMin,
		SeatsMax:  *seatsMax,
		TenureMin: *tenureMin,
		TenureMax: *tenureMax,
	}
	filtered := applyFilters(store.Records(), filters)
	report := buildReport(filtered, *timeView, *topN)

	printReport(report, len(store.Records()), len(filtered))

	if *jsonOut != "" {
		if err := writeJSON(report, *jsonOut); err != nil {
			exitWithError(err)
		}
		fmt.Printf("\nJSON report saved to %s\n", *jsonOut)
	}

	if *exportOut != "" {
		if len(filtered) == 0 {
			exitWithError(errors.New("nothing to export: filtered subset is empty"))
		}
		if err := exportCSV(filtered, *exportOut); err != nil {
			exitWithError(err)
		}
		fmt.Printf("Filtered data exported to %s\n", *exportOut)
	}
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}
