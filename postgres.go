package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/kelseyhightower/envconfig"
)

const dbTimeout = 12 * time.Second

// DBConfig is read from CHURN_DB_* environment variables, with DATABASE_URL
// as the fallback connection string.
type DBConfig struct {
	URL    string `envconfig:"URL"`
	Schema string `envconfig:"SCHEMA" default:"churn_dashboard"`
}

func dbConfigFromEnv() (DBConfig, error) {
	var cfg DBConfig
	if err := envconfig.Process("churn_db", &cfg); err != nil {
		return DBConfig{}, err
	}
	if cfg.URL == "" {
		cfg.URL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if cfg.URL == "" {
		return DBConfig{}, errors.New("database URL missing; set CHURN_DB_URL or DATABASE_URL")
	}
	return cfg, nil
}

var validSchema = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func sanitizeSchema(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", errors.New("db schema is required")
	}
	if !validSchema.MatchString(value) {
		return "", fmt.Errorf("invalid schema name: %s", value)
	}
	return value, nil
}

// postgresPersistence mirrors the dataset into Postgres. Records are
// upserted on the stripe_user_id key so a re-save never duplicates rows.
type postgresPersistence struct {
	cfg    DBConfig
	schema string
}

func newPostgresPersistence(cfg DBConfig) (*postgresPersistence, error) {
	schema, err := sanitizeSchema(cfg.Schema)
	if err != nil {
		return nil, err
	}
	return &postgresPersistence{cfg: cfg, schema: schema}, nil
}

func (p *postgresPersistence) open(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("pgx", p.cfg.URL)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := p.ensureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (p *postgresPersistence) Load() ([]ChurnRecord, []UploadHistoryEntry, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	db, err := p.open(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, fmt.Sprintf(`
		SELECT email, stripe_user_id, plans, activity, mrr_cancelled,
			cancellation_date, sign_up_date, seats, months_subscribed, country, crm
		FROM %s.churn_records ORDER BY inserted_at, stripe_user_id`, p.schema))
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var records []ChurnRecord
	for rows.Next() {
		var record ChurnRecord
		if err := rows.Scan(
			&record.Email,
			&record.StripeUserID,
			&record.Plans,
			&record.Activity,
			&record.MRRCancelled,
			&record.CancellationDate,
			&record.SignUpDate,
			&record.Seats,
			&record.MonthsSubscribed,
			&record.Country,
			&record.CRM,
		); err != nil {
			return nil, nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	historyRows, err := db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, uploaded_at, records_added, duplicates_skipped, total_records
		FROM %s.upload_history ORDER BY uploaded_at`, p.schema))
	if err != nil {
		return nil, nil, err
	}
	defer historyRows.Close()

	var history []UploadHistoryEntry
	for historyRows.Next() {
		var entry UploadHistoryEntry
		var uploadedAt time.Time
		if err := historyRows.Scan(&entry.ID, &uploadedAt, &entry.RecordsAdded, &entry.DuplicatesSkipped, &entry.TotalRecords); err != nil {
			return nil, nil, err
		}
		entry.Timestamp = uploadedAt.UTC().Format(time.RFC3339)
		history = append(history, entry)
	}
	if err := historyRows.Err(); err != nil {
		return nil, nil, err
	}
	return records, history, nil
}

func (p *postgresPersistence) Save(records []ChurnRecord, history []UploadHistoryEntry) error {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	db, err := p.open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// A cleared dataset clears the mirror too.
	if len(records) == 0 {
		if _, err = tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s.churn_records`, p.schema)); err != nil {
			return err
		}
	}

	upsertSQL := fmt.Sprintf(`
		INSERT INTO %s.churn_records (
			stripe_user_id, email, plans, activity, mrr_cancelled,
			cancellation_date, sign_up_date, seats, months_subscribed, country, crm
		) VALUES (
			$1,$2,$3,$4,$5,
			$6,$7,$8,$9,$10,$11
		)
		ON CONFLICT (stripe_user_id) DO UPDATE SET
			email = EXCLUDED.email,
			plans = EXCLUDED.plans,
			activity = EXCLUDED.activity,
			mrr_cancelled = EXCLUDED.mrr_cancelled,
			cancellation_date = EXCLUDED.cancellation_date,
			sign_up_date = EXCLUDED.sign_up_date,
			seats = EXCLUDED.seats,
			months_subscribed = EXCLUDED.months_subscribed,
			country = EXCLUDED.country,
			crm = EXCLUDED.crm`, p.schema)

	for _, record := range records {
		_, err = tx.ExecContext(ctx, upsertSQL,
			record.StripeUserID,
			record.Email,
			record.Plans,
			record.Activity,
			record.MRRCancelled,
			record.CancellationDate,
			record.SignUpDate,
			record.Seats,
			record.MonthsSubscribed,
			record.Country,
			record.CRM,
		)
		if err != nil {
			return err
		}
	}

	if _, err = tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s.upload_history`, p.schema)); err != nil {
		return err
	}
	insertHistorySQL := fmt.Sprintf(`
		INSERT INTO %s.upload_history (
			id, uploaded_at, records_added, duplicates_skipped, total_records
		) VALUES ($1,$2,$3,$4,$5)`, p.schema)
	for _, entry := range history {
		uploadedAt, parseErr := time.Parse(time.RFC3339, entry.Timestamp)
		if parseErr != nil {
			uploadedAt = time.Now().UTC()
		}
		_, err = tx.ExecContext(ctx, insertHistorySQL,
			entry.ID,
			uploadedAt,
			entry.RecordsAdded,
			entry.DuplicatesSkipped,
			entry.TotalRecords,
		)
		if err != nil {
			return err
		}
	}

	err = tx.Commit()
	return err
}

func (p *postgresPersistence) ensureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, p.schema)); err != nil {
		return err
	}

	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.churn_records (
			stripe_user_id text PRIMARY KEY,
			email text NOT NULL,
			plans text NOT NULL DEFAULT '',
			activity text NOT NULL DEFAULT '',
			mrr_cancelled numeric(12,2) NOT NULL DEFAULT 0,
			cancellation_date text NOT NULL DEFAULT '',
			sign_up_date text NOT NULL DEFAULT '',
			seats integer NOT NULL DEFAULT 1,
			months_subscribed integer NOT NULL DEFAULT 0,
			country text NOT NULL DEFAULT '',
			crm text NOT NULL DEFAULT '',
			inserted_at timestamptz NOT NULL DEFAULT now()
		)`, p.schema))
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.upload_history (
			id uuid PRIMARY KEY,
			uploaded_at timestamptz NOT NULL,
			records_added integer NOT NULL,
			duplicates_skipped integer NOT NULL,
			total_records integer NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now()
		)`, p.schema))
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_churn_records_cancel_idx ON %s.churn_records (cancellation_date)`, p.schema, p.schema))
	return err
}
