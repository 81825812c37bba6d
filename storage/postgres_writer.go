package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	_ "github.com/lib/pq"

	"github.com/I-Bumblebee/jobs-ge-scraper/models"
	"github.com/I-Bumblebee/jobs-ge-scraper/utils"
)

const pgJobColumns = 21

// PostgresWriter upserts merged jobs into PostgreSQL and keeps one
// scraping_results row per run. Every SaveMerged is its own upsert, so a
// nil error means the row is stored.
type PostgresWriter struct {
	db     *sql.DB
	logger *utils.Logger

	written atomic.Int64
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(ctx context.Context, dsn string, logger *utils.Logger) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		logger.Warn("[postgres] Ping failed (attempt %d/10): %v", i+1, err)
		if serr := utils.SleepContext(ctx, 2*time.Second); serr != nil {
			err = serr
			break
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := newPostgresWriter(db, logger)
	if err := pw.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func newPostgresWriter(db *sql.DB, logger *utils.Logger) *PostgresWriter {
	return &PostgresWriter{db: db, logger: logger}
}

func (pw *PostgresWriter) migrate(ctx context.Context) error {
	_, err := pw.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS jobs (
			platform              VARCHAR(20)  NOT NULL,
			id                    VARCHAR(64)  NOT NULL,
			title                 TEXT         NOT NULL DEFAULT '',
			company_name          TEXT         NOT NULL DEFAULT '',
			company_jobs_url      TEXT         NOT NULL DEFAULT '',
			company_logo_url      TEXT         NOT NULL DEFAULT '',
			city                  TEXT         NOT NULL DEFAULT '',
			region                TEXT         NOT NULL DEFAULT '',
			country               TEXT         NOT NULL DEFAULT '',
			is_remote             BOOLEAN      NOT NULL DEFAULT FALSE,
			salary_min            NUMERIC(12,2),
			salary_max            NUMERIC(12,2),
			currency              VARCHAR(8)   NOT NULL DEFAULT '',
			negotiable            BOOLEAN      NOT NULL DEFAULT FALSE,
			published             DATE,
			deadline              DATE,
			scraped_at            TIMESTAMPTZ  NOT NULL,
			metadata              JSONB        NOT NULL DEFAULT '{}',
			url                   TEXT         NOT NULL DEFAULT '',
			description_reference TEXT         NOT NULL DEFAULT '',
			detail_error          TEXT         NOT NULL DEFAULT '',
			created_at            TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			updated_at            TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			PRIMARY KEY (platform, id)
		);

		CREATE INDEX IF NOT EXISTS idx_jobs_deadline ON jobs(deadline);
		CREATE INDEX IF NOT EXISTS idx_jobs_company  ON jobs(company_name);
		CREATE INDEX IF NOT EXISTS idx_jobs_city     ON jobs(city);

		CREATE TABLE IF NOT EXISTS scraping_results (
			id                  UUID         PRIMARY KEY,
			platform            VARCHAR(20)  NOT NULL,
			total_jobs_found    INTEGER      NOT NULL,
			successful_scrapes  INTEGER      NOT NULL,
			failed_scrapes      INTEGER      NOT NULL,
			incomplete_scrapes  INTEGER      NOT NULL,
			start_time          TIMESTAMPTZ  NOT NULL,
			end_time            TIMESTAMPTZ  NOT NULL
		);
	`)
	return err
}

func (pw *PostgresWriter) Name() string { return "postgres" }

// SaveMerged upserts job. A failing row only fails its own call.
func (pw *PostgresWriter) SaveMerged(ctx context.Context, job *models.MergedJob) error {
	query, args, err := buildJobUpsert([]*models.MergedJob{job})
	if err != nil {
		return err
	}
	if _, err := pw.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("postgres: upsert job %s: %w", job.ID, err)
	}
	pw.written.Add(1)
	return nil
}

// Finalize reports how many rows were upserted since the last call.
func (pw *PostgresWriter) Finalize(_ context.Context) (*models.SinkSummary, error) {
	written := int(pw.written.Swap(0))
	pw.logger.Debug("[postgres] Upserted %d job(s)", written)
	return &models.SinkSummary{Name: pw.Name(), Written: written, Location: "table jobs"}, nil
}

// RecordRun stores the run summary in scraping_results.
func (pw *PostgresWriter) RecordRun(ctx context.Context, s *models.RunSummary) error {
	_, err := pw.db.ExecContext(ctx, `
		INSERT INTO scraping_results
			(id, platform, total_jobs_found, successful_scrapes, failed_scrapes, incomplete_scrapes, start_time, end_time)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO NOTHING
	`, s.RunID.String(), string(s.Platform), s.TotalFound, s.Successful, s.Failed, s.Incomplete, s.StartedAt, s.FinishedAt)
	if err != nil {
		return fmt.Errorf("postgres: record run: %w", err)
	}
	return nil
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}

// buildJobUpsert renders one multi-row INSERT ... ON CONFLICT DO UPDATE.
func buildJobUpsert(batch []*models.MergedJob) (string, []any, error) {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]any, 0, len(batch)*pgJobColumns)

	for idx, j := range batch {
		meta, err := json.Marshal(j.Metadata)
		if err != nil {
			return "", nil, fmt.Errorf("postgres: encode metadata for %s: %w", j.ID, err)
		}

		placeholders := make([]string, pgJobColumns)
		for c := range placeholders {
			placeholders[c] = fmt.Sprintf("$%d", idx*pgJobColumns+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")

		var salaryMin, salaryMax any
		currency, negotiable := "", false
		if s := j.Salary; s != nil {
			salaryMin, salaryMax = nullableFloat(s.Min), nullableFloat(s.Max)
			currency, negotiable = s.Currency, s.Negotiable
		}

		valueArgs = append(valueArgs,
			string(j.Platform), j.ID, j.Title,
			j.Company.Name, j.Company.JobsURL, j.Company.LogoURL,
			j.Location.City, j.Location.Region, j.Location.Country, j.Location.IsRemote,
			salaryMin, salaryMax, currency, negotiable,
			nullableTime(j.Dates.Published), nullableTime(j.Dates.Deadline), j.Dates.Scraped,
			string(meta), j.URL, j.DescriptionReference, j.DetailError,
		)
	}

	query := fmt.Sprintf(`
		INSERT INTO jobs (platform, id, title, company_name, company_jobs_url, company_logo_url,
			city, region, country, is_remote, salary_min, salary_max, currency, negotiable,
			published, deadline, scraped_at, metadata, url, description_reference, detail_error)
		VALUES %s
		ON CONFLICT (platform, id) DO UPDATE SET
			title = EXCLUDED.title,
			company_name = EXCLUDED.company_name,
			company_jobs_url = EXCLUDED.company_jobs_url,
			company_logo_url = EXCLUDED.company_logo_url,
			city = EXCLUDED.city,
			region = EXCLUDED.region,
			country = EXCLUDED.country,
			is_remote = EXCLUDED.is_remote,
			salary_min = EXCLUDED.salary_min,
			salary_max = EXCLUDED.salary_max,
			currency = EXCLUDED.currency,
			negotiable = EXCLUDED.negotiable,
			published = EXCLUDED.published,
			deadline = EXCLUDED.deadline,
			scraped_at = EXCLUDED.scraped_at,
			metadata = EXCLUDED.metadata,
			url = EXCLUDED.url,
			description_reference = EXCLUDED.description_reference,
			detail_error = EXCLUDED.detail_error,
			updated_at = NOW()
	`, strings.Join(valueStrings, ","))

	return query, valueArgs, nil
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
