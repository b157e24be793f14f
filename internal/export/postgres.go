package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unidata/uni-rankings-scraper/internal/models"
)

// PgxIface is the query surface the exporter needs. Tests substitute a
// pgxmock pool.
type PgxIface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
}

// PostgresConfig holds connection settings for the database exporter.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	MaxConns int32
}

// PostgresExporter upserts ranking datasets into Postgres, keyed on the
// detail URL so repeated exports refresh rows instead of duplicating them.
type PostgresExporter struct {
	db     PgxIface
	logger *slog.Logger
}

// Connect opens a pgx pool, verifies it and wraps it in an exporter.
func Connect(ctx context.Context, cfg PostgresConfig) (*PostgresExporter, *pgxpool.Pool, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewPostgresExporter(pool), pool, nil
}

func NewPostgresExporter(db PgxIface) *PostgresExporter {
	return &PostgresExporter{
		db:     db,
		logger: slog.Default().With("component", "postgres-export"),
	}
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS university_rankings (
	detail_url TEXT PRIMARY KEY,
	rank INTEGER,
	name TEXT NOT NULL,
	country TEXT,
	overall_score DOUBLE PRECISION,
	teaching_score DOUBLE PRECISION,
	research_score DOUBLE PRECISION,
	citations_score DOUBLE PRECISION,
	industry_income_score DOUBLE PRECISION,
	international_outlook_score DOUBLE PRECISION,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS university_details (
	url TEXT PRIMARY KEY,
	name TEXT,
	ranking_data JSONB,
	key_stats JSONB,
	subjects JSONB,
	additional_info JSONB,
	error TEXT,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS export_sessions (
	batch_id UUID PRIMARY KEY,
	record_count INTEGER NOT NULL,
	exported_at TIMESTAMPTZ NOT NULL
);`

// CreateSchema creates the export tables if they do not exist.
func (e *PostgresExporter) CreateSchema(ctx context.Context) error {
	if _, err := e.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

const upsertRankingSQL = `
INSERT INTO university_rankings (
	detail_url, rank, name, country,
	overall_score, teaching_score, research_score,
	citations_score, industry_income_score, international_outlook_score,
	updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
ON CONFLICT (detail_url) DO UPDATE SET
	rank = EXCLUDED.rank,
	name = EXCLUDED.name,
	country = EXCLUDED.country,
	overall_score = EXCLUDED.overall_score,
	teaching_score = EXCLUDED.teaching_score,
	research_score = EXCLUDED.research_score,
	citations_score = EXCLUDED.citations_score,
	industry_income_score = EXCLUDED.industry_income_score,
	international_outlook_score = EXCLUDED.international_outlook_score,
	updated_at = now()`

// ExportRankings upserts the rankings table rows. Entries without a detail
// URL are keyed on the institution name instead.
func (e *PostgresExporter) ExportRankings(ctx context.Context, entries []models.RankEntry) error {
	for _, entry := range entries {
		key := entry.DetailURL
		if key == "" {
			key = "name:" + entry.Name
		}
		_, err := e.db.Exec(ctx, upsertRankingSQL,
			key, entry.Rank, entry.Name, entry.Country,
			entry.OverallScore, entry.TeachingScore, entry.ResearchScore,
			entry.CitationsScore, entry.IndustryIncomeScore, entry.InternationalOutlookScore)
		if err != nil {
			return fmt.Errorf("failed to upsert ranking for %q: %w", entry.Name, err)
		}
	}
	e.logger.Info("exported rankings", "records", len(entries))
	return nil
}

const upsertDetailSQL = `
INSERT INTO university_details (
	url, name, ranking_data, key_stats, subjects, additional_info, error, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, now())
ON CONFLICT (url) DO UPDATE SET
	name = EXCLUDED.name,
	ranking_data = EXCLUDED.ranking_data,
	key_stats = EXCLUDED.key_stats,
	subjects = EXCLUDED.subjects,
	additional_info = EXCLUDED.additional_info,
	error = EXCLUDED.error,
	updated_at = now()`

// ExportDetails upserts detail records, error variants included so failed
// pages stay visible in the database.
func (e *PostgresExporter) ExportDetails(ctx context.Context, records []models.DetailRecord) error {
	for _, rec := range records {
		rankingData, err := marshalSection(rec.RankingData)
		if err != nil {
			return err
		}
		keyStats, err := marshalSection(rec.KeyStats)
		if err != nil {
			return err
		}
		subjects, err := marshalSection(rec.Subjects)
		if err != nil {
			return err
		}
		additionalInfo, err := marshalSection(rec.AdditionalInfo)
		if err != nil {
			return err
		}

		_, err = e.db.Exec(ctx, upsertDetailSQL,
			rec.URL, rec.Name, rankingData, keyStats, subjects, additionalInfo, rec.Err)
		if err != nil {
			return fmt.Errorf("failed to upsert detail for %q: %w", rec.URL, err)
		}
	}
	e.logger.Info("exported details", "records", len(records))
	return nil
}

const insertSessionSQL = `
INSERT INTO export_sessions (batch_id, record_count, exported_at)
VALUES ($1, $2, $3)`

// ExportCombined upserts the combined dataset into both tables and records
// the export session.
func (e *PostgresExporter) ExportCombined(ctx context.Context, records []models.CompositeRecord) error {
	entries := make([]models.RankEntry, 0, len(records))
	details := make([]models.DetailRecord, 0, len(records))
	for _, rec := range records {
		entries = append(entries, rec.RankEntry)
		if rec.DetailURL == "" {
			continue
		}
		details = append(details, models.DetailRecord{
			URL:            rec.DetailURL,
			Name:           rec.Name,
			RankingData:    rec.DetailedRankingData,
			KeyStats:       rec.KeyStats,
			Subjects:       rec.Subjects,
			AdditionalInfo: rec.AdditionalInfo,
		})
	}

	if err := e.ExportRankings(ctx, entries); err != nil {
		return err
	}
	if err := e.ExportDetails(ctx, details); err != nil {
		return err
	}

	batchID := uuid.New().String()
	if _, err := e.db.Exec(ctx, insertSessionSQL, batchID, len(records), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to record export session: %w", err)
	}

	e.logger.Info("exported combined dataset", "batch_id", batchID, "records", len(records))
	return nil
}

// marshalSection returns nil for empty sections so the column stays NULL.
func marshalSection(v any) ([]byte, error) {
	switch s := v.(type) {
	case map[string]string:
		if len(s) == 0 {
			return nil, nil
		}
	case []models.Subject:
		if len(s) == 0 {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal section: %w", err)
	}
	return data, nil
}
