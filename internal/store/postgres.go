// Package store persists audit runs to Postgres.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"complaint-survival-audit/internal/pipeline"
)

type Config struct {
	URL    string
	Schema string
	Tag    string
}

func sanitizeSchema(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", errors.New("db schema is required")
	}
	valid := regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
	if !valid.MatchString(value) {
		return "", fmt.Errorf("invalid schema name: %s", value)
	}
	return value, nil
}

// Seed stores the report only when no runs exist yet. Returns the empty
// string when seeding was skipped.
func Seed(report *pipeline.Report, cfg Config) (string, error) {
	schema, db, ctx, cancel, err := connect(cfg)
	if err != nil {
		return "", err
	}
	defer cancel()
	defer db.Close()

	var count int
	if err := db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s.audit_runs`, schema)).Scan(&count); err != nil {
		return "", err
	}
	if count > 0 {
		return "", nil
	}
	return storeReportTx(ctx, db, report, schema, cfg.Tag)
}

// Store persists the report as a new audit run.
func Store(report *pipeline.Report, cfg Config) (string, error) {
	schema, db, ctx, cancel, err := connect(cfg)
	if err != nil {
		return "", err
	}
	defer cancel()
	defer db.Close()

	return storeReportTx(ctx, db, report, schema, cfg.Tag)
}

func connect(cfg Config) (string, *sql.DB, context.Context, context.CancelFunc, error) {
	schema, err := sanitizeSchema(cfg.Schema)
	if err != nil {
		return "", nil, nil, nil, err
	}

	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return "", nil, nil, nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)

	if err := db.PingContext(ctx); err != nil {
		cancel()
		db.Close()
		return "", nil, nil, nil, err
	}
	if err := ensureSchema(ctx, db, schema); err != nil {
		cancel()
		db.Close()
		return "", nil, nil, nil, err
	}
	return schema, db, ctx, cancel, nil
}

func storeReportTx(ctx context.Context, db *sql.DB, report *pipeline.Report, schema string, tag string) (string, error) {
	runID := uuid.New()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s.audit_runs (
			id, input, seed, total_complaints, resolved_count, censored_count,
			invalid_rows, train_size, validation_size, test_size,
			winner_family, winner_config, test_integrated_brier, test_concordance, run_tag
		) VALUES (
			$1,$2,$3,$4,$5,$6,
			$7,$8,$9,$10,
			$11,$12,$13,$14,$15
		)`, schema),
		runID,
		report.Summary.Input,
		report.Summary.Seed,
		report.Summary.TotalComplaints,
		report.Summary.Resolved,
		report.Summary.Censored,
		report.Summary.InvalidRows,
		report.Summary.TrainSize,
		report.Summary.ValidationSize,
		report.Summary.TestSize,
		report.Winner.Family,
		report.Winner.ConfigKey,
		report.Test.IntegratedBrier,
		report.Test.Concordance,
		nullString(tag),
	)
	if err != nil {
		_ = tx.Rollback()
		return "", err
	}

	insertMetricSQL := fmt.Sprintf(`
		INSERT INTO %s.audit_metric_results (
			id, run_id, split, family, config_key, metric, horizon, score
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8
		)`, schema)

	for _, entry := range report.Leaderboard {
		for _, row := range []struct {
			metric string
			score  float64
		}{
			{"integrated_brier", entry.IntegratedBrier},
			{"concordance", entry.Concordance},
		} {
			_, err = tx.ExecContext(ctx, insertMetricSQL,
				uuid.New(), runID, "validation", entry.Family, entry.ConfigKey,
				row.metric, nil, row.score,
			)
			if err != nil {
				_ = tx.Rollback()
				return "", err
			}
		}
	}
	for _, hm := range report.Test.ByHorizon {
		for _, row := range []struct {
			metric string
			score  float64
		}{
			{"brier", hm.Brier},
			{"auc", hm.AUC},
		} {
			_, err = tx.ExecContext(ctx, insertMetricSQL,
				uuid.New(), runID, "test", report.Winner.Family, report.Winner.ConfigKey,
				row.metric, hm.Horizon, row.score,
			)
			if err != nil {
				_ = tx.Rollback()
				return "", err
			}
		}
	}

	insertPredictionSQL := fmt.Sprintf(`
		INSERT INTO %s.audit_predictions (
			id, run_id, priority, category, unit, community_board,
			latitude, longitude, observed_days, resolved, predicted_days, tier
		) VALUES (
			$1,$2,$3,$4,$5,$6,
			$7,$8,$9,$10,$11,$12
		)`, schema)

	for _, p := range report.Predictions {
		_, err = tx.ExecContext(ctx, insertPredictionSQL,
			uuid.New(),
			runID,
			nullString(p.Priority),
			nullString(p.Category),
			nullString(p.Unit),
			nullString(p.CommunityBoard),
			p.Latitude,
			p.Longitude,
			p.ObservedDays,
			p.Resolved,
			p.PredictedDays,
			p.Tier,
		)
		if err != nil {
			_ = tx.Rollback()
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return runID.String(), nil
}

func ensureSchema(ctx context.Context, db *sql.DB, schema string) error {
	if _, err := db.ExecContext(ctx, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, schema)); err != nil {
		return err
	}

	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.audit_runs (
			id uuid PRIMARY KEY,
			input text NOT NULL,
			seed bigint NOT NULL,
			total_complaints integer NOT NULL,
			resolved_count integer NOT NULL,
			censored_count integer NOT NULL,
			invalid_rows integer NOT NULL,
			train_size integer NOT NULL,
			validation_size integer NOT NULL,
			test_size integer NOT NULL,
			winner_family text NOT NULL,
			winner_config text NOT NULL,
			test_integrated_brier numeric(10,6) NOT NULL,
			test_concordance numeric(10,6) NOT NULL,
			run_tag text,
			created_at timestamptz NOT NULL DEFAULT now()
		)`, schema))
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.audit_metric_results (
			id uuid PRIMARY KEY,
			run_id uuid NOT NULL REFERENCES %s.audit_runs(id) ON DELETE CASCADE,
			split text NOT NULL,
			family text NOT NULL,
			config_key text NOT NULL,
			metric text NOT NULL,
			horizon numeric(10,2),
			score numeric(10,6) NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now()
		)`, schema, schema))
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.audit_predictions (
			id uuid PRIMARY KEY,
			run_id uuid NOT NULL REFERENCES %s.audit_runs(id) ON DELETE CASCADE,
			priority text,
			category text,
			unit text,
			community_board text,
			latitude numeric(9,5),
			longitude numeric(9,5),
			observed_days numeric(10,2) NOT NULL,
			resolved boolean NOT NULL,
			predicted_days numeric(10,2) NOT NULL,
			tier text NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now()
		)`, schema, schema))
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_audit_metric_results_run_idx ON %s.audit_metric_results (run_id)`, schema, schema))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_audit_predictions_run_idx ON %s.audit_predictions (run_id)`, schema, schema))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_audit_predictions_tier_idx ON %s.audit_predictions (tier)`, schema, schema))
	return err
}

func nullString(value string) sql.NullString {
	if strings.TrimSpace(value) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
