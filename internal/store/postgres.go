package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AlonsoFi/BIOCHAIN-v2/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
//
// Schema:
//
//	CREATE TABLE studies (
//	    seq             BIGSERIAL,
//	    content_key     TEXT PRIMARY KEY,
//	    owner_id        TEXT NOT NULL,
//	    lab_id          TEXT NOT NULL,
//	    biomarkers      TEXT[] NOT NULL,
//	    attestation_key TEXT NOT NULL,
//	    registered_at   TIMESTAMPTZ NOT NULL
//	);
//	CREATE TABLE reports (
//	    report_id    TEXT PRIMARY KEY,
//	    requester_id TEXT NOT NULL,
//	    payload      JSONB NOT NULL,
//	    generated_at TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX reports_requester_idx ON reports (requester_id);
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// InsertStudy registers a study. The conflict clause makes the
// check-and-insert a single atomic statement: a second identical upload
// affects zero rows and is reported as a duplicate.
func (s *PostgresStore) InsertStudy(ctx context.Context, rec *model.StudyRecord) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO studies (content_key, owner_id, lab_id, biomarkers, attestation_key, registered_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (content_key) DO NOTHING`,
		rec.ContentKey.String(), rec.OwnerID, rec.LabID, rec.Biomarkers,
		rec.AttestationKey.String(), rec.RegisteredAt,
	)
	if err != nil {
		return fmt.Errorf("insert study: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateStudy
	}
	return nil
}

func (s *PostgresStore) GetStudy(ctx context.Context, key model.ContentKey) (*model.StudyRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT content_key, owner_id, lab_id, biomarkers, attestation_key, registered_at
		 FROM studies WHERE content_key = $1`, key.String())

	rec, err := scanStudy(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStudyNotFound
		}
		return nil, fmt.Errorf("get study %s: %w", key.Short(), err)
	}
	return rec, nil
}

func (s *PostgresStore) ListStudies(ctx context.Context) ([]model.StudyRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT content_key, owner_id, lab_id, biomarkers, attestation_key, registered_at
		 FROM studies ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanStudies(rows)
}

func (s *PostgresStore) ListStudiesByOwner(ctx context.Context, ownerID string) ([]model.StudyRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT content_key, owner_id, lab_id, biomarkers, attestation_key, registered_at
		 FROM studies WHERE owner_id = $1 ORDER BY seq`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanStudies(rows)
}

func (s *PostgresStore) SaveReport(ctx context.Context, r *model.ReportRecord) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report %s: %w", r.ReportID, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO reports (report_id, requester_id, payload, generated_at)
		 VALUES ($1, $2, $3, $4)`,
		r.ReportID, r.RequesterID, payload, r.GeneratedAt,
	)
	return err
}

func (s *PostgresStore) GetReport(ctx context.Context, reportID string) (*model.ReportRecord, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM reports WHERE report_id = $1`, reportID).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("get report %s: %w", reportID, err)
	}

	var rec model.ReportRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", reportID, err)
	}
	return &rec, nil
}

func (s *PostgresStore) ListReportsByRequester(ctx context.Context, requesterID string) ([]model.ReportRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT payload FROM reports WHERE requester_id = $1 ORDER BY generated_at`, requesterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanReports(rows)
}

func (s *PostgresStore) ListRecentReports(ctx context.Context, limit int) ([]model.ReportRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT payload FROM reports ORDER BY generated_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanReports(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStudy(row rowScanner) (*model.StudyRecord, error) {
	var rec model.StudyRecord
	var keyHex, attHex string

	if err := row.Scan(&keyHex, &rec.OwnerID, &rec.LabID, &rec.Biomarkers,
		&attHex, &rec.RegisteredAt); err != nil {
		return nil, err
	}

	key, err := model.ParseContentKey(keyHex)
	if err != nil {
		return nil, err
	}
	att, err := model.ParseContentKey(attHex)
	if err != nil {
		return nil, err
	}
	rec.ContentKey = key
	rec.AttestationKey = att
	return &rec, nil
}

func scanStudies(rows pgx.Rows) ([]model.StudyRecord, error) {
	var out []model.StudyRecord
	for rows.Next() {
		rec, err := scanStudy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func scanReports(rows pgx.Rows) ([]model.ReportRecord, error) {
	var out []model.ReportRecord
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var rec model.ReportRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
