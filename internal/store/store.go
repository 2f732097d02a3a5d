// Package store defines persistence for study provenance records and
// generated reports. Implementations include PostgreSQL (source of truth)
// and in-memory (for testing and ledger-less development).
package store

import (
	"context"
	"errors"

	"github.com/AlonsoFi/BIOCHAIN-v2/internal/model"
)

var (
	// ErrDuplicateStudy is returned when a study with the same content key
	// already exists. The existing record is never overwritten.
	ErrDuplicateStudy = errors.New("store: study content key already exists")

	// ErrStudyNotFound is returned for an unknown content key.
	ErrStudyNotFound = errors.New("store: study not found")

	// ErrReportNotFound is returned for an unknown report id.
	ErrReportNotFound = errors.New("store: report not found")
)

// StudyStore persists the append-only study provenance ledger.
type StudyStore interface {
	// InsertStudy registers a study. Checking for an existing content key
	// and inserting are one atomic operation: concurrent identical uploads
	// yield exactly one success, the rest ErrDuplicateStudy.
	InsertStudy(ctx context.Context, s *model.StudyRecord) error

	// GetStudy retrieves a study by content key.
	GetStudy(ctx context.Context, key model.ContentKey) (*model.StudyRecord, error)

	// ListStudies returns all studies in insertion order.
	ListStudies(ctx context.Context) ([]model.StudyRecord, error)

	// ListStudiesByOwner returns an owner's studies in insertion order.
	ListStudiesByOwner(ctx context.Context, ownerID string) ([]model.StudyRecord, error)
}

// ReportStore persists generated report records.
type ReportStore interface {
	// SaveReport persists a finished report record.
	SaveReport(ctx context.Context, r *model.ReportRecord) error

	// GetReport retrieves a report by id.
	GetReport(ctx context.Context, reportID string) (*model.ReportRecord, error)

	// ListReportsByRequester returns all reports requested by one owner.
	ListReportsByRequester(ctx context.Context, requesterID string) ([]model.ReportRecord, error)

	// ListRecentReports returns up to limit reports, most recent first.
	ListRecentReports(ctx context.Context, limit int) ([]model.ReportRecord, error)
}

// Store combines study and report persistence.
type Store interface {
	StudyStore
	ReportStore
}
