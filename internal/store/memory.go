package store

import (
	"context"
	"sort"
	"sync"

	"github.com/AlonsoFi/BIOCHAIN-v2/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing and
// for running without a database. Not suitable for production (no
// persistence).
type MemoryStore struct {
	mu      sync.RWMutex
	studies []model.StudyRecord
	byKey   map[model.ContentKey]int
	reports map[string]*model.ReportRecord
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byKey:   make(map[model.ContentKey]int),
		reports: make(map[string]*model.ReportRecord),
	}
}

// InsertStudy checks and appends under a single lock, so concurrent
// identical uploads cannot both register.
func (s *MemoryStore) InsertStudy(_ context.Context, rec *model.StudyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byKey[rec.ContentKey]; exists {
		return ErrDuplicateStudy
	}
	s.byKey[rec.ContentKey] = len(s.studies)
	s.studies = append(s.studies, *rec)
	return nil
}

func (s *MemoryStore) GetStudy(_ context.Context, key model.ContentKey) (*model.StudyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byKey[key]
	if !ok {
		return nil, ErrStudyNotFound
	}
	rec := s.studies[idx]
	return &rec, nil
}

func (s *MemoryStore) ListStudies(_ context.Context) ([]model.StudyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.StudyRecord, len(s.studies))
	copy(out, s.studies)
	return out, nil
}

func (s *MemoryStore) ListStudiesByOwner(_ context.Context, ownerID string) ([]model.StudyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.StudyRecord
	for _, rec := range s.studies {
		if rec.OwnerID == ownerID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *MemoryStore) SaveReport(_ context.Context, r *model.ReportRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := *r
	s.reports[r.ReportID] = &rec
	return nil
}

func (s *MemoryStore) GetReport(_ context.Context, reportID string) (*model.ReportRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reports[reportID]
	if !ok {
		return nil, ErrReportNotFound
	}
	rec := *r
	return &rec, nil
}

func (s *MemoryStore) ListReportsByRequester(_ context.Context, requesterID string) ([]model.ReportRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.ReportRecord
	for _, r := range s.reports {
		if r.RequesterID == requesterID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].GeneratedAt.Before(out[j].GeneratedAt)
	})
	return out, nil
}

func (s *MemoryStore) ListRecentReports(_ context.Context, limit int) ([]model.ReportRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.ReportRecord, 0, len(s.reports))
	for _, r := range s.reports {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].GeneratedAt.After(out[j].GeneratedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
