// Package memory provides an in-process AnalysisRepository for the CLI and
// for running the API without a database.
package memory

import (
	"context"
	"sort"
	"sync"

	"tdadiffusion/domain/core"
	"tdadiffusion/ports"
)

const defaultListLimit = 50

type analysisRepository struct {
	mu      sync.RWMutex
	records map[core.AnalysisID]ports.AnalysisRecord
}

// NewAnalysisRepository creates an empty repository
func NewAnalysisRepository() ports.AnalysisRepository {
	return &analysisRepository{records: make(map[core.AnalysisID]ports.AnalysisRecord)}
}

func (r *analysisRepository) Save(ctx context.Context, rec *ports.AnalysisRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.ID] = *rec
	return nil
}

func (r *analysisRepository) GetByID(ctx context.Context, id core.AnalysisID) (*ports.AnalysisRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, core.NewNotFoundError("analysis", id.String())
	}
	return &rec, nil
}

func (r *analysisRepository) List(ctx context.Context, filters ports.AnalysisFilters) ([]*ports.AnalysisRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	matched := make([]*ports.AnalysisRecord, 0, len(r.records))
	for _, rec := range r.records {
		if filters.Mode != nil && rec.Result.Mode() != *filters.Mode {
			continue
		}
		if filters.InputHash != nil && rec.InputHash != *filters.InputHash {
			continue
		}
		rec := rec
		matched = append(matched, &rec)
	}
	r.mu.RUnlock()

	// Newest first; IDs are time-ordered so they break ties deterministically.
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	if filters.Offset >= len(matched) {
		return []*ports.AnalysisRecord{}, nil
	}
	matched = matched[filters.Offset:]
	limit := filters.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}
