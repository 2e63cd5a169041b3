package ports

import (
	"context"
	"time"

	"tdadiffusion/domain/core"
	"tdadiffusion/domain/diffusion"
)

// AnalysisRecord is a stored analysis result
type AnalysisRecord struct {
	ID        core.AnalysisID
	CreatedAt time.Time
	// Source names where the series came from, e.g. a file name or "api".
	Source    string
	InputHash core.InputHash
	Request   diffusion.Request
	Result    diffusion.Result
}

// AnalysisFilters for listing analyses
type AnalysisFilters struct {
	Mode      *diffusion.Mode
	InputHash *core.InputHash
	Limit     int
	Offset    int
}

// AnalysisRepository defines the interface for analysis storage operations
type AnalysisRepository interface {
	Save(ctx context.Context, rec *AnalysisRecord) error
	GetByID(ctx context.Context, id core.AnalysisID) (*AnalysisRecord, error)
	// List returns records newest first
	List(ctx context.Context, filters AnalysisFilters) ([]*AnalysisRecord, error)
}
