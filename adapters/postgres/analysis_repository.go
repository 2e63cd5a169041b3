package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"tdadiffusion/domain/core"
	"tdadiffusion/domain/diffusion"
	"tdadiffusion/ports"

	"github.com/jmoiron/sqlx"
)

const defaultListLimit = 50

// analysisRepository implements the AnalysisRepository interface
type analysisRepository struct {
	db *sqlx.DB
}

// NewAnalysisRepository creates a new analysis repository
func NewAnalysisRepository(db *sqlx.DB) ports.AnalysisRepository {
	return &analysisRepository{db: db}
}

// analysisRow is the flat database form of an AnalysisRecord
type analysisRow struct {
	ID                   string    `db:"id"`
	CreatedAt            time.Time `db:"created_at"`
	Source               string    `db:"source"`
	InputHash            string    `db:"input_hash"`
	Mode                 string    `db:"mode"`
	Request              []byte    `db:"request"`
	Result               []byte    `db:"result"`
	Slope                float64   `db:"slope"`
	RSquared             float64   `db:"r_squared"`
	Grade                string    `db:"grade"`
	DiffusionCoefficient float64   `db:"diffusion_coefficient"`
	Material             string    `db:"material"`
	TemperatureC         float64   `db:"temperature_c"`
}

func toRow(rec *ports.AnalysisRecord) (*analysisRow, error) {
	reqJSON, err := json.Marshal(rec.Request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	resJSON, err := json.Marshal(rec.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return &analysisRow{
		ID:                   rec.ID.String(),
		CreatedAt:            rec.CreatedAt,
		Source:               rec.Source,
		InputHash:            rec.InputHash.String(),
		Mode:                 string(rec.Result.Mode()),
		Request:              reqJSON,
		Result:               resJSON,
		Slope:                rec.Result.Slope(),
		RSquared:             rec.Result.RSquared(),
		Grade:                string(rec.Result.Grade()),
		DiffusionCoefficient: rec.Result.DiffusionCoefficient(),
		Material:             rec.Request.Material,
		TemperatureC:         rec.Request.TemperatureC,
	}, nil
}

func (row *analysisRow) toRecord() (*ports.AnalysisRecord, error) {
	hash, err := core.ParseInputHash(row.InputHash)
	if err != nil {
		return nil, err
	}
	rec := &ports.AnalysisRecord{
		ID:        core.AnalysisID(row.ID),
		CreatedAt: row.CreatedAt,
		Source:    row.Source,
		InputHash: hash,
	}
	if err := json.Unmarshal(row.Request, &rec.Request); err != nil {
		return nil, fmt.Errorf("failed to unmarshal request: %w", err)
	}
	var res diffusion.Result
	if err := json.Unmarshal(row.Result, &res); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	rec.Result = res
	return rec, nil
}

// Save inserts a new analysis into the database
func (r *analysisRepository) Save(ctx context.Context, rec *ports.AnalysisRecord) error {
	row, err := toRow(rec)
	if err != nil {
		return err
	}

	query := `INSERT INTO diffusion_analyses (
		id, created_at, source, input_hash, mode, request, result,
		slope, r_squared, grade, diffusion_coefficient, material, temperature_c
	) VALUES (
		:id, :created_at, :source, :input_hash, :mode, :request, :result,
		:slope, :r_squared, :grade, :diffusion_coefficient, :material, :temperature_c
	)`

	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}
	return nil
}

const selectColumns = `id, created_at, source, input_hash, mode, request, result,
	slope, r_squared, grade, diffusion_coefficient, material, temperature_c`

// GetByID retrieves an analysis by its ID
func (r *analysisRepository) GetByID(ctx context.Context, id core.AnalysisID) (*ports.AnalysisRecord, error) {
	var row analysisRow
	err := r.db.GetContext(ctx, &row, `SELECT `+selectColumns+` FROM diffusion_analyses WHERE id = $1`, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.NewNotFoundError("analysis", id.String())
		}
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return row.toRecord()
}

// List retrieves analyses newest first with optional filters
func (r *analysisRepository) List(ctx context.Context, filters ports.AnalysisFilters) ([]*ports.AnalysisRecord, error) {
	query, args := buildListQuery(filters)

	var rows []analysisRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}

	out := make([]*ports.AnalysisRecord, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].toRecord()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func buildListQuery(filters ports.AnalysisFilters) (string, []interface{}) {
	var where []string
	var args []interface{}
	if filters.Mode != nil {
		args = append(args, string(*filters.Mode))
		where = append(where, fmt.Sprintf("mode = $%d", len(args)))
	}
	if filters.InputHash != nil {
		args = append(args, filters.InputHash.String())
		where = append(where, fmt.Sprintf("input_hash = $%d", len(args)))
	}

	query := `SELECT ` + selectColumns + ` FROM diffusion_analyses`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit, filters.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	return query, args
}
