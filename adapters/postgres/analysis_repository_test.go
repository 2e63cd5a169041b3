package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"tdadiffusion/adapters/db/postgres/migrations"
	"tdadiffusion/domain/core"
	"tdadiffusion/domain/diffusion"
	"tdadiffusion/internal"
	"tdadiffusion/ports"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildListQuery(t *testing.T) {
	query, args := buildListQuery(ports.AnalysisFilters{})
	assert.Contains(t, query, "ORDER BY created_at DESC LIMIT $1 OFFSET $2")
	assert.NotContains(t, query, "WHERE")
	assert.Equal(t, []interface{}{defaultListLimit, 0}, args)

	mode := diffusion.LogRateVsLogTime
	hash := core.InputHash(0xabc)
	query, args = buildListQuery(ports.AnalysisFilters{Mode: &mode, InputHash: &hash, Limit: 5, Offset: 10})
	assert.Contains(t, query, "WHERE mode = $1 AND input_hash = $2")
	assert.Contains(t, query, "LIMIT $3 OFFSET $4")
	assert.Equal(t, []interface{}{"log_log", "0000000000000abc", 5, 10}, args)
}

func sampleRecord(t *testing.T) *ports.AnalysisRecord {
	t.Helper()
	fields := diffusion.ResultFields{
		TailStartTime: 60,
		Mode:          diffusion.RateVsInverseSqrtTime,
		Slope:         10,
		RSquared:      0.999,
		NumPoints:     11,
		XData:         []float64{0.1, 0.2},
		YData:         []float64{1, 2},
		Grade:         diffusion.GradeExcellent,
		ThicknessCM:   0.1,
		TemperatureC:  25,
	}
	req := diffusion.DefaultRequest(diffusion.RateVsInverseSqrtTime).WithTailStart(60)
	return &ports.AnalysisRecord{
		ID:        core.NewAnalysisID(),
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
		Source:    "unit-test",
		InputHash: core.NewHashBuilder().String(t.Name()).Sum(),
		Request:   req,
		Result:    diffusion.NewResult(fields),
	}
}

func TestRowRoundTrip(t *testing.T) {
	rec := sampleRecord(t)

	row, err := toRow(rec)
	require.NoError(t, err)
	assert.Equal(t, "1_sqrt_t", row.Mode)
	assert.Equal(t, "Excellent", row.Grade)
	assert.Equal(t, "steel", row.Material)

	back, err := row.toRecord()
	require.NoError(t, err)
	assert.Equal(t, rec.ID, back.ID)
	assert.Equal(t, rec.InputHash, back.InputHash)
	assert.Equal(t, rec.Request, back.Request)
	assert.Equal(t, rec.Result.Fields(), back.Result.Fields())
}

func TestAnalysisRepository_Postgres(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Skipping live test: TEST_DATABASE_URL not set")
	}

	db, err := sqlx.Connect("postgres", url)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	_, err = migrations.NewMigrator(db.DB, internal.Discard()).Up(ctx)
	require.NoError(t, err)

	repo := NewAnalysisRepository(db)
	rec := sampleRecord(t)
	require.NoError(t, repo.Save(ctx, rec))

	got, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Result.Slope(), got.Result.Slope())
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))

	list, err := repo.List(ctx, ports.AnalysisFilters{InputHash: &rec.InputHash})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, rec.ID, list[0].ID)

	_, err = repo.GetByID(ctx, core.NewAnalysisID())
	assert.ErrorIs(t, err, core.ErrNotFound)
}
