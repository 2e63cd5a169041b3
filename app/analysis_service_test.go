package app

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"tdadiffusion/adapters/memory"
	"tdadiffusion/domain/core"
	"tdadiffusion/domain/diffusion"
	"tdadiffusion/internal"
	engine "tdadiffusion/internal/diffusion"
	"tdadiffusion/internal/synthetic"
	"tdadiffusion/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Mock implementations for testing
type MockSeriesReader struct {
	mock.Mock
}

func (m *MockSeriesReader) ReadSeries(ctx context.Context, path string) (diffusion.TimeSeries, error) {
	args := m.Called(ctx, path)
	return args.Get(0).(diffusion.TimeSeries), args.Error(1)
}

type MockAnalysisRepository struct {
	mock.Mock
}

func (m *MockAnalysisRepository) Save(ctx context.Context, rec *ports.AnalysisRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockAnalysisRepository) GetByID(ctx context.Context, id core.AnalysisID) (*ports.AnalysisRecord, error) {
	args := m.Called(ctx, id)
	rec, _ := args.Get(0).(*ports.AnalysisRecord)
	return rec, args.Error(1)
}

func (m *MockAnalysisRepository) List(ctx context.Context, filters ports.AnalysisFilters) ([]*ports.AnalysisRecord, error) {
	args := m.Called(ctx, filters)
	return args.Get(0).([]*ports.AnalysisRecord), args.Error(1)
}

func syntheticSeries(t *testing.T) diffusion.TimeSeries {
	t.Helper()
	ds, err := synthetic.Generate(synthetic.DefaultConfig())
	require.NoError(t, err)
	return ds.Series
}

func newService(repo ports.AnalysisRepository, reader ports.SeriesReader) *AnalysisService {
	eng := engine.NewEngine(engine.DefaultOptions(), internal.Discard())
	svc := NewAnalysisService(eng, repo, reader, internal.Discard())
	svc.now = func() time.Time { return time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC) }
	return svc
}

func TestAnalyze_StoresRecord(t *testing.T) {
	repo := &MockAnalysisRepository{}
	repo.On("Save", mock.Anything, mock.AnythingOfType("*ports.AnalysisRecord")).Return(nil)
	svc := newService(repo, nil)

	in := AnalysisInput{
		Series:  syntheticSeries(t),
		Request: diffusion.DefaultRequest(diffusion.RateVsInverseSqrtTime),
		Source:  "run-17.xlsx",
	}
	rec, err := svc.Analyze(context.Background(), in)
	require.NoError(t, err)

	assert.False(t, rec.ID.String() == "")
	assert.Equal(t, "run-17.xlsx", rec.Source)
	assert.Equal(t, InputHash(in), rec.InputHash)
	assert.Equal(t, 2026, rec.CreatedAt.Year())
	assert.Greater(t, rec.Result.DiffusionCoefficient(), 0.0)
	repo.AssertNumberOfCalls(t, "Save", 1)
}

func TestAnalyze_FilterNoteIsAddedToWarnings(t *testing.T) {
	svc := newService(memory.NewAnalysisRepository(), nil)

	rec, err := svc.Analyze(context.Background(), AnalysisInput{
		Series:      syntheticSeries(t),
		Request:     diffusion.DefaultRequest(diffusion.RateVsInverseSqrtTime),
		FilterNoise: true,
	})
	require.NoError(t, err)

	warnings := rec.Result.Warnings()
	require.NotEmpty(t, warnings)
	assert.True(t, strings.HasPrefix(warnings[len(warnings)-1], "noise filter kept"))
}

func TestAnalyze_EngineFailureIsNotStored(t *testing.T) {
	repo := &MockAnalysisRepository{}
	svc := newService(repo, nil)

	series := syntheticSeries(t)
	req := diffusion.DefaultRequest(diffusion.RateVsInverseSqrtTime)
	req.ThicknessCM = -1

	_, err := svc.Analyze(context.Background(), AnalysisInput{Series: series, Request: req})
	assert.ErrorIs(t, err, core.ErrInvalidThickness)
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestAnalyze_SaveFailure(t *testing.T) {
	repo := &MockAnalysisRepository{}
	repo.On("Save", mock.Anything, mock.Anything).Return(stderrors.New("connection refused"))
	svc := newService(repo, nil)

	_, err := svc.Analyze(context.Background(), AnalysisInput{
		Series:  syntheticSeries(t),
		Request: diffusion.DefaultRequest(diffusion.LogRateVsLogTime),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to store analysis")
}

func TestAnalyzeAll_RunsEveryMode(t *testing.T) {
	repo := memory.NewAnalysisRepository()
	svc := newService(repo, nil)

	outcomes, err := svc.AnalyzeAll(context.Background(), AnalysisInput{
		Series:  syntheticSeries(t),
		Request: diffusion.DefaultRequest(diffusion.RateVsInverseSqrtTime),
		Source:  "synthetic",
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	for i, mode := range diffusion.Modes() {
		require.NoError(t, outcomes[i].Err, mode.Name())
		assert.Equal(t, mode, outcomes[i].Mode)
		assert.Equal(t, mode, outcomes[i].Record.Result.Mode())
	}
	assert.Greater(t, outcomes[0].Record.Result.DiffusionCoefficient(), 0.0)
	assert.Zero(t, outcomes[1].Record.Result.DiffusionCoefficient())

	stored, err := repo.List(context.Background(), ports.AnalysisFilters{})
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}

func TestAnalyzeAll_FailuresAreReportedPerMode(t *testing.T) {
	svc := newService(memory.NewAnalysisRepository(), nil)
	short := diffusion.TimeSeries{
		TimeMinutes: []float64{0, 30, 60},
		Rate:        []float64{1, 2, 1},
		Cumulative:  []float64{0, 1, 2},
	}

	outcomes, err := svc.AnalyzeAll(context.Background(), AnalysisInput{
		Series:  short,
		Request: diffusion.DefaultRequest(diffusion.RateVsInverseSqrtTime),
	})
	require.NoError(t, err)
	for _, o := range outcomes {
		assert.Nil(t, o.Record)
		assert.ErrorIs(t, o.Err, core.ErrInsufficientData)
	}
	assert.Len(t, SummaryLines(outcomes), 3)
}

func TestAnalyzeAll_CancelledContext(t *testing.T) {
	svc := newService(memory.NewAnalysisRepository(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.AnalyzeAll(ctx, AnalysisInput{Series: syntheticSeries(t)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyzeFile(t *testing.T) {
	reader := &MockSeriesReader{}
	reader.On("ReadSeries", mock.Anything, "good.xlsx").Return(syntheticSeries(t), nil)
	reader.On("ReadSeries", mock.Anything, "bad.xlsx").Return(diffusion.TimeSeries{}, stderrors.New("unreadable"))
	svc := newService(memory.NewAnalysisRepository(), reader)
	req := diffusion.DefaultRequest(diffusion.CumulativeVsSqrtTime)

	outcomes, err := svc.AnalyzeFile(context.Background(), "good.xlsx", req, false, false)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	require.NoError(t, outcomes[0].Err)
	assert.Equal(t, "good.xlsx", outcomes[0].Record.Source)

	outcomes, err = svc.AnalyzeFile(context.Background(), "good.xlsx", req, true, true)
	require.NoError(t, err)
	assert.Len(t, outcomes, 3)

	_, err = svc.AnalyzeFile(context.Background(), "bad.xlsx", req, false, false)
	assert.EqualError(t, err, "unreadable")
	reader.AssertExpectations(t)
}

func TestInputHash(t *testing.T) {
	series := syntheticSeries(t)
	in := AnalysisInput{Series: series, Request: diffusion.DefaultRequest(diffusion.RateVsInverseSqrtTime)}

	assert.Equal(t, InputHash(in), InputHash(in))

	filtered := in
	filtered.FilterNoise = true
	assert.NotEqual(t, InputHash(in), InputHash(filtered))

	otherMode := in
	otherMode.Request.Mode = diffusion.LogRateVsLogTime
	assert.NotEqual(t, InputHash(in), InputHash(otherMode))

	manual := in
	manual.Request = manual.Request.WithTailStart(120)
	assert.NotEqual(t, InputHash(in), InputHash(manual))

	renamed := in
	renamed.Source = "elsewhere"
	assert.Equal(t, InputHash(in), InputHash(renamed), "source does not affect the outcome")
}

func TestGetAndReport(t *testing.T) {
	svc := newService(memory.NewAnalysisRepository(), nil)
	rec, err := svc.Analyze(context.Background(), AnalysisInput{
		Series:  syntheticSeries(t),
		Request: diffusion.DefaultRequest(diffusion.RateVsInverseSqrtTime),
		Source:  "sample-A",
	})
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)

	page, err := svc.Report(context.Background(), rec.ID)
	require.NoError(t, err)
	html := string(page)
	assert.Contains(t, html, "<h1")
	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, "Diffusion coefficient")
	assert.Contains(t, html, "sample-A")

	_, err = svc.Report(context.Background(), core.NewAnalysisID())
	assert.ErrorIs(t, err, core.ErrNotFound)

	list, err := svc.List(context.Background(), ports.AnalysisFilters{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRenderMarkdownReport(t *testing.T) {
	fields := diffusion.ResultFields{
		TailStartTime: 90,
		TailDetection: diffusion.TailDetection{Start: 90, Auto: true, FellBack: true},
		Mode:          diffusion.LogRateVsLogTime,
		Slope:         -0.5,
		RSquared:      0.97,
		NumPoints:     12,
		Grade:         diffusion.GradeGood,
		Warnings:      []string{"tail region spans less than one hour"},
	}
	md := RenderMarkdownReport(&ports.AnalysisRecord{
		ID:     core.AnalysisID("0190f7e4-0000-7000-8000-000000000000"),
		Source: "run.csv",
		Result: diffusion.NewResult(fields),
	})

	assert.Contains(t, md, "# Diffusion analysis 0190f7e4-0000-7000-8000-000000000000")
	assert.Contains(t, md, "fallback")
	assert.Contains(t, md, "| Fit quality | **Good** |")
	assert.Contains(t, md, "## Warnings")
	assert.NotContains(t, md, "## Diffusion coefficient")
}

func TestRenderHTMLReport_EscapesCallerText(t *testing.T) {
	fields := diffusion.ResultFields{
		TailStartTime:        60,
		TailDetection:        diffusion.TailDetection{Start: 60},
		Mode:                 diffusion.RateVsInverseSqrtTime,
		Slope:                12,
		RSquared:             0.99,
		NumPoints:            20,
		Grade:                diffusion.GradeExcellent,
		DiffusionCoefficient: 1e-7,
		ThicknessCM:          0.1,
		TemperatureC:         25,
		Literature: &diffusion.LiteratureComparison{
			Material: "<img src=x onerror=alert(1)>",
		},
	}
	rec := &ports.AnalysisRecord{
		ID:     core.AnalysisID("0190f7e4-0000-7000-8000-000000000001"),
		Source: "a` <script>alert(1)</script> `b",
		Result: diffusion.NewResult(fields),
	}

	md := RenderMarkdownReport(rec)
	assert.Contains(t, md, `\<script\>`)
	assert.NotContains(t, md, "`a`")

	page := string(RenderHTMLReport(rec))
	assert.NotContains(t, page, "<script")
	assert.NotContains(t, page, "<img")
	assert.Contains(t, page, "&lt;script&gt;alert")
	assert.Contains(t, page, "No literature range is tabulated for")
}
