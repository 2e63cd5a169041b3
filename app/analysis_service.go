package app

import (
	"context"
	"fmt"
	"time"

	"tdadiffusion/domain/core"
	"tdadiffusion/domain/diffusion"
	"tdadiffusion/internal"
	engine "tdadiffusion/internal/diffusion"
	"tdadiffusion/ports"

	"golang.org/x/sync/errgroup"
)

// AnalysisInput is one series plus how to analyse it
type AnalysisInput struct {
	Series  diffusion.TimeSeries
	Request diffusion.Request
	// Source names where the series came from, e.g. a file name.
	Source string
	// FilterNoise runs the noise filter before the analysis.
	FilterNoise bool
}

// ModeOutcome is the result of one mode in AnalyzeAll. Exactly one of
// Record and Err is set.
type ModeOutcome struct {
	Mode   diffusion.Mode
	Record *ports.AnalysisRecord
	Err    error
}

// AnalysisService reads series, runs the diffusion engine and stores results
type AnalysisService struct {
	engine *engine.Engine
	repo   ports.AnalysisRepository
	reader ports.SeriesReader
	filter engine.FilterOptions
	logger *internal.Logger
	now    func() time.Time
}

func NewAnalysisService(eng *engine.Engine, repo ports.AnalysisRepository, reader ports.SeriesReader, logger *internal.Logger) *AnalysisService {
	return &AnalysisService{
		engine: eng,
		repo:   repo,
		reader: reader,
		filter: engine.DefaultFilterOptions(),
		logger: logger.With("analysis"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithFilterOptions replaces the noise filter settings
func (s *AnalysisService) WithFilterOptions(opts engine.FilterOptions) *AnalysisService {
	s.filter = opts
	return s
}

// InputHash fingerprints everything that determines an analysis outcome
func InputHash(in AnalysisInput) core.InputHash {
	b := core.NewHashBuilder()
	in.Series.Hash(b)
	in.Request.Hash(b)
	if in.FilterNoise {
		b.String("filtered")
	}
	return b.Sum()
}

// Analyze runs one analysis and stores it
func (s *AnalysisService) Analyze(ctx context.Context, in AnalysisInput) (*ports.AnalysisRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	series := in.Series
	var filterNote string
	if in.FilterNoise {
		filtered, report, err := engine.FilterNoise(series, s.filter)
		if err != nil {
			return nil, fmt.Errorf("noise filter: %w", err)
		}
		series = filtered
		filterNote = fmt.Sprintf("noise filter kept %d of %d samples (detection limit %.3g)",
			report.Kept, report.Original, report.DetectionLimit)
		s.logger.Debug("%s: %s", in.Source, filterNote)
	}

	result, err := s.engine.Analyze(series, in.Request)
	if err != nil {
		s.logger.Warn("%s: %s analysis failed: %v", in.Source, in.Request.Mode, err)
		return nil, err
	}
	if filterNote != "" {
		fields := result.Fields()
		fields.Warnings = append(fields.Warnings, filterNote)
		result = diffusion.NewResult(fields)
	}

	rec := &ports.AnalysisRecord{
		ID:        core.NewAnalysisID(),
		CreatedAt: s.now(),
		Source:    in.Source,
		InputHash: InputHash(in),
		Request:   in.Request,
		Result:    result,
	}
	if err := s.repo.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to store analysis: %w", err)
	}
	return rec, nil
}

// AnalyzeAll runs every mode over the same series concurrently. A failing
// mode does not stop the others; only a cancelled context is returned as an
// error. Outcomes follow diffusion.Modes order.
func (s *AnalysisService) AnalyzeAll(ctx context.Context, in AnalysisInput) ([]ModeOutcome, error) {
	modes := diffusion.Modes()
	outcomes := make([]ModeOutcome, len(modes))

	g, gCtx := errgroup.WithContext(ctx)
	for i, mode := range modes {
		i, mode := i, mode
		req := in.Request
		req.Mode = mode
		modeIn := in
		modeIn.Series = in.Series.Clone()
		modeIn.Request = req

		g.Go(func() error {
			rec, err := s.Analyze(gCtx, modeIn)
			outcomes[i] = ModeOutcome{Mode: mode, Record: rec, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// AnalyzeFile reads path with the configured SeriesReader and analyses it,
// in every mode when all is set
func (s *AnalysisService) AnalyzeFile(ctx context.Context, path string, req diffusion.Request, filterNoise, all bool) ([]ModeOutcome, error) {
	series, err := s.reader.ReadSeries(ctx, path)
	if err != nil {
		return nil, err
	}
	in := AnalysisInput{Series: series, Request: req, Source: path, FilterNoise: filterNoise}
	if all {
		return s.AnalyzeAll(ctx, in)
	}
	rec, err := s.Analyze(ctx, in)
	return []ModeOutcome{{Mode: req.Mode, Record: rec, Err: err}}, nil
}

// Get returns a stored analysis
func (s *AnalysisService) Get(ctx context.Context, id core.AnalysisID) (*ports.AnalysisRecord, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns stored analyses, newest first
func (s *AnalysisService) List(ctx context.Context, filters ports.AnalysisFilters) ([]*ports.AnalysisRecord, error) {
	return s.repo.List(ctx, filters)
}

// Report renders a stored analysis as an HTML page
func (s *AnalysisService) Report(ctx context.Context, id core.AnalysisID) ([]byte, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return RenderHTMLReport(rec), nil
}
