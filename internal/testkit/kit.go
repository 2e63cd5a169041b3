package testkit

import (
	"math"

	"tdadiffusion/adapters/memory"
	"tdadiffusion/app"
	"tdadiffusion/domain/diffusion"
	"tdadiffusion/internal"
	engine "tdadiffusion/internal/diffusion"
	"tdadiffusion/internal/synthetic"
	"tdadiffusion/ports"
)

// TestKit wires an in-memory analysis stack for tests and demos
type TestKit struct {
	Engine  *engine.Engine
	Repo    ports.AnalysisRepository
	Service *app.AnalysisService
}

// NewTestKit creates a kit with default engine options, an in-memory
// repository and no series reader
func NewTestKit() *TestKit {
	return NewTestKitWithReader(nil)
}

// NewTestKitWithReader creates a kit whose service reads files with reader
func NewTestKitWithReader(reader ports.SeriesReader) *TestKit {
	eng := engine.NewEngine(engine.DefaultOptions(), internal.Discard())
	repo := memory.NewAnalysisRepository()
	return &TestKit{
		Engine:  eng,
		Repo:    repo,
		Service: app.NewAnalysisService(eng, repo, reader, internal.Discard()),
	}
}

// SyntheticSeries returns the default noisy synthetic record: a release peak
// at 20 min over a 1/√t tail, 49 samples every 15 min
func SyntheticSeries() diffusion.TimeSeries {
	ds, err := synthetic.Generate(synthetic.DefaultConfig())
	if err != nil {
		panic(err)
	}
	return ds.Series
}

// InverseSqrtSeries returns a noise-free record every step minutes up to
// last whose rate is slope/√(60t), with a unit rate at t=0 so the peak sits
// at the origin. The 1_sqrt_t fit of its tail recovers slope exactly.
func InverseSqrtSeries(slope, step, last float64) diffusion.TimeSeries {
	n := int(last/step+1e-9) + 1
	s := diffusion.TimeSeries{
		TimeMinutes: make([]float64, n),
		Rate:        make([]float64, n),
		Cumulative:  make([]float64, n),
	}
	for i := 0; i < n; i++ {
		t := float64(i) * step
		s.TimeMinutes[i] = t
		s.Rate[i] = 1
		if i > 0 {
			s.Rate[i] = slope / math.Sqrt(60*t)
			s.Cumulative[i] = s.Cumulative[i-1] + (s.Rate[i-1]+s.Rate[i])/2*step
		}
	}
	return s
}

// ShortSeries returns a record too short for any analysis
func ShortSeries() diffusion.TimeSeries {
	return diffusion.TimeSeries{
		TimeMinutes: []float64{0, 30, 60},
		Rate:        []float64{1, 2, 1},
		Cumulative:  []float64{0, 1, 2},
	}
}
