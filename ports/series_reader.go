package ports

import (
	"context"

	"tdadiffusion/domain/diffusion"
)

// SeriesReader loads a desorption record from a tabular source
type SeriesReader interface {
	ReadSeries(ctx context.Context, path string) (diffusion.TimeSeries, error)
}
