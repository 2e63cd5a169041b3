package api

import (
	"time"

	"tdadiffusion/app"
	"tdadiffusion/domain/diffusion"
	"tdadiffusion/ports"
)

// ModeAll in an AnalyzeRequest runs every analysis mode
const ModeAll = "all"

// AnalyzeRequest is the body of POST /api/v1/analyses. Omitted parameters
// take the server defaults.
type AnalyzeRequest struct {
	Source       string               `json:"source" validate:"max=256"`
	Series       diffusion.TimeSeries `json:"series"`
	Mode         string               `json:"mode" validate:"omitempty,oneof=1_sqrt_t sqrt_t log_log all"`
	TailStart    *float64             `json:"tail_start,omitempty" validate:"omitempty,gte=0"`
	ThicknessCM  float64              `json:"thickness_cm" validate:"gte=0"`
	TemperatureC *float64             `json:"temperature_c,omitempty" validate:"omitempty,gt=-273.15"`
	Material     string               `json:"material" validate:"max=64"`
	// SkipDiffusionCoeff disables the D estimate for 1_sqrt_t.
	SkipDiffusionCoeff bool `json:"skip_diffusion_coeff"`
	FilterNoise        bool `json:"filter_noise"`
}

// Defaults fill in parameters an AnalyzeRequest leaves out
type Defaults struct {
	Mode        diffusion.Mode
	ThicknessCM float64
	Material    string
}

// DefaultDefaults returns the documented request defaults
func DefaultDefaults() Defaults {
	return Defaults{
		Mode:        diffusion.RateVsInverseSqrtTime,
		ThicknessCM: diffusion.DefaultThicknessCM,
		Material:    diffusion.DefaultMaterial,
	}
}

// toInput converts the body into a service input. all is set for ModeAll.
func (r AnalyzeRequest) toInput(d Defaults) (in app.AnalysisInput, all bool, err error) {
	mode := d.Mode
	switch r.Mode {
	case "":
	case ModeAll:
		all = true
	default:
		if mode, err = diffusion.ParseMode(r.Mode); err != nil {
			return app.AnalysisInput{}, false, err
		}
	}

	req := diffusion.DefaultRequest(mode)
	req.ThicknessCM = d.ThicknessCM
	req.Material = d.Material
	if r.TailStart != nil {
		req = req.WithTailStart(*r.TailStart)
	}
	if r.ThicknessCM > 0 {
		req.ThicknessCM = r.ThicknessCM
	}
	if r.TemperatureC != nil {
		req.TemperatureC = *r.TemperatureC
	}
	if r.Material != "" {
		req.Material = r.Material
	}
	req.ComputeD = !r.SkipDiffusionCoeff

	return app.AnalysisInput{
		Series:      r.Series,
		Request:     req,
		Source:      r.Source,
		FilterNoise: r.FilterNoise,
	}, all, nil
}

// AnalysisResponse is a stored analysis as returned by the API
type AnalysisResponse struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"created_at"`
	Source    string            `json:"source,omitempty"`
	InputHash string            `json:"input_hash"`
	Request   diffusion.Request `json:"request"`
	Result    diffusion.Result  `json:"result"`
	ReportURL string            `json:"report_url"`
}

func newAnalysisResponse(rec *ports.AnalysisRecord) *AnalysisResponse {
	return &AnalysisResponse{
		ID:        rec.ID.String(),
		CreatedAt: rec.CreatedAt,
		Source:    rec.Source,
		InputHash: rec.InputHash.String(),
		Request:   rec.Request,
		Result:    rec.Result,
		ReportURL: "/api/v1/analyses/" + rec.ID.String() + "/report",
	}
}

// ModeResponse is one entry of a multi-mode analysis
type ModeResponse struct {
	Mode     diffusion.Mode    `json:"mode"`
	Analysis *AnalysisResponse `json:"analysis,omitempty"`
	Error    *ErrorResponse    `json:"error,omitempty"`
}

// MultiModeResponse answers a request with mode "all"
type MultiModeResponse struct {
	Analyses []ModeResponse `json:"analyses"`
}

// ListResponse answers GET /api/v1/analyses
type ListResponse struct {
	Analyses []*AnalysisResponse `json:"analyses"`
	Count    int                 `json:"count"`
}

// LiteratureResponse answers GET /api/v1/literature/{material}
type LiteratureResponse struct {
	Reference diffusion.LiteratureReference `json:"reference"`
	// Range is the published room-temperature range, when one is tabulated.
	Range *diffusion.LiteratureComparison `json:"range,omitempty"`
}

// ErrorResponse is the body of every non-2xx answer
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
