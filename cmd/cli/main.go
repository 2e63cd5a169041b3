package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"tdadiffusion/adapters/excel"
	"tdadiffusion/adapters/memory"
	"tdadiffusion/adapters/postgres"
	"tdadiffusion/app"
	"tdadiffusion/domain/diffusion"
	"tdadiffusion/internal"
	"tdadiffusion/internal/calibration"
	"tdadiffusion/internal/config"
	engine "tdadiffusion/internal/diffusion"
	"tdadiffusion/internal/synthetic"
	"tdadiffusion/ports"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "tda",
		Short:        "Diffusion-regime analysis of thermal desorption tails",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newAnalyzeCmd(),
		newLiteratureCmd(),
		newCalibrationCmd(),
		newSynthCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type analyzeFlags struct {
	mode        string
	tailStart   float64
	thickness   float64
	noD         bool
	temperature float64
	material    string
	filterNoise bool
	jsonOut     bool
	report      string
	sheet       string
	store       bool
}

func newAnalyzeCmd() *cobra.Command {
	var f analyzeFlags

	cmd := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Fit the diffusion regime of a desorption record",
		Long: `Analyze the tail of a thermal desorption record read from .xlsx or .csv.

The file needs a time column in minutes and a rate column; a cumulative column
is integrated from the rate when missing. Without --tail-start the tail is
detected automatically.

Example: tda analyze run-17.xlsx --mode all --thickness 0.2 --material iron`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), cmd, args[0], f)
		},
	}

	cmd.Flags().StringVar(&f.mode, "mode", string(diffusion.RateVsInverseSqrtTime), "Analysis mode: 1_sqrt_t|sqrt_t|log_log|all")
	cmd.Flags().Float64Var(&f.tailStart, "tail-start", 0, "Manual tail start in minutes (default: auto-detect)")
	cmd.Flags().Float64Var(&f.thickness, "thickness", 0, "Sample thickness in cm (default: TDA_DEFAULT_THICKNESS_CM)")
	cmd.Flags().BoolVar(&f.noD, "no-diffusion-coeff", false, "Skip the diffusion coefficient estimate")
	cmd.Flags().Float64Var(&f.temperature, "temperature", diffusion.DefaultTemperatureC, "Measurement temperature in °C")
	cmd.Flags().StringVar(&f.material, "material", "", "Material for literature comparison (default: TDA_DEFAULT_MATERIAL)")
	cmd.Flags().BoolVar(&f.filterNoise, "filter-noise", false, "Drop detector-floor and dropout samples before fitting")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "Print results as JSON")
	cmd.Flags().StringVar(&f.report, "report", "", "Write an HTML report of the first successful analysis to this path")
	cmd.Flags().StringVar(&f.sheet, "sheet", "", "Worksheet to read from .xlsx files (default: active sheet)")
	cmd.Flags().BoolVar(&f.store, "store", false, "Store results in the DATABASE_URL database")

	return cmd
}

func runAnalyze(ctx context.Context, cmd *cobra.Command, path string, f analyzeFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel))

	all := strings.EqualFold(f.mode, "all")
	mode := diffusion.RateVsInverseSqrtTime
	if !all {
		if mode, err = diffusion.ParseMode(f.mode); err != nil {
			return err
		}
	}

	req := cfg.Analysis.Request(mode)
	if cmd.Flags().Changed("tail-start") {
		req = req.WithTailStart(f.tailStart)
	}
	if cmd.Flags().Changed("thickness") {
		req.ThicknessCM = f.thickness
	}
	if f.material != "" {
		req.Material = f.material
	}
	req.TemperatureC = f.temperature
	req.ComputeD = !f.noD

	repo, closeRepo, err := openRepository(cfg, f.store, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	readerCfg := excel.DefaultConfig()
	readerCfg.Sheet = f.sheet
	reader := excel.NewDataReader(readerCfg, logger)

	svc := app.NewAnalysisService(engine.NewEngine(cfg.Analysis.EngineOptions(), logger), repo, reader, logger)
	outcomes, err := svc.AnalyzeFile(ctx, path, req, f.filterNoise, all)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if f.jsonOut {
		if err := printJSON(out, outcomes); err != nil {
			return err
		}
	} else {
		printSummary(out, path, outcomes)
	}

	if f.report != "" {
		if err := writeReport(f.report, outcomes); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s\n", f.report)
	}

	if !all && outcomes[0].Err != nil {
		return outcomes[0].Err
	}
	return nil
}

// openRepository returns the postgres repository when store is set, otherwise
// an in-memory one that lives for this command only
func openRepository(cfg *config.Config, store bool, logger *internal.Logger) (ports.AnalysisRepository, func(), error) {
	if !store {
		return memory.NewAnalysisRepository(), func() {}, nil
	}
	if !cfg.Database.Enabled() {
		return nil, nil, fmt.Errorf("--store requires DATABASE_URL")
	}
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Debug("storing analyses in PostgreSQL")
	return postgres.NewAnalysisRepository(db), func() { db.Close() }, nil
}

type modeJSON struct {
	Mode      diffusion.Mode    `json:"mode"`
	ID        string            `json:"id,omitempty"`
	InputHash string            `json:"input_hash,omitempty"`
	Result    *diffusion.Result `json:"result,omitempty"`
	Error     string            `json:"error,omitempty"`
}

func printJSON(w io.Writer, outcomes []app.ModeOutcome) error {
	entries := make([]modeJSON, 0, len(outcomes))
	for _, o := range outcomes {
		e := modeJSON{Mode: o.Mode}
		if o.Err != nil {
			e.Error = o.Err.Error()
		} else {
			res := o.Record.Result
			e.ID = o.Record.ID.String()
			e.InputHash = o.Record.InputHash.String()
			e.Result = &res
		}
		entries = append(entries, e)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

func printSummary(w io.Writer, path string, outcomes []app.ModeOutcome) {
	fmt.Fprintf(w, "%s\n", path)
	for _, line := range app.SummaryLines(outcomes) {
		fmt.Fprintf(w, "  %s\n", line)
	}
	rec := firstSuccess(outcomes)
	if rec == nil {
		return
	}
	res := rec.Result
	det := res.TailDetection()
	switch {
	case !det.Auto:
		fmt.Fprintf(w, "  tail start %.2f min (manual)\n", det.Start)
	case det.FellBack:
		fmt.Fprintf(w, "  tail start %.2f min (fallback, set --tail-start for a reliable fit)\n", det.Start)
	default:
		fmt.Fprintf(w, "  tail start %.2f min\n", det.Start)
	}
	if lit, ok := res.Literature(); ok {
		fmt.Fprintf(w, "  literature (%s): %s\n", lit.Material, lit.Agreement)
	}
	for _, warning := range res.Warnings() {
		fmt.Fprintf(w, "  warning: %s\n", warning)
	}
}

func firstSuccess(outcomes []app.ModeOutcome) *ports.AnalysisRecord {
	for _, o := range outcomes {
		if o.Err == nil {
			return o.Record
		}
	}
	return nil
}

func writeReport(path string, outcomes []app.ModeOutcome) error {
	rec := firstSuccess(outcomes)
	if rec == nil {
		return fmt.Errorf("no successful analysis to report")
	}
	return os.WriteFile(path, app.RenderHTMLReport(rec), 0o644)
}

func newLiteratureCmd() *cobra.Command {
	var temperature float64

	cmd := &cobra.Command{
		Use:   "literature [material]",
		Short: "Show tabulated hydrogen diffusion coefficients",
		Long: `Show the literature diffusion coefficient of a material corrected to a
temperature. Without a material the tabulated materials are listed.

Example: tda literature iron --temperature 80`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				for _, m := range engine.Materials() {
					fmt.Fprintln(out, m)
				}
				return nil
			}

			ref := engine.LiteratureReference(args[0], temperature)
			if ref.FellBack {
				fmt.Fprintf(out, "Unknown material %q, using %s\n", args[0], ref.Material)
			}
			fmt.Fprintf(out, "Material:          %s\n", ref.Material)
			fmt.Fprintf(out, "D at 25 °C:        %.3e cm²/s\n", ref.BaseD25C)
			fmt.Fprintf(out, "D at %.1f °C:      %.3e cm²/s\n", ref.TemperatureC, ref.DLiterature)
			fmt.Fprintf(out, "Activation energy: %.1f kJ/mol\n", ref.ActivationEnergy)
			if cmp := engine.CompareWithLiterature(ref.BaseD25C, ref.Material); cmp.Known {
				fmt.Fprintf(out, "Room-temperature range: %.1e to %.1e cm²/s (%s)\n", cmp.RangeMin, cmp.RangeMax, cmp.Source)
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&temperature, "temperature", diffusion.DefaultTemperatureC, "Temperature in °C")
	return cmd
}

func newCalibrationCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "calibration [peak-areas...]",
		Short: "Assess repeat calibration injections",
		Long: `Compute precision statistics, a 0-100 quality score and quality flags for
the peak areas of repeated calibration injections.

Example: tda calibration 10500 10230 10410 10380 10290`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			areas := make([]float64, 0, len(args))
			for _, a := range args {
				v, err := strconv.ParseFloat(a, 64)
				if err != nil {
					return fmt.Errorf("invalid peak area %q: %w", a, err)
				}
				areas = append(areas, v)
			}

			s, err := calibration.Compute(areas)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					calibration.Stats
					QualityScore float64            `json:"quality_score"`
					Flags        []calibration.Flag `json:"flags"`
					Valid        bool               `json:"valid"`
				}{s, s.QualityScore(), s.Flags(), s.Valid()})
			}

			fmt.Fprintf(out, "Runs:          %d\n", s.NumRuns)
			fmt.Fprintf(out, "Mean:          %.4g\n", s.Mean)
			fmt.Fprintf(out, "Std. dev.:     %.4g\n", s.StdDev)
			fmt.Fprintf(out, "CV:            %.2f%%\n", s.CVPercent)
			fmt.Fprintf(out, "Median:        %.4g (min %.4g, max %.4g)\n", s.Median, s.Min, s.Max)
			fmt.Fprintf(out, "Quality score: %.0f/100\n", s.QualityScore())
			for _, flag := range s.Flags() {
				fmt.Fprintf(out, "[%s] %s\n", strings.ToUpper(string(flag.Severity)), flag.Message)
			}
			if !s.Valid() {
				return fmt.Errorf("calibration is not valid")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print statistics as JSON")
	return cmd
}

func newSynthCmd() *cobra.Command {
	var out, format string
	cfg := synthetic.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Generate a synthetic desorption record",
		Long: `Generate a deterministic synthetic TDS record: a Gaussian release peak over a
diffusion tail proportional to 1/sqrt(t), with multiplicative noise.

Example: tda synth --out synthetic.xlsx --points 97 --interval 7.5 --seed 7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmtName := strings.ToLower(strings.TrimSpace(format))
			if fmtName == "" {
				switch strings.ToLower(filepath.Ext(out)) {
				case ".csv":
					fmtName = "csv"
				default:
					fmtName = "xlsx"
				}
			}

			ds, err := synthetic.Generate(cfg)
			if err != nil {
				return fmt.Errorf("error generating dataset: %w", err)
			}

			switch fmtName {
			case "csv":
				err = synthetic.WriteCSV(out, ds)
			case "xlsx":
				err = synthetic.WriteXLSX(out, ds)
			default:
				return fmt.Errorf("unknown format %q (use xlsx or csv)", format)
			}
			if err != nil {
				return fmt.Errorf("error writing %s: %w", fmtName, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d samples to %s\n", len(ds.Rows), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "synthetic_tds.xlsx", "Output file path")
	cmd.Flags().StringVar(&format, "format", "", "Output format: xlsx or csv (default inferred from --out)")
	cmd.Flags().IntVar(&cfg.Points, "points", cfg.Points, "Number of samples")
	cmd.Flags().Float64Var(&cfg.IntervalMinutes, "interval", cfg.IntervalMinutes, "Sampling interval in minutes")
	cmd.Flags().Int64Var(&cfg.Seed, "seed", cfg.Seed, "RNG seed (deterministic)")
	cmd.Flags().Float64Var(&cfg.DiffusionSlope, "slope", cfg.DiffusionSlope, "Tail amplitude k in rate = k/sqrt(t)")
	cmd.Flags().Float64Var(&cfg.NoisePercent, "noise", cfg.NoisePercent, "Multiplicative noise in percent")
	cmd.Flags().Float64Var(&cfg.DetectorFloor, "detector-floor", cfg.DetectorFloor, "Rates below this are reported at the floor")

	return cmd
}
