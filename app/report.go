package app

import (
	"fmt"
	"html"
	"strings"

	"tdadiffusion/domain/diffusion"
	"tdadiffusion/ports"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// markdownEscaper backslash-escapes the characters that start inline
// Markdown or raw HTML, so caller-supplied text renders as literal text.
var markdownEscaper = func() *strings.Replacer {
	var pairs []string
	for _, c := range "\\`*_{}[]()#+!|<>&~" {
		pairs = append(pairs, string(c), "\\"+string(c))
	}
	return strings.NewReplacer(pairs...)
}()

func escapeMarkdown(s string) string {
	s = strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
	return markdownEscaper.Replace(s)
}

// RenderMarkdownReport summarises a stored analysis as Markdown
func RenderMarkdownReport(rec *ports.AnalysisRecord) string {
	res := rec.Result
	var b strings.Builder

	fmt.Fprintf(&b, "# Diffusion analysis %s\n\n", rec.ID)
	fmt.Fprintf(&b, "- Source: %s\n", escapeMarkdown(rec.Source))
	fmt.Fprintf(&b, "- Created: %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "- Input hash: `%s`\n", rec.InputHash)
	xLabel, yLabel := res.Mode().AxisLabels()
	fmt.Fprintf(&b, "- Mode: %s (%s vs %s)\n\n", res.Mode().Name(), yLabel, xLabel)

	b.WriteString("## Tail region\n\n")
	det := res.TailDetection()
	switch {
	case !det.Auto:
		fmt.Fprintf(&b, "Tail starts at **%.2f min** (set manually).\n\n", res.TailStartTime())
	case det.FellBack:
		fmt.Fprintf(&b, "Tail starts at **%.2f min**. No threshold crossing was found, so a fallback "+
			"was used; set the tail start manually for a reliable fit.\n\n", res.TailStartTime())
	default:
		fmt.Fprintf(&b, "Tail starts at **%.2f min**, the first sample below %.3g.\n\n",
			res.TailStartTime(), det.Threshold)
	}

	b.WriteString("## Linear fit\n\n")
	b.WriteString("| Quantity | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Slope | %.6g |\n", res.Slope())
	fmt.Fprintf(&b, "| Intercept | %.6g |\n", res.Intercept())
	fmt.Fprintf(&b, "| R² | %.4f |\n", res.RSquared())
	fmt.Fprintf(&b, "| p-value | %.3g |\n", res.PValue())
	fmt.Fprintf(&b, "| Std. error | %.3g |\n", res.StdError())
	fmt.Fprintf(&b, "| Points | %d |\n", res.NumPoints())
	fmt.Fprintf(&b, "| Fit quality | **%s** |\n\n", res.Grade())

	if res.DiffusionCoefficient() > 0 {
		b.WriteString("## Diffusion coefficient\n\n")
		fmt.Fprintf(&b, "D = **%.3e cm²/s** at %.1f °C for a %.3g cm sample", res.DiffusionCoefficient(),
			res.TemperatureC(), res.ThicknessCM())
		fmt.Fprintf(&b, " (%.3e cm²/s at 25 °C).\n\n", res.DiffusionCoefficient25C())

		if lit, ok := res.Literature(); ok {
			if lit.Known {
				fmt.Fprintf(&b, "Literature range for %s: %.1e to %.1e cm²/s (typical %.1e). "+
					"Ratio to typical: %.2f, agreement **%s**.\n\n",
					escapeMarkdown(lit.Material), lit.RangeMin, lit.RangeMax, lit.Typical, lit.Ratio, lit.Agreement)
			} else {
				fmt.Fprintf(&b, "No literature range is tabulated for %s.\n\n", escapeMarkdown(lit.Material))
			}
		}
	}

	if w := res.Warnings(); len(w) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, msg := range w {
			fmt.Fprintf(&b, "- %s\n", msg)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// RenderHTMLReport renders the Markdown report as a standalone HTML page
func RenderHTMLReport(rec *ports.AnalysisRecord) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{Flags: mdhtml.CommonFlags | mdhtml.SkipHTML})
	body := markdown.ToHTML([]byte(RenderMarkdownReport(rec)), p, renderer)

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\">")
	fmt.Fprintf(&b, "<title>Diffusion analysis %s</title>", html.EscapeString(rec.ID.String()))
	b.WriteString("</head><body>\n")
	b.Write(body)
	b.WriteString("</body></html>\n")
	return []byte(b.String())
}

// summaryLine is the one-line form used by the CLI and logs
func summaryLine(mode diffusion.Mode, res diffusion.Result) string {
	line := fmt.Sprintf("%-22s slope=%-12.6g R²=%.4f n=%-4d %s", mode.Name(), res.Slope(), res.RSquared(), res.NumPoints(), res.Grade())
	if res.DiffusionCoefficient() > 0 {
		line += fmt.Sprintf("  D=%.3e cm²/s", res.DiffusionCoefficient())
	}
	return line
}

// SummaryLines formats outcomes, one line per mode
func SummaryLines(outcomes []ModeOutcome) []string {
	lines := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Err != nil {
			lines = append(lines, fmt.Sprintf("%-22s failed: %v", o.Mode.Name(), o.Err))
			continue
		}
		lines = append(lines, summaryLine(o.Mode, o.Record.Result))
	}
	return lines
}
