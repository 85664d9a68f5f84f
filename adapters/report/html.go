package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"ringstat/domain/sweep"
	"ringstat/internal"
	"ringstat/internal/errors"
	"ringstat/ports"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// HTMLReport renders a grid summary as markdown and converts it to a
// standalone HTML page.
type HTMLReport struct {
	path   string
	logger *internal.Logger
}

var _ ports.ReportSink = (*HTMLReport)(nil)

// NewHTMLReport writes to path on every WriteGrid call
func NewHTMLReport(path string) *HTMLReport {
	return &HTMLReport{path: path, logger: internal.DefaultLogger.For("Report")}
}

// WriteGrid renders and saves the page
func (r *HTMLReport) WriteGrid(grid *sweep.Grid) error {
	page := Render(grid)
	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "failed to create report directory")
		}
	}
	if err := os.WriteFile(r.path, page, 0o644); err != nil {
		return errors.Wrap(err, "failed to write report")
	}
	r.logger.Info("Wrote report for sweep %s to %s", grid.ID, r.path)
	return nil
}

// Render converts the markdown summary of grid to HTML
func Render(grid *sweep.Grid) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	renderer := html.NewRenderer(html.RendererOptions{
		Title: "Sweep " + grid.ID,
		Flags: html.CommonFlags | html.CompletePage,
	})
	return markdown.ToHTML([]byte(Markdown(grid)), p, renderer)
}

// Markdown summarizes the run parameters and lists every cell
func Markdown(grid *sweep.Grid) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Sweep %s\n\n", grid.ID)
	fmt.Fprintf(&b, "- **Kind:** %s\n", grid.Kind)
	if len(grid.Sources) > 0 {
		fmt.Fprintf(&b, "- **Sources:** %s\n", strings.Join(grid.Sources, ", "))
	}
	fmt.Fprintf(&b, "- **Target features:** %d\n", grid.Target)
	fmt.Fprintf(&b, "- **Trials per cell:** %d\n", grid.Trials)
	fmt.Fprintf(&b, "- **Landmarks:** %d\n", grid.Landmarks)
	fmt.Fprintf(&b, "- **Seed:** %d\n", grid.Seed)
	if grid.Duration > 0 {
		fmt.Fprintf(&b, "- **Duration:** %s\n", grid.Duration.Round(time.Millisecond))
	}
	b.WriteString("\n## Success rates\n\n")

	header := make([]string, 0, len(grid.Axes)+3)
	for _, a := range grid.Axes {
		header = append(header, a.Name)
	}
	header = append(header, "rate", "95% CI", "successes")
	b.WriteString("| " + strings.Join(header, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(header)) + "\n")

	for _, c := range grid.Cells {
		row := make([]string, 0, len(header))
		for _, p := range c.Params {
			row = append(row, strconv.Itoa(p))
		}
		row = append(row,
			strconv.FormatFloat(c.Rate, 'f', 3, 64),
			fmt.Sprintf("%.3f–%.3f", c.CILow, c.CIHigh),
			fmt.Sprintf("%d/%d", c.Successes, c.Trials),
		)
		b.WriteString("| " + strings.Join(row, " | ") + " |\n")
	}
	return b.String()
}
