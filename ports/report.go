package ports

import "ringstat/domain/sweep"

// ReportSink renders a finished grid, typically as a heatmap with axis tick labels
type ReportSink interface {
	WriteGrid(grid *sweep.Grid) error
}
