package excel

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"ringstat/domain/sweep"
	"ringstat/internal"
	"ringstat/internal/errors"
	"ringstat/ports"

	"github.com/xuri/excelize/v2"
)

const (
	SheetSuccess = "success"
	SheetCells   = "cells"
)

// HeatmapReport renders a finished grid into an XLSX workbook. The "success"
// sheet holds the rate matrix with the first axis on rows, flipped so its
// first value sits at the bottom, and a three-color scale over [0,1]. The
// "cells" sheet lists every cell with its Wilson interval.
type HeatmapReport struct {
	path   string
	logger *internal.Logger
}

var _ ports.ReportSink = (*HeatmapReport)(nil)

// NewHeatmapReport writes to path on every WriteGrid call
func NewHeatmapReport(path string) *HeatmapReport {
	return &HeatmapReport{path: path, logger: internal.DefaultLogger.For("Heatmap")}
}

// WriteGrid renders the grid and saves the workbook
func (h *HeatmapReport) WriteGrid(grid *sweep.Grid) error {
	if len(grid.Axes) == 0 || len(grid.Axes) > 2 {
		return errors.InvalidInput(fmt.Sprintf("heatmap needs a 1D or 2D grid, got %d axes", len(grid.Axes)))
	}
	if len(grid.Cells) != grid.Size() {
		return errors.InvalidInput(fmt.Sprintf("grid has %d of %d cells", len(grid.Cells), grid.Size()))
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSuccess); err != nil {
		return err
	}
	if err := writeSuccessSheet(f, grid); err != nil {
		return errors.Wrap(err, "failed to write success sheet")
	}
	if _, err := f.NewSheet(SheetCells); err != nil {
		return err
	}
	if err := writeCellsSheet(f, grid); err != nil {
		return errors.Wrap(err, "failed to write cells sheet")
	}

	if dir := filepath.Dir(h.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := f.SaveAs(h.path); err != nil {
		return errors.Wrap(err, "failed to save heatmap")
	}
	h.logger.Info("Wrote heatmap for sweep %s to %s", grid.ID, h.path)
	return nil
}

// writeSuccessSheet lays out the rate matrix. A1 names the axes, row 1 holds
// the column tick labels and column A the row tick labels.
func writeSuccessSheet(f *excelize.File, grid *sweep.Grid) error {
	rates := grid.Rates()
	colAxis := grid.Axes[len(grid.Axes)-1]
	corner := colAxis.Name
	rowLabels := []string{"rate"}
	if len(grid.Axes) == 2 {
		corner = grid.Axes[0].Name + " \\ " + colAxis.Name
		rowLabels = make([]string, len(grid.Axes[0].Values))
		for i, v := range grid.Axes[0].Values {
			rowLabels[i] = strconv.Itoa(v)
		}
	}

	if err := f.SetCellValue(SheetSuccess, "A1", corner); err != nil {
		return err
	}
	for j, v := range colAxis.Values {
		cell, _ := excelize.CoordinatesToCellName(j+2, 1)
		if err := f.SetCellValue(SheetSuccess, cell, v); err != nil {
			return err
		}
	}

	n := len(rates)
	for i := range rates {
		// flip so the first row value lands at the bottom
		sheetRow := n - i + 1
		cell, _ := excelize.CoordinatesToCellName(1, sheetRow)
		if err := f.SetCellValue(SheetSuccess, cell, rowLabels[i]); err != nil {
			return err
		}
		for j, rate := range rates[i] {
			cell, _ := excelize.CoordinatesToCellName(j+2, sheetRow)
			if err := f.SetCellFloat(SheetSuccess, cell, rate, 3, 64); err != nil {
				return err
			}
		}
	}

	first, _ := excelize.CoordinatesToCellName(2, 2)
	last, _ := excelize.CoordinatesToCellName(len(colAxis.Values)+1, n+1)
	return f.SetConditionalFormat(SheetSuccess, first+":"+last, []excelize.ConditionalFormatOptions{{
		Type:     "3_color_scale",
		Criteria: "=",
		MinType:  "num",
		MinValue: "0",
		MinColor: "#440154",
		MidType:  "num",
		MidValue: "0.5",
		MidColor: "#21918C",
		MaxType:  "num",
		MaxValue: "1",
		MaxColor: "#FDE725",
	}})
}

func writeCellsSheet(f *excelize.File, grid *sweep.Grid) error {
	headers := make([]interface{}, 0, len(grid.Axes)+5)
	for _, a := range grid.Axes {
		headers = append(headers, a.Name)
	}
	headers = append(headers, "successes", "trials", "rate", "ci_low", "ci_high")
	if err := f.SetSheetRow(SheetCells, "A1", &headers); err != nil {
		return err
	}

	for i, c := range grid.Cells {
		row := make([]interface{}, 0, len(headers))
		for _, p := range c.Params {
			row = append(row, p)
		}
		row = append(row, c.Successes, c.Trials, c.Rate, c.CILow, c.CIHigh)
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SheetCells, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
