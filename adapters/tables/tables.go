// Package tables reads and writes the comma-delimited result tables produced
// by runs: coordinates, gap counts, success rates, swept parameters, and
// persistence diagrams. Tables have no header.
package tables

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"ringstat/domain/activity"
	"ringstat/domain/persistence"
	"ringstat/internal/errors"

	"gonum.org/v1/gonum/mat"
)

// File suffixes appended to an output root
const (
	SuffixCoords   = "_coords.csv"
	SuffixGaps     = "_gaps.csv"
	SuffixSuccess  = "_success.csv"
	SuffixParams   = "_n.csv"
	SuffixParamsB  = "_n2.csv"
	SuffixDiagrams = "_diagram.csv"
	SuffixGrid     = "_grid.json"
)

// WriteCoords writes one row per timepoint: the time index, then every
// coordinate column with five decimals.
func WriteCoords(w io.Writer, t activity.TimeIndex, coords *mat.Dense) error {
	rows, cols := 0, 0
	if coords != nil {
		rows, cols = coords.Dims()
	}
	if rows != len(t) {
		return errors.InvalidInput(fmt.Sprintf("time index has %d entries, coordinates have %d rows", len(t), rows))
	}
	return writeRecords(w, rows, func(r int) []string {
		rec := make([]string, 0, cols+1)
		rec = append(rec, strconv.Itoa(t[r]))
		for c := 0; c < cols; c++ {
			rec = append(rec, strconv.FormatFloat(coords.At(r, c), 'f', 5, 64))
		}
		return rec
	})
}

// ReadCoords parses a coordinate table
func ReadCoords(r io.Reader) (activity.TimeIndex, *mat.Dense, error) {
	recs, err := readRecords(r)
	if err != nil {
		return nil, nil, err
	}
	if len(recs) == 0 {
		return activity.TimeIndex{}, nil, nil
	}
	cols := len(recs[0]) - 1
	t := make(activity.TimeIndex, len(recs))
	var coords *mat.Dense
	if cols > 0 {
		coords = mat.NewDense(len(recs), cols, nil)
	}
	for i, rec := range recs {
		if len(rec)-1 != cols {
			return nil, nil, errors.InvalidInput(fmt.Sprintf("coordinate row %d has %d columns, expected %d", i+1, len(rec), cols+1))
		}
		if t[i], err = strconv.Atoi(rec[0]); err != nil {
			return nil, nil, errors.InvalidInput(fmt.Sprintf("coordinate row %d: bad time index %q", i+1, rec[0]))
		}
		for c := 0; c < cols; c++ {
			v, err := strconv.ParseFloat(rec[c+1], 64)
			if err != nil {
				return nil, nil, errors.InvalidInput(fmt.Sprintf("coordinate row %d: bad value %q", i+1, rec[c+1]))
			}
			coords.Set(i, c, v)
		}
	}
	return t, coords, nil
}

// WriteGaps writes one feature count per trial
func WriteGaps(w io.Writer, gaps []persistence.GapResult) error {
	counts := make([]int, len(gaps))
	for i, g := range gaps {
		counts[i] = g.Count
	}
	return WriteInts(w, counts)
}

// WriteInts writes one integer per line; used for gap counts and swept parameter values
func WriteInts(w io.Writer, values []int) error {
	return writeRecords(w, len(values), func(i int) []string {
		return []string{strconv.Itoa(values[i])}
	})
}

// ReadInts parses a one-integer-per-line table
func ReadInts(r io.Reader) ([]int, error) {
	recs, err := readRecords(r)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(recs))
	for i, rec := range recs {
		if len(rec) != 1 {
			return nil, errors.InvalidInput(fmt.Sprintf("line %d has %d fields, expected 1", i+1, len(rec)))
		}
		if out[i], err = strconv.Atoi(rec[0]); err != nil {
			return nil, errors.InvalidInput(fmt.Sprintf("line %d: bad integer %q", i+1, rec[0]))
		}
	}
	return out, nil
}

// WriteSuccess writes success rates with three decimals. A sweep over one
// axis (dims 1) is written one rate per line; a sweep over two axes one row per
// first-axis value, even when that axis has a single value.
func WriteSuccess(w io.Writer, rates [][]float64, dims int) error {
	if dims == 1 {
		if len(rates) != 1 {
			return errors.InvalidInput(fmt.Sprintf("1D success table has %d rows, expected 1", len(rates)))
		}
		return writeRecords(w, len(rates[0]), func(i int) []string {
			return []string{formatRate(rates[0][i])}
		})
	}
	return writeRecords(w, len(rates), func(i int) []string {
		rec := make([]string, len(rates[i]))
		for j, v := range rates[i] {
			rec[j] = formatRate(v)
		}
		return rec
	})
}

// ReadSuccess parses a success table written by WriteSuccess with the same
// dims. A 1D table is returned as one row.
func ReadSuccess(r io.Reader, dims int) ([][]float64, error) {
	recs, err := readRecords(r)
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(recs))
	for i, rec := range recs {
		if dims == 1 && len(rec) != 1 {
			return nil, errors.InvalidInput(fmt.Sprintf("success row %d has %d fields, expected 1", i+1, len(rec)))
		}
		out[i] = make([]float64, len(rec))
		for j, s := range rec {
			if out[i][j], err = strconv.ParseFloat(s, 64); err != nil {
				return nil, errors.InvalidInput(fmt.Sprintf("success row %d: bad rate %q", i+1, s))
			}
		}
	}
	if dims == 1 {
		row := make([]float64, len(out))
		for i := range out {
			row[i] = out[i][0]
		}
		return [][]float64{row}, nil
	}
	return out, nil
}

// WriteDiagrams writes one line per point as dim,birth,death. Essential
// classes are written with death "inf".
func WriteDiagrams(w io.Writer, diagrams []persistence.Diagram) error {
	type entry struct {
		dim int
		p   persistence.Point
	}
	var entries []entry
	for dim, d := range diagrams {
		for _, p := range d {
			entries = append(entries, entry{dim, p})
		}
	}
	return writeRecords(w, len(entries), func(i int) []string {
		e := entries[i]
		return []string{strconv.Itoa(e.dim), formatFloat(e.p.Birth), formatFloat(e.p.Death)}
	})
}

// ReadDiagrams parses a diagram table into diagrams indexed by dimension
func ReadDiagrams(r io.Reader) ([]persistence.Diagram, error) {
	recs, err := readRecords(r)
	if err != nil {
		return nil, err
	}
	var out []persistence.Diagram
	for i, rec := range recs {
		if len(rec) != 3 {
			return nil, errors.InvalidInput(fmt.Sprintf("diagram line %d has %d fields, expected 3", i+1, len(rec)))
		}
		dim, err := strconv.Atoi(rec[0])
		if err != nil || dim < 0 {
			return nil, errors.InvalidInput(fmt.Sprintf("diagram line %d: bad dimension %q", i+1, rec[0]))
		}
		birth, err1 := strconv.ParseFloat(rec[1], 64)
		death, err2 := strconv.ParseFloat(rec[2], 64)
		if err1 != nil || err2 != nil {
			return nil, errors.InvalidInput(fmt.Sprintf("diagram line %d: bad point %v", i+1, rec[1:]))
		}
		for len(out) <= dim {
			out = append(out, persistence.Diagram{})
		}
		out[dim] = append(out[dim], persistence.Point{Birth: birth, Death: death})
	}
	return out, nil
}

// WriteActivity writes m in the input layout read by the dataset loader:
// one line per channel, one column per timepoint.
func WriteActivity(w io.Writer, m activity.Matrix) error {
	return writeRecords(w, m.Channels(), func(c int) []string {
		col := m.Column(c)
		rec := make([]string, len(col))
		for t, v := range col {
			rec[t] = strconv.FormatFloat(v, 'g', 8, 64)
		}
		return rec
	})
}

// Create opens root+suffix for writing, creating parent directories
func Create(root, suffix string) (*os.File, error) {
	path := root + suffix
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	return os.Create(path)
}

// WriteFile creates root+suffix and fills it with write
func WriteFile(root, suffix string, write func(io.Writer) error) error {
	f, err := Create(root, suffix)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeRecords(w io.Writer, n int, record func(i int) []string) error {
	cw := csv.NewWriter(w)
	for i := 0; i < n; i++ {
		if err := cw.Write(record(i)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func readRecords(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	recs, err := cr.ReadAll()
	if err != nil {
		return nil, errors.InvalidInput(fmt.Sprintf("malformed table: %v", err))
	}
	return recs, nil
}

func formatRate(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func formatFloat(v float64) string {
	if math.IsInf(v, 1) {
		return "inf"
	}
	return strings.TrimRight(strings.TrimRight(strconv.FormatFloat(v, 'f', 6, 64), "0"), ".")
}
