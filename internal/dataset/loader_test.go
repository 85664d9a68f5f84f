package dataset

import (
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"ringstat/adapters/excel"
	"ringstat/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockReader serves tables without touching the file contents
type MockReader struct {
	mock.Mock
}

func (m *MockReader) ReadTable(path string) ([][]float64, error) {
	args := m.Called(path)
	if t := args.Get(0); t != nil {
		return t.([][]float64), args.Error(1)
	}
	return nil, args.Error(1)
}

func writeTable(t *testing.T, dir, name string, table [][]float64) string {
	t.Helper()
	var b strings.Builder
	for _, row := range table {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		b.WriteString(strings.Join(cells, ","))
		b.WriteString("\n")
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func randomTable(rng *rand.Rand, channels, timepoints int) [][]float64 {
	table := make([][]float64, channels)
	for c := range table {
		table[c] = make([]float64, timepoints)
		for t := range table[c] {
			table[c][t] = 0.1 + rng.ExpFloat64()*float64(c+1)
		}
	}
	return table
}

func TestLoadNormalizesChannels(t *testing.T) {
	dir := t.TempDir()
	rng := rand.New(rand.NewSource(1))
	path := writeTable(t, dir, "data.csv", randomTable(rng, 6, 120))

	loader := NewLoader(excel.NewDataReader(""))
	m, ti, err := loader.Load(path, 0)
	require.NoError(t, err)

	rows, cols := m.Dims()
	assert.Equal(t, 120, rows)
	assert.Equal(t, 6, cols)
	assert.Len(t, ti, rows)

	means, err := m.ChannelMeans()
	require.NoError(t, err)
	for c, mean := range means {
		assert.InDelta(t, 1.0, mean, 1e-9, "channel %d", c)
	}
}

func TestLoadTruncatesBeforeNormalizing(t *testing.T) {
	table := [][]float64{
		{1, 1, 9, 9},
		{2, 4, 100, 100},
	}
	reader := new(MockReader)
	reader.On("ReadTable", mock.Anything).Return(table, nil)

	path := filepath.Join(t.TempDir(), "x.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	loader := NewLoader(reader)
	m, _, err := loader.Load(path, 2)
	require.NoError(t, err)

	require.Equal(t, 2, m.Timepoints())
	assert.InDelta(t, 1.0, m.At(0, 0), 1e-12)
	assert.InDelta(t, 2.0/3.0, m.At(0, 1), 1e-12)
	assert.InDelta(t, 4.0/3.0, m.At(1, 1), 1e-12)

	full, _, err := loader.Load(path, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, full.At(0, 0), 1e-12, "full window uses the full-length mean")
}

func TestLoadDropsSilentRows(t *testing.T) {
	table := [][]float64{
		{2, 0, 2, 0, 4},
		{1, 0, 3, 0.0005, 1},
	}
	reader := new(MockReader)
	reader.On("ReadTable", mock.Anything).Return(table, nil)
	path := filepath.Join(t.TempDir(), "x.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	m, ti, err := NewLoader(reader).Load(path, 0)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 2, 4}, []int(ti))
	for r := 0; r < m.Timepoints(); r++ {
		silent := true
		for _, v := range m.Row(r) {
			if v >= 1e-3 {
				silent = false
			}
		}
		assert.False(t, silent, "row %d is silent", r)
	}
}

func TestLoadDropsZeroMeanChannel(t *testing.T) {
	table := [][]float64{
		{1, 2, 3},
		{0, 0, 0},
	}
	reader := new(MockReader)
	reader.On("ReadTable", mock.Anything).Return(table, nil)
	path := filepath.Join(t.TempDir(), "x.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	m, _, err := NewLoader(reader).Load(path, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Channels())
	assert.False(t, math.IsNaN(m.At(0, 0)))
}

func TestLoadMissingFile(t *testing.T) {
	loader := NewLoader(excel.NewDataReader(""))
	_, _, err := loader.Load(filepath.Join(t.TempDir(), "nope.csv"), 0)

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeDataNotFound))
	assert.True(t, errors.IsFatalInput(err))
}

func TestLoadTwoSizeMismatch(t *testing.T) {
	dir := t.TempDir()
	rng := rand.New(rand.NewSource(2))
	a := writeTable(t, dir, "a.csv", randomTable(rng, 3, 50))
	b := writeTable(t, dir, "b.csv", randomTable(rng, 4, 40))

	_, err := NewLoader(excel.NewDataReader("")).LoadTwo(a, b, 0)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeSizeMismatch))
}

func TestLoadTwoKeepsRowsAligned(t *testing.T) {
	dir := t.TempDir()
	a := writeTable(t, dir, "a.csv", [][]float64{{1, 0, 1, 2}, {1, 0, 0, 3}})
	b := writeTable(t, dir, "b.csv", [][]float64{{1, 0, 0, 1}})

	pair, err := NewLoader(excel.NewDataReader("")).LoadTwo(a, b, 0)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 2, 3}, []int(pair.Time))
	assert.Equal(t, 3, pair.A.Timepoints())
	assert.Equal(t, 3, pair.B.Timepoints())
	assert.Equal(t, 2, pair.A.Channels())
	assert.Equal(t, 1, pair.B.Channels(), "channels are never merged")
}

func TestLoadTwoMissingSecondFile(t *testing.T) {
	dir := t.TempDir()
	a := writeTable(t, dir, "a.csv", [][]float64{{1, 2}})
	_, err := NewLoader(excel.NewDataReader("")).LoadTwo(a, filepath.Join(dir, "b.csv"), 0)
	assert.True(t, errors.HasCode(err, errors.CodeDataNotFound))
}
