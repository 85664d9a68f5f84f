package tables

import (
	"bytes"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ringstat/domain/activity"
	"ringstat/domain/persistence"
	"ringstat/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestCoordsRoundTrip(t *testing.T) {
	ti := activity.TimeIndex{0, 2, 5}
	coords := mat.NewDense(3, 4, []float64{
		0.123456, 0.5, 0.999994, 0,
		0.25, 0.75, 0.1, 0.2,
		0.333333, 0.666667, 0.4, 0.6,
	})

	var buf bytes.Buffer
	require.NoError(t, WriteCoords(&buf, ti, coords))
	assert.True(t, strings.HasPrefix(buf.String(), "0,0.12346,0.50000,0.99999,0.00000\n"))

	gotT, got, err := ReadCoords(&buf)
	require.NoError(t, err)
	assert.Equal(t, ti, gotT)
	for r := 0; r < 3; r++ {
		for c := 0; c < 4; c++ {
			assert.InDelta(t, coords.At(r, c), got.At(r, c), 5e-6)
		}
	}
}

func TestWriteCoordsRejectsMisalignedIndex(t *testing.T) {
	err := WriteCoords(&bytes.Buffer{}, activity.TimeIndex{0}, mat.NewDense(2, 2, nil))
	assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))
}

func TestGapsRoundTrip(t *testing.T) {
	gaps := []persistence.GapResult{
		{Count: 1, State: persistence.GapSeparated},
		{Count: -1, State: persistence.GapUndefined},
		{Count: 0, State: persistence.GapSingle},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteGaps(&buf, gaps))
	assert.Equal(t, "1\n-1\n0\n", buf.String())

	counts, err := ReadInts(&buf)
	require.NoError(t, err)
	assert.Equal(t, []int{1, -1, 0}, counts)
}

func TestSuccessRoundTrip1D(t *testing.T) {
	rates := [][]float64{{0, 0.25, 0.3333, 1}}
	var buf bytes.Buffer
	require.NoError(t, WriteSuccess(&buf, rates, 1))
	assert.Equal(t, "0.000\n0.250\n0.333\n1.000\n", buf.String())

	got, err := ReadSuccess(&buf, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	for i := range rates[0] {
		assert.InDelta(t, rates[0][i], got[0][i], 5e-4)
	}
}

func TestSuccessRoundTrip2D(t *testing.T) {
	rates := [][]float64{{0.1, 0.2, 0.3}, {0.4, 0.5, 0.6}}
	var buf bytes.Buffer
	require.NoError(t, WriteSuccess(&buf, rates, 2))
	assert.Equal(t, "0.100,0.200,0.300\n0.400,0.500,0.600\n", buf.String())

	got, err := ReadSuccess(&buf, 2)
	require.NoError(t, err)
	assert.Equal(t, rates, got)
}

func TestSuccessSingleRow2D(t *testing.T) {
	rates := [][]float64{{0.1, 0.2, 0.3}}
	var buf bytes.Buffer
	require.NoError(t, WriteSuccess(&buf, rates, 2))
	assert.Equal(t, "0.100,0.200,0.300\n", buf.String())

	got, err := ReadSuccess(&buf, 2)
	require.NoError(t, err)
	assert.Equal(t, rates, got)
}

func TestSuccessSingleColumn2D(t *testing.T) {
	rates := [][]float64{{0.1}, {0.2}}
	var buf bytes.Buffer
	require.NoError(t, WriteSuccess(&buf, rates, 2))
	assert.Equal(t, "0.100\n0.200\n", buf.String())

	got, err := ReadSuccess(&buf, 2)
	require.NoError(t, err)
	assert.Equal(t, rates, got)
}

func TestSuccessRejectsWrongShape(t *testing.T) {
	var buf bytes.Buffer
	err := WriteSuccess(&buf, [][]float64{{0.1}, {0.2}}, 1)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))

	_, err = ReadSuccess(strings.NewReader("0.1,0.2\n"), 1)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))
}

func TestParamsRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteInts(&buf, []int{5, 10, 50, 0}))
	got, err := ReadInts(&buf)
	require.NoError(t, err)
	assert.Equal(t, []int{5, 10, 50, 0}, got)

	_, err = ReadInts(strings.NewReader("1,2\n"))
	assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))
}

func TestDiagramsRoundTrip(t *testing.T) {
	diagrams := []persistence.Diagram{
		{{Birth: 0, Death: 0.5}, {Birth: 0, Death: math.Inf(1)}},
		{{Birth: 0.25, Death: 1.75}},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteDiagrams(&buf, diagrams))
	assert.Equal(t, "0,0,0.5\n0,0,inf\n1,0.25,1.75\n", buf.String())

	got, err := ReadDiagrams(&buf)
	require.NoError(t, err)
	assert.Equal(t, diagrams, got)
}

func TestWriteFileCreatesDirectories(t *testing.T) {
	root := filepath.Join(t.TempDir(), "out", "run1")
	require.NoError(t, WriteFile(root, SuffixParams, func(w io.Writer) error {
		return WriteInts(w, []int{3})
	}))
	raw, err := os.ReadFile(root + SuffixParams)
	require.NoError(t, err)
	assert.Equal(t, "3\n", string(raw))
}

func TestWriteActivityIsChannelMajor(t *testing.T) {
	m, err := activity.NewMatrix([][]float64{{1, 0.5}, {2, 0}, {3, 1.25}})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteActivity(&buf, m))
	assert.Equal(t, "1,2,3\n0.5,0,1.25\n", buf.String())
}
