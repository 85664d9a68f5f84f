package engine

import (
	"context"
	"fmt"
	"math"

	"ringstat/domain/activity"
	"ringstat/domain/persistence"
	"ringstat/internal/errors"
	"ringstat/ports"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	probeMaxPlanes   = 3
	probeHoleSpread  = 2.0
	probeBaseWeight  = 0.10
	probeWeightDecay = 0.01
)

// Probe is an offline ring detector. It projects the point cloud onto
// consecutive pairs of principal components and reports one dimension-1
// feature per plane, plus a zero-lifetime noise floor. A plane whose
// projected radii stay clear of the origin produces a long-lived feature.
// It is a diagnostic stand-in for a persistent homology engine: it ignores
// the coefficient field and uses every point regardless of landmarks.
type Probe struct{}

var (
	_ ports.PersistenceEngine = Probe{}
	_ ports.CoordinateEngine  = Probe{}
)

// NewProbe returns a Probe
func NewProbe() Probe {
	return Probe{}
}

// ComputeDiagrams returns one essential class in dimension 0, the plane
// features in dimension 1, and empty diagrams above.
func (p Probe) ComputeDiagrams(ctx context.Context, m activity.Matrix, maxDim, coefficientField, landmarks int) ([]persistence.Diagram, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if maxDim < 0 {
		return nil, errors.InvalidInput(fmt.Sprintf("max dimension must be non-negative, got %d", maxDim))
	}
	out := make([]persistence.Diagram, maxDim+1)
	out[0] = persistence.Diagram{{Birth: 0, Death: math.Inf(1)}}
	for dim := 1; dim <= maxDim; dim++ {
		out[dim] = persistence.Diagram{}
	}
	if maxDim >= 1 && !m.Empty() {
		proj, err := project(m)
		if err != nil {
			return nil, err
		}
		out[1] = proj.diagram()
	}
	return out, nil
}

// Open projects the cloud once and serves angle coordinates per plane
func (p Probe) Open(ctx context.Context, m activity.Matrix, landmarks int) (ports.CoordinateSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Empty() {
		return &probeSession{dgm: persistence.Diagram{}}, nil
	}
	proj, err := project(m)
	if err != nil {
		return nil, err
	}
	return &probeSession{proj: proj, dgm: proj.diagram()}, nil
}

type probeSession struct {
	proj *projection
	dgm  persistence.Diagram
}

func (s *probeSession) Diagram() persistence.Diagram {
	return s.dgm
}

// CoordinatesFor returns the polar angle in the plane of the first requested
// feature, scaled to [0,1).
func (s *probeSession) CoordinatesFor(ctx context.Context, featureIndices []int) ([]float64, error) {
	if len(featureIndices) == 0 {
		return nil, errors.InvalidInput("no features selected")
	}
	f := featureIndices[0]
	if s.proj == nil || f < 0 || f >= len(s.proj.planes) {
		return nil, errors.EngineError("probe", fmt.Errorf("feature %d has no circular coordinate", f))
	}
	plane := s.proj.planes[f]
	out := make([]float64, len(plane.x))
	for t := range out {
		a := math.Atan2(plane.y[t], plane.x[t]) / (2 * math.Pi)
		if a < 0 {
			a += 1
		}
		out[t] = a
	}
	return out, nil
}

func (s *probeSession) Close() error {
	return nil
}

type plane struct {
	x, y     []float64
	hole     float64
	spread   float64
	lifetime float64
}

type projection struct {
	planes []plane
}

// project centers m and splits its leading principal components into planes.
// A single plane cannot be told apart from the noise floor, so fewer than
// four channels or five timepoints give no planes.
func project(m activity.Matrix) (*projection, error) {
	rows, cols := m.Dims()
	n := min(probeMaxPlanes, cols/2, (rows-1)/2)
	if n < 2 {
		return &projection{}, nil
	}

	data := m.Dense()
	var pc stat.PC
	if ok := pc.PrincipalComponents(data, nil); !ok {
		return nil, errors.EngineError("probe", fmt.Errorf("principal component analysis failed for %dx%d cloud", rows, cols))
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)

	centered := mat.DenseCopyOf(data)
	for c := 0; c < cols; c++ {
		mean := stat.Mean(mat.Col(nil, c, data), nil)
		for r := 0; r < rows; r++ {
			centered.Set(r, c, centered.At(r, c)-mean)
		}
	}
	var scores mat.Dense
	scores.Mul(centered, vecs.Slice(0, cols, 0, 2*n))

	proj := &projection{planes: make([]plane, n)}
	for j := range proj.planes {
		pl := plane{
			x: mat.Col(nil, 2*j, &scores),
			y: mat.Col(nil, 2*j+1, &scores),
		}
		radii := make([]float64, rows)
		for t := range radii {
			radii[t] = math.Hypot(pl.x[t], pl.y[t])
		}
		median, err := stats.Median(radii)
		if err != nil {
			return nil, errors.EngineError("probe", err)
		}
		spread, err := stats.StandardDeviation(radii)
		if err != nil {
			return nil, errors.EngineError("probe", err)
		}
		pl.hole = math.Max(median-probeHoleSpread*spread, 0)
		pl.spread = spread
		pl.lifetime = pl.hole + spread*(probeBaseWeight-probeWeightDecay*float64(j))
		proj.planes[j] = pl
	}
	return proj, nil
}

// diagram lists one feature per plane followed by the noise floor. A plane's
// feature is born at its radial spread.
func (p *projection) diagram() persistence.Diagram {
	if len(p.planes) == 0 {
		return persistence.Diagram{}
	}
	out := make(persistence.Diagram, 0, len(p.planes)+1)
	for _, pl := range p.planes {
		out = append(out, persistence.Point{Birth: pl.spread, Death: pl.spread + pl.lifetime})
	}
	floor := p.planes[len(p.planes)-1].spread
	return append(out, persistence.Point{Birth: floor, Death: floor})
}
