package engine

import (
	"fmt"
	"math"

	"ringstat/domain/persistence"
)

// Operations understood by the engine bridge
const (
	opDiagrams    = "diagrams"
	opCircular    = "circular"
	opCoordinates = "coordinates"
	opClose       = "close"
)

// request is one line sent to the bridge
type request struct {
	Op       string      `json:"op"`
	Points   [][]float64 `json:"points,omitempty"`
	MaxDim   int         `json:"max_dim,omitempty"`
	Coeff    int         `json:"coeff,omitempty"`
	NPerm    int         `json:"n_perm,omitempty"`
	Cocycles []int       `json:"cocycles,omitempty"`
}

// response is one line read from the bridge
type response struct {
	Error       string        `json:"error,omitempty"`
	Diagrams    []wireDiagram `json:"diagrams,omitempty"`
	Diagram     wireDiagram   `json:"diagram,omitempty"`
	Coordinates []float64     `json:"coordinates,omitempty"`
}

// wirePoint is [birth, death]; a null death is an essential class
type wirePoint [2]*float64

type wireDiagram []wirePoint

func (w wireDiagram) decode() (persistence.Diagram, error) {
	out := make(persistence.Diagram, len(w))
	for i, p := range w {
		if p[0] == nil {
			return nil, fmt.Errorf("point %d has no birth", i)
		}
		death := math.Inf(1)
		if p[1] != nil {
			death = *p[1]
		}
		out[i] = persistence.Point{Birth: *p[0], Death: death}
	}
	return out, nil
}

func encodeDiagram(d persistence.Diagram) wireDiagram {
	out := make(wireDiagram, len(d))
	for i, p := range d {
		birth := p.Birth
		out[i][0] = &birth
		if !math.IsInf(p.Death, 1) {
			death := p.Death
			out[i][1] = &death
		}
	}
	return out
}

func decodeDiagrams(ws []wireDiagram) ([]persistence.Diagram, error) {
	out := make([]persistence.Diagram, len(ws))
	for dim, w := range ws {
		d, err := w.decode()
		if err != nil {
			return nil, fmt.Errorf("dimension %d: %w", dim, err)
		}
		out[dim] = d
	}
	return out, nil
}
