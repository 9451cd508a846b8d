package element

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrUnknownShape is returned for element or side shapes without a linear
// Lagrange implementation
var ErrUnknownShape = errors.New("unknown element shape")

// ElementProperties contains metadata describing an element type
type ElementProperties struct {
	Name       string          // Full descriptive name (e.g., "Linear Hexahedron")
	ShortName  string          // Abbreviated name (e.g., "hex8")
	Type       ElementGeometry // Element shape
	NumNodes   int             // Number of vertex nodes
	NumFaces   int             // Number of faces (edges for 2D shapes)
	NumEdges   int             // Number of edges
	Dimensions Dimensionality  // Spatial dimension (1D, 2D, or 3D)
}

// ReferenceGeometry defines the vertex layout in reference space
type ReferenceGeometry struct {
	// Node coordinates in reference space
	// For 3D: all three are used; for 2D: only R,S; for 1D: only R
	R, S, T []float64 // Length NumNodes each

	// Faces lists the local nodes of each face ordered counter clockwise when
	// seen from outside, so the right hand normal points out of the element
	Faces [][]int
	Edges [][2]int
}

// Centroid of the reference vertices, a safe Newton starting point
func (rg ReferenceGeometry) Centroid() (rst [3]float64) {
	n := float64(len(rg.R))
	for i := range rg.R {
		rst[0] += rg.R[i] / n
		if rg.S != nil {
			rst[1] += rg.S[i] / n
		}
		if rg.T != nil {
			rst[2] += rg.T[i] / n
		}
	}
	return
}

type linearElement struct {
	props  ElementProperties
	geom   ReferenceGeometry
	shape  func(r, s, t float64) []float64
	deriv  func(r, s, t float64) []float64 // row major [Dim × NumNodes]
	inside func(r, s, t, tol float64) bool
}

func (le *linearElement) GetProperties() ElementProperties       { return le.props }
func (le *linearElement) GetReferenceGeometry() ReferenceGeometry { return le.geom }

func (le *linearElement) ShapeFunctions(rst [3]float64) []float64 {
	return le.shape(rst[0], rst[1], rst[2])
}

func (le *linearElement) Derivatives(rst [3]float64) *mat.Dense {
	return mat.NewDense(int(le.props.Dimensions), le.props.NumNodes,
		le.deriv(rst[0], rst[1], rst[2]))
}

func (le *linearElement) InsideReference(rst [3]float64, tol float64) bool {
	return le.inside(rst[0], rst[1], rst[2], tol)
}

var library = map[ElementGeometry]Element{
	Hex:       newHex8(),
	Tet:       newTet4(),
	Prism:     newWedge6(),
	Pyramid:   newPyramid5(),
	Rectangle: newQuad4(),
	Tri:       newTri3(),
	Line:      newLine2(),
}

// Lookup returns the shared linear element for a geometry
func Lookup(g ElementGeometry) (Element, error) {
	el, ok := library[g]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownShape, g)
	}
	return el, nil
}

var (
	hexR = []float64{-1, 1, 1, -1, -1, 1, 1, -1}
	hexS = []float64{-1, -1, 1, 1, -1, -1, 1, 1}
	hexT = []float64{-1, -1, -1, -1, 1, 1, 1, 1}
)

func newHex8() Element {
	return &linearElement{
		props: ElementProperties{
			Name: "Linear Hexahedron", ShortName: "hex8", Type: Hex,
			NumNodes: 8, NumFaces: 6, NumEdges: 12, Dimensions: D3,
		},
		geom: ReferenceGeometry{
			R: hexR, S: hexS, T: hexT,
			Faces: [][]int{{0, 3, 2, 1}, {4, 5, 6, 7}, {0, 1, 5, 4},
				{1, 2, 6, 5}, {2, 3, 7, 6}, {3, 0, 4, 7}},
			Edges: [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 0}, {4, 5}, {5, 6},
				{6, 7}, {7, 4}, {0, 4}, {1, 5}, {2, 6}, {3, 7}},
		},
		shape: func(r, s, t float64) []float64 {
			n := make([]float64, 8)
			for i := range n {
				n[i] = 0.125 * (1 + r*hexR[i]) * (1 + s*hexS[i]) * (1 + t*hexT[i])
			}
			return n
		},
		deriv: func(r, s, t float64) []float64 {
			d := make([]float64, 24)
			for i := 0; i < 8; i++ {
				d[i] = 0.125 * hexR[i] * (1 + s*hexS[i]) * (1 + t*hexT[i])
				d[8+i] = 0.125 * hexS[i] * (1 + r*hexR[i]) * (1 + t*hexT[i])
				d[16+i] = 0.125 * hexT[i] * (1 + r*hexR[i]) * (1 + s*hexS[i])
			}
			return d
		},
		inside: func(r, s, t, tol float64) bool {
			lim := 1 + tol
			return r >= -lim && r <= lim && s >= -lim && s <= lim && t >= -lim && t <= lim
		},
	}
}

func newTet4() Element {
	return &linearElement{
		props: ElementProperties{
			Name: "Linear Tetrahedron", ShortName: "tet4", Type: Tet,
			NumNodes: 4, NumFaces: 4, NumEdges: 6, Dimensions: D3,
		},
		geom: ReferenceGeometry{
			R: []float64{0, 1, 0, 0}, S: []float64{0, 0, 1, 0}, T: []float64{0, 0, 0, 1},
			Faces: [][]int{{0, 2, 1}, {0, 1, 3}, {1, 2, 3}, {0, 3, 2}},
			Edges: [][2]int{{0, 1}, {1, 2}, {2, 0}, {0, 3}, {1, 3}, {2, 3}},
		},
		shape: func(r, s, t float64) []float64 {
			return []float64{1 - r - s - t, r, s, t}
		},
		deriv: func(r, s, t float64) []float64 {
			return []float64{
				-1, 1, 0, 0,
				-1, 0, 1, 0,
				-1, 0, 0, 1,
			}
		},
		inside: func(r, s, t, tol float64) bool {
			return r >= -tol && s >= -tol && t >= -tol && r+s+t <= 1+tol
		},
	}
}

func newWedge6() Element {
	return &linearElement{
		props: ElementProperties{
			Name: "Linear Wedge", ShortName: "wedge6", Type: Prism,
			NumNodes: 6, NumFaces: 5, NumEdges: 9, Dimensions: D3,
		},
		geom: ReferenceGeometry{
			R: []float64{0, 1, 0, 0, 1, 0},
			S: []float64{0, 0, 1, 0, 0, 1},
			T: []float64{-1, -1, -1, 1, 1, 1},
			Faces: [][]int{{0, 2, 1}, {3, 4, 5}, {0, 1, 4, 3},
				{1, 2, 5, 4}, {2, 0, 3, 5}},
			Edges: [][2]int{{0, 1}, {1, 2}, {2, 0}, {3, 4}, {4, 5}, {5, 3},
				{0, 3}, {1, 4}, {2, 5}},
		},
		shape: func(r, s, t float64) []float64 {
			l := [3]float64{1 - r - s, r, s}
			lo, hi := 0.5*(1-t), 0.5*(1+t)
			return []float64{l[0] * lo, l[1] * lo, l[2] * lo, l[0] * hi, l[1] * hi, l[2] * hi}
		},
		deriv: func(r, s, t float64) []float64 {
			l := [3]float64{1 - r - s, r, s}
			dlr := [3]float64{-1, 1, 0}
			dls := [3]float64{-1, 0, 1}
			lo, hi := 0.5*(1-t), 0.5*(1+t)
			d := make([]float64, 18)
			for i := 0; i < 3; i++ {
				d[i], d[i+3] = dlr[i]*lo, dlr[i]*hi
				d[6+i], d[6+i+3] = dls[i]*lo, dls[i]*hi
				d[12+i], d[12+i+3] = -0.5*l[i], 0.5*l[i]
			}
			return d
		},
		inside: func(r, s, t, tol float64) bool {
			return r >= -tol && s >= -tol && r+s <= 1+tol && t >= -1-tol && t <= 1+tol
		},
	}
}

var (
	pyrR = []float64{-1, 1, 1, -1}
	pyrS = []float64{-1, -1, 1, 1}
)

// The linear pyramid uses the rational basis that reproduces linear fields
// on the slanted faces; the apex singularity is clipped.
func newPyramid5() Element {
	oneMinus := func(t float64) float64 {
		const eps = 1.e-12
		if 1-t < eps {
			return eps
		}
		return 1 - t
	}
	return &linearElement{
		props: ElementProperties{
			Name: "Linear Pyramid", ShortName: "pyramid5", Type: Pyramid,
			NumNodes: 5, NumFaces: 5, NumEdges: 8, Dimensions: D3,
		},
		geom: ReferenceGeometry{
			R: []float64{-1, 1, 1, -1, 0},
			S: []float64{-1, -1, 1, 1, 0},
			T: []float64{0, 0, 0, 0, 1},
			Faces: [][]int{{0, 3, 2, 1}, {0, 1, 4}, {1, 2, 4},
				{2, 3, 4}, {3, 0, 4}},
			Edges: [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 0},
				{0, 4}, {1, 4}, {2, 4}, {3, 4}},
		},
		shape: func(r, s, t float64) []float64 {
			q := r * s * t / oneMinus(t)
			n := make([]float64, 5)
			for i := 0; i < 4; i++ {
				n[i] = 0.25 * ((1+r*pyrR[i])*(1+s*pyrS[i]) - t + pyrR[i]*pyrS[i]*q)
			}
			n[4] = t
			return n
		},
		deriv: func(r, s, t float64) []float64 {
			om := oneMinus(t)
			d := make([]float64, 15)
			for i := 0; i < 4; i++ {
				rs := pyrR[i] * pyrS[i]
				d[i] = 0.25 * (pyrR[i]*(1+s*pyrS[i]) + rs*s*t/om)
				d[5+i] = 0.25 * (pyrS[i]*(1+r*pyrR[i]) + rs*r*t/om)
				d[10+i] = 0.25 * (-1 + rs*r*s/(om*om))
			}
			d[14] = 1
			return d
		},
		inside: func(r, s, t, tol float64) bool {
			lim := 1 - t + tol
			return t >= -tol && t <= 1+tol && r >= -lim && r <= lim && s >= -lim && s <= lim
		},
	}
}

func newQuad4() Element {
	qr := []float64{-1, 1, 1, -1}
	qs := []float64{-1, -1, 1, 1}
	return &linearElement{
		props: ElementProperties{
			Name: "Linear Quadrilateral", ShortName: "quad4", Type: Rectangle,
			NumNodes: 4, NumFaces: 4, NumEdges: 4, Dimensions: D2,
		},
		geom: ReferenceGeometry{
			R: qr, S: qs,
			Faces: [][]int{{0, 1, 2, 3}},
			Edges: [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 0}},
		},
		shape: func(r, s, _ float64) []float64 {
			n := make([]float64, 4)
			for i := range n {
				n[i] = 0.25 * (1 + r*qr[i]) * (1 + s*qs[i])
			}
			return n
		},
		deriv: func(r, s, _ float64) []float64 {
			d := make([]float64, 8)
			for i := 0; i < 4; i++ {
				d[i] = 0.25 * qr[i] * (1 + s*qs[i])
				d[4+i] = 0.25 * qs[i] * (1 + r*qr[i])
			}
			return d
		},
		inside: func(r, s, _, tol float64) bool {
			lim := 1 + tol
			return r >= -lim && r <= lim && s >= -lim && s <= lim
		},
	}
}

func newTri3() Element {
	return &linearElement{
		props: ElementProperties{
			Name: "Linear Triangle", ShortName: "tri3", Type: Tri,
			NumNodes: 3, NumFaces: 3, NumEdges: 3, Dimensions: D2,
		},
		geom: ReferenceGeometry{
			R: []float64{0, 1, 0}, S: []float64{0, 0, 1},
			Faces: [][]int{{0, 1, 2}},
			Edges: [][2]int{{0, 1}, {1, 2}, {2, 0}},
		},
		shape: func(r, s, _ float64) []float64 {
			return []float64{1 - r - s, r, s}
		},
		deriv: func(_, _, _ float64) []float64 {
			return []float64{-1, 1, 0, -1, 0, 1}
		},
		inside: func(r, s, _, tol float64) bool {
			return r >= -tol && s >= -tol && r+s <= 1+tol
		},
	}
}

func newLine2() Element {
	return &linearElement{
		props: ElementProperties{
			Name: "Linear Line", ShortName: "line2", Type: Line,
			NumNodes: 2, NumFaces: 2, NumEdges: 1, Dimensions: D1,
		},
		geom: ReferenceGeometry{
			R:     []float64{-1, 1},
			Edges: [][2]int{{0, 1}},
		},
		shape: func(r, _, _ float64) []float64 {
			return []float64{0.5 * (1 - r), 0.5 * (1 + r)}
		},
		deriv: func(_, _, _ float64) []float64 {
			return []float64{-0.5, 0.5}
		},
		inside: func(r, _, _, tol float64) bool {
			return r >= -1-tol && r <= 1+tol
		},
	}
}
