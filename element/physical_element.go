package element

import (
	"fmt"
	"math"
	"strings"

	"github.com/notargets/DGCut/geometry"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	newtonMaxIter = 30
	newtonTol     = 1.e-13 // relative to the element size
)

// PhysicalElement is a linear element placed in physical space through the
// isoparametric map x(r,s,t) = Σ N_i(r,s,t) X_i
type PhysicalElement struct {
	Element          // Reference shape
	X       []r3.Vec // Node coordinates, one per reference vertex
}

// NewPhysicalElement validates the node count against the shape
func NewPhysicalElement(g ElementGeometry, x []r3.Vec) (*PhysicalElement, error) {
	ref, err := Lookup(g)
	if err != nil {
		return nil, err
	}
	if n := ref.GetProperties().NumNodes; len(x) != n {
		return nil, fmt.Errorf("%v element needs %d nodes, got %d", g, n, len(x))
	}
	return &PhysicalElement{Element: ref, X: x}, nil
}

// MapToPhysical evaluates the isoparametric map
func (pe *PhysicalElement) MapToPhysical(rst [3]float64) (x r3.Vec) {
	for i, n := range pe.ShapeFunctions(rst) {
		x = r3.Add(x, r3.Scale(n, pe.X[i]))
	}
	return
}

// Jacobian returns J_ij = ∂x_i/∂r_j row major. 3D shapes only.
func (pe *PhysicalElement) Jacobian(rst [3]float64) (J [9]float64) {
	var (
		deriv = pe.Derivatives(rst)
		dim   = int(pe.GetProperties().Dimensions)
	)
	for n, xn := range pe.X {
		c := [3]float64{xn.X, xn.Y, xn.Z}
		for j := 0; j < dim; j++ {
			dn := deriv.At(j, n)
			for i := 0; i < 3; i++ {
				J[i*3+j] += c[i] * dn
			}
		}
	}
	return
}

// DetJ is the Jacobian determinant at rst
func (pe *PhysicalElement) DetJ(rst [3]float64) float64 {
	J := pe.Jacobian(rst)
	return mat.Det(mat.NewDense(3, 3, J[:]))
}

// LocalCoordinates inverts the isoparametric map with Newton's method. The
// returned flag reports convergence, err is set for singular Jacobians.
func (pe *PhysicalElement) LocalCoordinates(x r3.Vec) (rst [3]float64, converged bool, err error) {
	if pe.GetProperties().Dimensions != D3 {
		return rst, false, fmt.Errorf("local coordinates need a 3D shape, got %v",
			pe.GetProperties().Type)
	}
	var (
		size = pe.BoundingBox().Diagonal()
		tol  = newtonTol * math.Max(size, 1)
	)
	rst = pe.GetReferenceGeometry().Centroid()
	for iter := 0; iter < newtonMaxIter; iter++ {
		res := r3.Sub(x, pe.MapToPhysical(rst))
		if r3.Norm(res) <= tol {
			return rst, true, nil
		}
		var dr r3.Vec
		if dr, err = geometry.SolveLinear3(pe.Jacobian(rst), res); err != nil {
			return rst, false, err
		}
		rst[0] += dr.X
		rst[1] += dr.Y
		rst[2] += dr.Z
	}
	return rst, r3.Norm(r3.Sub(x, pe.MapToPhysical(rst))) <= tol, nil
}

// Sides returns the face polygons with outward right hand ordering
func (pe *PhysicalElement) Sides() [][]r3.Vec {
	faces := pe.GetReferenceGeometry().Faces
	sides := make([][]r3.Vec, len(faces))
	for f, face := range faces {
		sides[f] = make([]r3.Vec, len(face))
		for i, n := range face {
			sides[f][i] = pe.X[n]
		}
	}
	return sides
}

// SidePlanes returns one plane per side with the normal pointing outward
func (pe *PhysicalElement) SidePlanes() ([]geometry.Plane, error) {
	sides := pe.Sides()
	planes := make([]geometry.Plane, len(sides))
	for f, s := range sides {
		pl, ok := geometry.PlaneFromPolygon(s)
		if !ok {
			return nil, fmt.Errorf("degenerate side %d", f)
		}
		planes[f] = pl
	}
	return planes, nil
}

// CheckPlanarSides fails for warped quadrilateral sides, the cut assumes
// planar element sides
func (pe *PhysicalElement) CheckPlanarSides(tol float64) error {
	planes, err := pe.SidePlanes()
	if err != nil {
		return err
	}
	for f, s := range pe.Sides() {
		if !planes[f].Coplanar(s, tol) {
			return fmt.Errorf("side %d of %v element is not planar",
				f, pe.GetProperties().Type)
		}
	}
	return nil
}

// PointInside tests x against the outward side planes, which is exact for
// the convex planar sided elements the cut works on
func (pe *PhysicalElement) PointInside(x r3.Vec, tol float64) bool {
	planes, err := pe.SidePlanes()
	if err != nil {
		return false
	}
	for _, pl := range planes {
		if pl.SignedDistance(x) > tol {
			return false
		}
	}
	return true
}

// Volume from the divergence theorem over the (planar) sides
func (pe *PhysicalElement) Volume() float64 {
	return geometry.PolyhedronVolume(pe.Sides())
}

func (pe *PhysicalElement) BoundingBox() geometry.BoundingBox {
	return geometry.NewBoundingBox(pe.X...)
}

func (pe *PhysicalElement) Centroid() r3.Vec {
	return geometry.Average(pe.X)
}

func (pe *PhysicalElement) String() string {
	var b strings.Builder
	props := pe.GetProperties()
	fmt.Fprintf(&b, "%s (%s), %d nodes\n", props.Name, props.ShortName, props.NumNodes)
	for i, x := range pe.X {
		fmt.Fprintf(&b, "  node %d: (%g, %g, %g)\n", i, x.X, x.Y, x.Z)
	}
	return b.String()
}
