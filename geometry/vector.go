package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Default tolerances used when callers do not supply a scale aware value
const (
	PointTol = 1.e-12 // Absolute distance below which two points coincide
	AngleTol = 1.e-10 // Cosine deviation for parallel/coplanar decisions
)

// NewellNormal returns the (non normalized) polygon normal computed with
// Newell's method. Its length is twice the polygon area, which keeps it well
// defined for concave polygons and polygons with inline points.
func NewellNormal(pts []r3.Vec) (n r3.Vec) {
	np := len(pts)
	for i := 0; i < np; i++ {
		a, b := pts[i], pts[(i+1)%np]
		n.X += (a.Y - b.Y) * (a.Z + b.Z)
		n.Y += (a.Z - b.Z) * (a.X + b.X)
		n.Z += (a.X - b.X) * (a.Y + b.Y)
	}
	return
}

// VectorArea is half the Newell normal: the area weighted unit normal
func VectorArea(pts []r3.Vec) r3.Vec {
	return r3.Scale(0.5, NewellNormal(pts))
}

// Area of a planar polygon in 3D
func Area(pts []r3.Vec) float64 {
	return r3.Norm(VectorArea(pts))
}

// UnitNormal returns the unit polygon normal, or the zero vector for
// degenerate polygons
func UnitNormal(pts []r3.Vec) r3.Vec {
	n := NewellNormal(pts)
	l := r3.Norm(n)
	if l == 0 {
		return r3.Vec{}
	}
	return r3.Scale(1/l, n)
}

// Average of the points
func Average(pts []r3.Vec) (c r3.Vec) {
	if len(pts) == 0 {
		return
	}
	for _, p := range pts {
		c = r3.Add(c, p)
	}
	return r3.Scale(1/float64(len(pts)), c)
}

// Distance between two points
func Distance(a, b r3.Vec) float64 {
	return r3.Norm(r3.Sub(a, b))
}

// SamePoint reports whether a and b coincide within tol in every component
func SamePoint(a, b r3.Vec, tol float64) bool {
	return scalar.EqualWithinAbs(a.X, b.X, tol) &&
		scalar.EqualWithinAbs(a.Y, b.Y, tol) &&
		scalar.EqualWithinAbs(a.Z, b.Z, tol)
}

// PointOnSegment reports whether p lies on segment [a,b] within tol and
// returns the segment parameter of its projection
func PointOnSegment(p, a, b r3.Vec, tol float64) (onSegment bool, param float64) {
	ab := r3.Sub(b, a)
	l2 := r3.Norm2(ab)
	if l2 == 0 {
		return SamePoint(p, a, tol), 0
	}
	param = r3.Dot(r3.Sub(p, a), ab) / l2
	l := math.Sqrt(l2)
	if param*l < -tol || (param-1)*l > tol {
		return false, param
	}
	proj := r3.Add(a, r3.Scale(param, ab))
	return Distance(proj, p) <= tol, param
}

// SolveLinear3 solves the 3x3 system A x = b with gonum's LU based solver.
// A is given row major.
func SolveLinear3(A [9]float64, b r3.Vec) (x r3.Vec, err error) {
	var (
		am  = mat.NewDense(3, 3, A[:])
		bv  = mat.NewVecDense(3, []float64{b.X, b.Y, b.Z})
		sol mat.VecDense
	)
	if err = sol.SolveVec(am, bv); err != nil {
		return x, fmt.Errorf("singular 3x3 system: %w", err)
	}
	return r3.Vec{X: sol.AtVec(0), Y: sol.AtVec(1), Z: sol.AtVec(2)}, nil
}

// TetVolume returns the signed volume of the tetrahedron (a,b,c,d)
func TetVolume(a, b, c, d r3.Vec) float64 {
	return r3.Dot(r3.Sub(b, a), r3.Cross(r3.Sub(c, a), r3.Sub(d, a))) / 6.
}
