package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Plane is the set of points x with Normal·x = D, Normal being unit length
type Plane struct {
	Normal r3.Vec
	D      float64
}

// PlaneFromPolygon builds the plane through a polygon using its Newell normal
// and the vertex average as the reference point
func PlaneFromPolygon(pts []r3.Vec) (pl Plane, ok bool) {
	n := UnitNormal(pts)
	if r3.Norm2(n) == 0 {
		return pl, false
	}
	return Plane{Normal: n, D: r3.Dot(n, Average(pts))}, true
}

// SignedDistance is positive on the side the normal points to
func (pl Plane) SignedDistance(p r3.Vec) float64 {
	return r3.Dot(pl.Normal, p) - pl.D
}

// Side classifies p as -1 (below), 0 (on) or +1 (above) within tol
func (pl Plane) Side(p r3.Vec, tol float64) int {
	d := pl.SignedDistance(p)
	switch {
	case d > tol:
		return 1
	case d < -tol:
		return -1
	default:
		return 0
	}
}

// IntersectSegment returns the point where segment [a,b] crosses the plane.
// Segments lying in the plane or not reaching it report ok=false.
func (pl Plane) IntersectSegment(a, b r3.Vec, tol float64) (x r3.Vec, ok bool) {
	da, db := pl.SignedDistance(a), pl.SignedDistance(b)
	if math.Abs(da) <= tol && math.Abs(db) <= tol {
		return x, false
	}
	if (da > tol && db > tol) || (da < -tol && db < -tol) {
		return x, false
	}
	if math.Abs(da) <= tol {
		return a, true
	}
	if math.Abs(db) <= tol {
		return b, true
	}
	t := da / (da - db)
	return r3.Add(a, r3.Scale(t, r3.Sub(b, a))), true
}

// Coplanar reports whether every point lies within tol of the plane
func (pl Plane) Coplanar(pts []r3.Vec, tol float64) bool {
	for _, p := range pts {
		if math.Abs(pl.SignedDistance(p)) > tol {
			return false
		}
	}
	return true
}

// Parallel reports whether two planes have (anti)parallel normals
func (pl Plane) Parallel(o Plane) bool {
	return math.Abs(math.Abs(r3.Dot(pl.Normal, o.Normal))-1) <= AngleTol
}

// Frame is a right handed orthonormal frame on a plane: U and V span the
// plane and N = U × V is the plane normal
type Frame struct {
	Origin  r3.Vec
	U, V, N r3.Vec
}

// NewFrame builds a frame with the given normal. The in plane axis U is taken
// from the coordinate axis least aligned with the normal.
func NewFrame(origin, normal r3.Vec) Frame {
	n := r3.Unit(normal)
	axis := r3.Vec{X: 1}
	ax, ay, az := math.Abs(n.X), math.Abs(n.Y), math.Abs(n.Z)
	switch {
	case ay <= ax && ay <= az:
		axis = r3.Vec{Y: 1}
	case az <= ax && az <= ay:
		axis = r3.Vec{Z: 1}
	}
	u := r3.Unit(r3.Sub(axis, r3.Scale(r3.Dot(axis, n), n)))
	v := r3.Cross(n, u)
	return Frame{Origin: origin, U: u, V: v, N: n}
}

// Project a point into frame coordinates
func (f Frame) Project(p r3.Vec) Vec2 {
	d := r3.Sub(p, f.Origin)
	return Vec2{X: r3.Dot(d, f.U), Y: r3.Dot(d, f.V)}
}

// ProjectAll projects a list of points
func (f Frame) ProjectAll(pts []r3.Vec) []Vec2 {
	out := make([]Vec2, len(pts))
	for i, p := range pts {
		out[i] = f.Project(p)
	}
	return out
}

// Lift maps frame coordinates back to 3D
func (f Frame) Lift(q Vec2) r3.Vec {
	return r3.Add(f.Origin, r3.Add(r3.Scale(q.X, f.U), r3.Scale(q.Y, f.V)))
}

// BoundingBox is an axis aligned box
type BoundingBox struct {
	Min, Max r3.Vec
	empty    bool
}

// NewBoundingBox returns the box enclosing pts
func NewBoundingBox(pts ...r3.Vec) (bb BoundingBox) {
	bb.empty = true
	for _, p := range pts {
		bb.Add(p)
	}
	return
}

// Add grows the box to contain p
func (bb *BoundingBox) Add(p r3.Vec) {
	if bb.empty {
		bb.Min, bb.Max = p, p
		bb.empty = false
		return
	}
	bb.Min = r3.Vec{X: math.Min(bb.Min.X, p.X), Y: math.Min(bb.Min.Y, p.Y), Z: math.Min(bb.Min.Z, p.Z)}
	bb.Max = r3.Vec{X: math.Max(bb.Max.X, p.X), Y: math.Max(bb.Max.Y, p.Y), Z: math.Max(bb.Max.Z, p.Z)}
}

// Overlaps reports whether the two boxes intersect after inflating by tol
func (bb BoundingBox) Overlaps(o BoundingBox, tol float64) bool {
	if bb.empty || o.empty {
		return false
	}
	return bb.Min.X <= o.Max.X+tol && o.Min.X <= bb.Max.X+tol &&
		bb.Min.Y <= o.Max.Y+tol && o.Min.Y <= bb.Max.Y+tol &&
		bb.Min.Z <= o.Max.Z+tol && o.Min.Z <= bb.Max.Z+tol
}

// Contains reports whether p lies in the box inflated by tol
func (bb BoundingBox) Contains(p r3.Vec, tol float64) bool {
	if bb.empty {
		return false
	}
	return p.X >= bb.Min.X-tol && p.X <= bb.Max.X+tol &&
		p.Y >= bb.Min.Y-tol && p.Y <= bb.Max.Y+tol &&
		p.Z >= bb.Min.Z-tol && p.Z <= bb.Max.Z+tol
}

// Diagonal length of the box
func (bb BoundingBox) Diagonal() float64 {
	if bb.empty {
		return 0
	}
	return Distance(bb.Min, bb.Max)
}
