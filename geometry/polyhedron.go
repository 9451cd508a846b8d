package geometry

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// PolyhedronVolume is the signed volume enclosed by consistently oriented
// planar faces (divergence theorem: V = 1/3 Σ x_f·S_f). Outward oriented
// faces give a positive volume.
func PolyhedronVolume(faces [][]r3.Vec) (vol float64) {
	for _, f := range faces {
		if len(f) < 3 {
			continue
		}
		vol += r3.Dot(f[0], VectorArea(f))
	}
	return vol / 3.
}

// RayCrossesTriangle reports whether the ray origin + s*dir, s > 0, crosses
// triangle (a,b,c) (Möller–Trumbore). Hits on the triangle boundary are
// reported as ambiguous so callers can retry with another direction.
func RayCrossesTriangle(origin, dir, a, b, c r3.Vec, tol float64) (hit, ambiguous bool) {
	e1, e2 := r3.Sub(b, a), r3.Sub(c, a)
	p := r3.Cross(dir, e2)
	det := r3.Dot(e1, p)
	scale := r3.Norm(e1) * r3.Norm(e2) * r3.Norm(dir)
	if scale == 0 {
		return false, false
	}
	if det*det <= (tol*scale)*(tol*scale) {
		// ray parallel to the triangle plane
		return false, false
	}
	inv := 1 / det
	s := r3.Sub(origin, a)
	u := r3.Dot(s, p) * inv
	q := r3.Cross(s, e1)
	v := r3.Dot(dir, q) * inv
	w := r3.Dot(e2, q) * inv
	const edgeTol = 1.e-9
	if u < -edgeTol || v < -edgeTol || u+v > 1+edgeTol || w <= 0 {
		return false, false
	}
	if u < edgeTol || v < edgeTol || u+v > 1-edgeTol {
		return false, true
	}
	return true, false
}
