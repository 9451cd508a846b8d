package cut

import (
	"fmt"
	"math"

	"github.com/notargets/DGCut/geometry"
	"gonum.org/v1/gonum/spatial/r3"
)

const rayTol = 1.e-12

// rayDirections are tried in turn until a ray misses every triangle edge
var rayDirections = func() []r3.Vec {
	dirs := []r3.Vec{
		{X: 1, Y: 0.31, Z: 0.17},
		{X: -1, Y: 0.23, Z: 0.29},
		{X: 0.19, Y: 1, Z: 0.37},
		{X: 0.27, Y: -1, Z: 0.13},
		{X: 0.21, Y: 0.33, Z: 1},
		{X: 0.39, Y: 0.11, Z: -1},
		{X: 0.61, Y: -0.53, Z: 0.59},
		{X: -0.47, Y: -0.71, Z: -0.52},
	}
	for i := range dirs {
		dirs[i] = r3.Unit(dirs[i])
	}
	return dirs
}()

// insideClosedSurface is the ray parity test against the triangles of a
// closed surface
func insideClosedSurface(x r3.Vec, tris [][3]r3.Vec) (bool, error) {
	for _, dir := range rayDirections {
		var (
			crossings int
			ambiguous bool
		)
		for _, t := range tris {
			hit, amb := geometry.RayCrossesTriangle(x, dir, t[0], t[1], t[2], rayTol)
			if amb {
				ambiguous = true
				break
			}
			if hit {
				crossings++
			}
		}
		if !ambiguous {
			return crossings%2 == 1, nil
		}
	}
	return false, fmt.Errorf("no unambiguous ray from (%g, %g, %g)", x.X, x.Y, x.Z)
}

// sideTriangle is an interface triangle with the normal of its cut side
type sideTriangle struct {
	tri    [3]r3.Vec
	normal r3.Vec
}

// positionByRay classifies x from the nearest interface crossing of a ray:
// leaving through the back of the interface means x is inside. Rays that
// hit nothing leave x undecided.
func positionByRay(x r3.Vec, tris []sideTriangle) Position {
	for _, dir := range rayDirections {
		var (
			nearest   = math.Inf(1)
			pos       = Undecided
			ambiguous bool
		)
		for _, t := range tris {
			hit, amb := geometry.RayCrossesTriangle(x, dir, t.tri[0], t.tri[1], t.tri[2], rayTol)
			if amb {
				ambiguous = true
				break
			}
			if !hit {
				continue
			}
			d := r3.Dot(dir, t.normal)
			s := r3.Dot(r3.Sub(t.tri[0], x), t.normal) / d
			if s < nearest {
				nearest = s
				if d > 0 {
					pos = Inside
				} else {
					pos = Outside
				}
			}
		}
		if !ambiguous && pos != Undecided {
			return pos
		}
	}
	return Undecided
}
