package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Vec2 is a point in a plane Frame
type Vec2 = r2.Vec

// Orient2D is twice the signed area of triangle (a,b,c): positive when the
// triangle is counter clockwise
func Orient2D(a, b, c Vec2) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

// SignedArea2D of a closed polygon, positive for counter clockwise ordering
func SignedArea2D(pts []Vec2) (area float64) {
	np := len(pts)
	for i := 0; i < np; i++ {
		a, b := pts[i], pts[(i+1)%np]
		area += a.X*b.Y - b.X*a.Y
	}
	return 0.5 * area
}

// Scale2D is the diameter of the bounding box of the points, used to build
// scale relative tolerances
func Scale2D(pts []Vec2) float64 {
	if len(pts) == 0 {
		return 0
	}
	minX, maxX, minY, maxY := pts[0].X, pts[0].X, pts[0].Y, pts[0].Y
	for _, p := range pts[1:] {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	return math.Hypot(maxX-minX, maxY-minY)
}

// Same2D reports whether two points coincide within tol
func Same2D(a, b Vec2, tol float64) bool {
	return r2.Norm(r2.Sub(a, b)) <= tol
}

// PointInTriangle2D reports whether p lies inside or on the boundary of the
// counter clockwise triangle (a,b,c). areaTol is an absolute tolerance on the
// orientation determinants.
func PointInTriangle2D(p, a, b, c Vec2, areaTol float64) bool {
	return Orient2D(a, b, p) >= -areaTol &&
		Orient2D(b, c, p) >= -areaTol &&
		Orient2D(c, a, p) >= -areaTol
}

// PointInPolygon2D is the even-odd rule test. Points on the boundary may be
// reported either way.
func PointInPolygon2D(p Vec2, poly []Vec2) bool {
	var (
		inside bool
		np     = len(poly)
	)
	for i, j := 0, np-1; i < np; j, i = i, i+1 {
		a, b := poly[i], poly[j]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			x := (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y) + a.X
			if p.X < x {
				inside = !inside
			}
		}
	}
	return inside
}

// SegmentsCross2D reports a proper crossing of segments [a,b] and [c,d]:
// shared end points and touching do not count
func SegmentsCross2D(a, b, c, d Vec2, areaTol float64) bool {
	o1 := Orient2D(a, b, c)
	o2 := Orient2D(a, b, d)
	o3 := Orient2D(c, d, a)
	o4 := Orient2D(c, d, b)
	return ((o1 > areaTol && o2 < -areaTol) || (o1 < -areaTol && o2 > areaTol)) &&
		((o3 > areaTol && o4 < -areaTol) || (o3 < -areaTol && o4 > areaTol))
}

// Angle2D is the polar angle of vector d in [0, 2π)
func Angle2D(d Vec2) float64 {
	a := math.Atan2(d.Y, d.X)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}
