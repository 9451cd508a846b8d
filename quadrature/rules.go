package quadrature

import (
	"fmt"

	"github.com/notargets/DGCut/geometry"
	"gonum.org/v1/gonum/spatial/r3"
)

// Rule is a quadrature rule on a reference domain. Unused coordinates of
// Points are zero.
type Rule struct {
	Points  [][3]float64
	Weights []float64
}

func (r Rule) NumPoints() int { return len(r.Weights) }

// SurfaceRule is a rule mapped onto a planar 3D cell; Weights include the
// area scaling
type SurfaceRule struct {
	Points  []r3.Vec
	Weights []float64
	Normal  r3.Vec // Unit normal of the cell
}

// Append concatenates another rule; normals are kept per cell by callers
func (sr *SurfaceRule) Append(o SurfaceRule) {
	sr.Points = append(sr.Points, o.Points...)
	sr.Weights = append(sr.Weights, o.Weights...)
}

func pointsForDegree(degree int) (int, error) {
	if degree < 0 {
		return 0, fmt.Errorf("negative quadrature degree %d", degree)
	}
	return degree/2 + 1, nil
}

// GaussLegendre returns the n point Gauss-Legendre rule on [-1,1], exact for
// polynomials of degree 2n-1
func GaussLegendre(n int) (x, w []float64, err error) {
	if n < 1 {
		return nil, nil, fmt.Errorf("gauss-legendre needs at least one point, got %d", n)
	}
	return JacobiGQ(0, 0, n-1)
}

// LineRule is exact to the given polynomial degree on [-1,1]
func LineRule(degree int) (Rule, error) {
	n, err := pointsForDegree(degree)
	if err != nil {
		return Rule{}, err
	}
	x, w, err := GaussLegendre(n)
	if err != nil {
		return Rule{}, err
	}
	rule := Rule{Points: make([][3]float64, n), Weights: w}
	for i := range x {
		rule.Points[i][0] = x[i]
	}
	return rule, nil
}

// QuadRule is the tensor Gauss-Legendre rule on [-1,1]^2
func QuadRule(degree int) (Rule, error) {
	n, err := pointsForDegree(degree)
	if err != nil {
		return Rule{}, err
	}
	x, w, err := GaussLegendre(n)
	if err != nil {
		return Rule{}, err
	}
	var rule Rule
	for j := range x {
		for i := range x {
			rule.Points = append(rule.Points, [3]float64{x[i], x[j], 0})
			rule.Weights = append(rule.Weights, w[i]*w[j])
		}
	}
	return rule, nil
}

// TriangleRule integrates over the reference triangle (0,0),(1,0),(0,1)
// using collapsed coordinates: Gauss-Legendre along the collapsed direction
// and Gauss-Jacobi(1,0) across it to absorb the Duffy Jacobian
func TriangleRule(degree int) (Rule, error) {
	n, err := pointsForDegree(degree + 1)
	if err != nil {
		return Rule{}, err
	}
	a, wa, err := GaussLegendre(n)
	if err != nil {
		return Rule{}, err
	}
	b, wb, err := JacobiGQ(1, 0, n-1)
	if err != nil {
		return Rule{}, err
	}
	var rule Rule
	for j := range b {
		for i := range a {
			r := 0.25 * (1 + a[i]) * (1 - b[j])
			s := 0.5 * (1 + b[j])
			rule.Points = append(rule.Points, [3]float64{r, s, 0})
			rule.Weights = append(rule.Weights, 0.125*wa[i]*wb[j])
		}
	}
	return rule, nil
}

// MapTriangle maps a TriangleRule onto the 3D triangle (a,b,c)
func MapTriangle(a, b, c r3.Vec, rule Rule) SurfaceRule {
	var (
		e1, e2 = r3.Sub(b, a), r3.Sub(c, a)
		n      = r3.Cross(e1, e2)
		jac    = r3.Norm(n)
		sr     = SurfaceRule{
			Points:  make([]r3.Vec, rule.NumPoints()),
			Weights: make([]float64, rule.NumPoints()),
		}
	)
	if jac > 0 {
		sr.Normal = r3.Scale(1/jac, n)
	}
	for i, p := range rule.Points {
		sr.Points[i] = r3.Add(a, r3.Add(r3.Scale(p[0], e1), r3.Scale(p[1], e2)))
		sr.Weights[i] = rule.Weights[i] * jac
	}
	return sr
}

// MapQuad maps a QuadRule onto the planar 3D quadrilateral with corners
// x[0..3] through the bilinear map
func MapQuad(x [4]r3.Vec, rule Rule) SurfaceRule {
	sr := SurfaceRule{
		Points:  make([]r3.Vec, rule.NumPoints()),
		Weights: make([]float64, rule.NumPoints()),
		Normal:  geometry.UnitNormal(x[:]),
	}
	for i, p := range rule.Points {
		r, s := p[0], p[1]
		n := [4]float64{
			0.25 * (1 - r) * (1 - s), 0.25 * (1 + r) * (1 - s),
			0.25 * (1 + r) * (1 + s), 0.25 * (1 - r) * (1 + s),
		}
		dr := [4]float64{-0.25 * (1 - s), 0.25 * (1 - s), 0.25 * (1 + s), -0.25 * (1 + s)}
		ds := [4]float64{-0.25 * (1 - r), -0.25 * (1 + r), 0.25 * (1 + r), 0.25 * (1 - r)}
		var xp, tr, ts r3.Vec
		for k := 0; k < 4; k++ {
			xp = r3.Add(xp, r3.Scale(n[k], x[k]))
			tr = r3.Add(tr, r3.Scale(dr[k], x[k]))
			ts = r3.Add(ts, r3.Scale(ds[k], x[k]))
		}
		sr.Points[i] = xp
		sr.Weights[i] = rule.Weights[i] * r3.Norm(r3.Cross(tr, ts))
	}
	return sr
}
