package cut

import (
	"fmt"
	"io"
	"math"

	"github.com/notargets/DGCut/element"
	"github.com/notargets/DGCut/geometry"
	"github.com/notargets/DGCut/quadrature"
	"gonum.org/v1/gonum/spatial/r3"
)

// VolumeCell is one closed region of a cut element bounded by facets
type VolumeCell struct {
	ID       int
	Facets   []*Facet
	Position Position

	elem     *Element
	reversed []bool // Facet i is traversed against its orientation
	volume   float64
	centroid r3.Vec
}

// BoundaryCell is a tri3 or quad4 piece of the interface inside a volume
// cell, ordered so its normal is the interface normal
type BoundaryCell struct {
	Points  []r3.Vec
	Normal  r3.Vec
	Area    float64
	CutSide int
	Shape   element.ElementGeometry
}

// GaussPoint is an integration point on the interface
type GaussPoint struct {
	X      r3.Vec
	Local  [3]float64 // Element reference coordinates
	Weight float64
	Normal r3.Vec
}

func newVolumeCell(id int, e *Element, facets []*Facet) (*VolumeCell, error) {
	vc := &VolumeCell{ID: id, Facets: facets, elem: e}
	if err := vc.Orient(); err != nil {
		return nil, err
	}
	if err := vc.computeGeometry(); err != nil {
		return nil, err
	}
	return vc, nil
}

func (vc *VolumeCell) ElementID() int { return vc.elem.ID }

// Orient makes the facet orientation consistent and outward. Facets are
// walked breadth first across shared lines, neighbours must run through a
// shared line in opposite directions. The component holding element side
// facets (or the largest one) is the outer boundary and gets a positive
// volume, further components bound cavities and get negative volumes.
func (vc *VolumeCell) Orient() error {
	var (
		n      = len(vc.Facets)
		byLine = make(map[lineKey][]int)
		dir    = make([]map[lineKey]int, n)
		sign   = make([]int, n)
	)
	for i, f := range vc.Facets {
		dir[i] = make(map[lineKey]int)
		for _, s := range f.Segments() {
			k := keyOf(s[0], s[1])
			d := 1
			if s[0].id > s[1].id {
				d = -1
			}
			if _, ok := dir[i][k]; ok {
				dir[i][k] = 0
				continue
			}
			dir[i][k] = d
			byLine[k] = append(byLine[k], i)
		}
	}
	seeds := make([]int, 0, n)
	for i, f := range vc.Facets {
		if !f.IsCutFacet() {
			seeds = append(seeds, i)
		}
	}
	for i, f := range vc.Facets {
		if f.IsCutFacet() {
			seeds = append(seeds, i)
		}
	}

	type component struct {
		facets  []int
		hasSide bool
		volume  float64
	}
	var comps []component
	for _, seed := range seeds {
		if sign[seed] != 0 {
			continue
		}
		sign[seed] = 1
		var (
			queue = []int{seed}
			comp  component
		)
		for len(queue) > 0 {
			a := queue[0]
			queue = queue[1:]
			comp.facets = append(comp.facets, a)
			comp.hasSide = comp.hasSide || !vc.Facets[a].IsCutFacet()
			for k, da := range dir[a] {
				if da == 0 {
					continue
				}
				for _, b := range byLine[k] {
					if b == a || dir[b][k] == 0 {
						continue
					}
					want := -sign[a] * da * dir[b][k]
					switch {
					case sign[b] == 0:
						sign[b] = want
						queue = append(queue, b)
					case sign[b] != want:
						return fmt.Errorf("facets %d and %d cannot be oriented consistently",
							vc.Facets[a].ID, vc.Facets[b].ID)
					}
				}
			}
		}
		for _, i := range comp.facets {
			comp.volume += float64(sign[i]) * facetVolume(vc.Facets[i])
		}
		comps = append(comps, comp)
	}

	outer := -1
	for i, c := range comps {
		if c.hasSide {
			outer = i
			break
		}
	}
	if outer < 0 {
		for i, c := range comps {
			if outer < 0 || math.Abs(c.volume) > math.Abs(comps[outer].volume) {
				outer = i
			}
		}
	}
	for i, c := range comps {
		flip := (i == outer && c.volume < 0) || (i != outer && c.volume > 0)
		if flip && c.hasSide {
			return fmt.Errorf("element side facets enclose a negative volume %g", c.volume)
		}
		if flip {
			for _, f := range c.facets {
				sign[f] = -sign[f]
			}
		}
	}
	vc.reversed = make([]bool, n)
	for i := range sign {
		vc.reversed[i] = sign[i] < 0
	}
	return nil
}

// facetVolume is the divergence theorem contribution of a facet
func facetVolume(f *Facet) (v float64) {
	rings := append([][]*Point{f.Points}, f.Holes...)
	for _, ring := range rings {
		x := coords(ring)
		v += r3.Dot(x[0], geometry.VectorArea(x)) / 3.
	}
	return v
}

// OrientedCells returns the facet triangulations oriented outward
func (vc *VolumeCell) OrientedCells() ([][]r3.Vec, error) {
	var (
		out  [][]r3.Vec
		opts = vc.elem.opts.triangulation()
	)
	for i, f := range vc.Facets {
		cells, err := f.Triangulate(opts)
		if err != nil {
			return nil, err
		}
		for _, c := range cells {
			x := coords(c)
			if vc.reversed[i] {
				reverseVecs(x)
			}
			out = append(out, x)
		}
	}
	return out, nil
}

func reverseVecs(x []r3.Vec) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}

// computeGeometry decomposes the cell into tetrahedra spanned by a reference
// point and the triangulated facets
func (vc *VolumeCell) computeGeometry() error {
	cells, err := vc.OrientedCells()
	if err != nil {
		return err
	}
	var all []r3.Vec
	for _, c := range cells {
		all = append(all, c...)
	}
	var (
		ref = geometry.Average(all)
		vol float64
		sum r3.Vec
	)
	for _, c := range cells {
		for k := 1; k+1 < len(c); k++ {
			v := geometry.TetVolume(ref, c[0], c[k], c[k+1])
			vol += v
			tc := r3.Scale(0.25, r3.Add(r3.Add(ref, c[0]), r3.Add(c[k], c[k+1])))
			sum = r3.Add(sum, r3.Scale(v, tc))
		}
	}
	if vol <= 0 {
		return fmt.Errorf("non positive volume %g", vol)
	}
	vc.volume = vol
	vc.centroid = r3.Scale(1/vol, sum)
	return nil
}

func (vc *VolumeCell) Volume() float64 { return vc.volume }

func (vc *VolumeCell) Centroid() r3.Vec { return vc.centroid }

// IsCut reports whether the cell touches the interface
func (vc *VolumeCell) IsCut() bool {
	for _, f := range vc.Facets {
		if f.OnInterface() {
			return true
		}
	}
	return false
}

// findPosition weights the interface facets of the cell by area: where the
// interface normal leaves the cell, the cell lies behind the interface
func (vc *VolumeCell) findPosition() {
	var s float64
	for i, f := range vc.Facets {
		if !f.OnInterface() || f.CutSide == nil {
			continue
		}
		out := f.Normal()
		if vc.reversed[i] {
			out = r3.Scale(-1, out)
		}
		s += f.Area() * r3.Dot(out, f.InterfaceNormal())
	}
	switch {
	case s > 0:
		vc.Position = Inside
	case s < 0:
		vc.Position = Outside
	}
}

// spreadPosition hands the cell position to its side facets and to points
// not on the interface
func (vc *VolumeCell) spreadPosition() {
	for _, f := range vc.Facets {
		if f.OnInterface() {
			continue
		}
		f.Position = vc.Position
		for _, p := range f.AllPoints() {
			if p.Position != Oncutsurface {
				p.Position = vc.Position
			}
		}
	}
}

// BoundaryCells triangulates the interface facets of the cell
func (vc *VolumeCell) BoundaryCells() ([]BoundaryCell, error) {
	var (
		bcs  []BoundaryCell
		opts = vc.elem.opts.triangulation()
	)
	for _, f := range vc.Facets {
		if !f.OnInterface() || f.CutSide == nil {
			continue
		}
		cells, err := f.Triangulate(opts)
		if err != nil {
			return nil, err
		}
		flip := r3.Dot(f.Normal(), f.InterfaceNormal()) < 0
		for _, c := range cells {
			x := coords(c)
			if flip {
				reverseVecs(x)
			}
			shape := element.Tri
			if len(x) == 4 {
				shape = element.Rectangle
			}
			bcs = append(bcs, BoundaryCell{
				Points:  x,
				Normal:  geometry.UnitNormal(x),
				Area:    geometry.Area(x),
				CutSide: f.CutSide.ID,
				Shape:   shape,
			})
		}
	}
	return bcs, nil
}

// surfaceRule maps the reference rules onto a tri or quad cell
func surfaceRule(x []r3.Vec, tri, quad quadrature.Rule) (quadrature.SurfaceRule, error) {
	switch len(x) {
	case 3:
		return quadrature.MapTriangle(x[0], x[1], x[2], tri), nil
	case 4:
		return quadrature.MapQuad([4]r3.Vec{x[0], x[1], x[2], x[3]}, quad), nil
	default:
		return quadrature.SurfaceRule{}, fmt.Errorf("cell with %d corners", len(x))
	}
}

func rules(degree int) (tri, quad quadrature.Rule, err error) {
	if tri, err = quadrature.TriangleRule(degree); err != nil {
		return
	}
	quad, err = quadrature.QuadRule(degree)
	return
}

// BoundaryGaussPoints returns interface integration points exact for
// polynomials of the given degree
func (vc *VolumeCell) BoundaryGaussPoints(degree int) ([]GaussPoint, error) {
	tri, quad, err := rules(degree)
	if err != nil {
		return nil, err
	}
	bcs, err := vc.BoundaryCells()
	if err != nil {
		return nil, err
	}
	var gps []GaussPoint
	for _, bc := range bcs {
		sr, err := surfaceRule(bc.Points, tri, quad)
		if err != nil {
			return nil, err
		}
		for i, x := range sr.Points {
			rst, converged, err := vc.elem.Phys.LocalCoordinates(x)
			if err != nil {
				return nil, err
			}
			if !converged {
				return nil, fmt.Errorf("local coordinates of (%g, %g, %g) did not converge", x.X, x.Y, x.Z)
			}
			gps = append(gps, GaussPoint{X: x, Local: rst, Weight: sr.Weights[i], Normal: bc.Normal})
		}
	}
	return gps, nil
}

func (vc *VolumeCell) NumGaussPoints(degree int) (int, error) {
	gps, err := vc.BoundaryGaussPoints(degree)
	return len(gps), err
}

// IntegrateDivergence evaluates the volume integral of div F as the flux of
// F through the oriented cell boundary
func (vc *VolumeCell) IntegrateDivergence(F func(x r3.Vec) r3.Vec, degree int) (float64, error) {
	tri, quad, err := rules(degree)
	if err != nil {
		return 0, err
	}
	cells, err := vc.OrientedCells()
	if err != nil {
		return 0, err
	}
	var sum float64
	for _, c := range cells {
		sr, err := surfaceRule(c, tri, quad)
		if err != nil {
			return 0, err
		}
		n := geometry.UnitNormal(c)
		for i, x := range sr.Points {
			sum += sr.Weights[i] * r3.Dot(F(x), n)
		}
	}
	return sum, nil
}

func (vc *VolumeCell) Print(w io.Writer) {
	fmt.Fprintf(w, "volume cell %d of element %d: %v, volume %g, centroid (%g, %g, %g)\n",
		vc.ID, vc.elem.ID, vc.Position, vc.volume, vc.centroid.X, vc.centroid.Y, vc.centroid.Z)
	for i, f := range vc.Facets {
		mark := ""
		if vc.reversed[i] {
			mark = " (reversed)"
		}
		fmt.Fprintf(w, "  %v%s\n", f, mark)
	}
}
