package cut

import (
	"fmt"

	"github.com/notargets/DGCut/partitions"
	"github.com/notargets/DGCut/triangulate"
)

// Options configures the cut. The mapstructure tags are the keys of the
// "cut" section of a configuration file.
type Options struct {
	// Point merge distance relative to the element diagonal
	PointTolerance float64 `mapstructure:"point_tolerance" yaml:"point_tolerance"`
	// Relative volume conservation tolerance
	VolumeTolerance float64 `mapstructure:"volume_tolerance" yaml:"volume_tolerance"`
	// Allow quad4 integration cells, tri3 only otherwise
	GenQuad4 bool `mapstructure:"gen_quad4" yaml:"gen_quad4"`
	// Split quad4 cut sides into two tri3
	SplitCutSides bool `mapstructure:"split_cut_sides" yaml:"split_cut_sides"`
	// Drop collinear facet corners when clipping ears
	DeleteInlinePoints bool `mapstructure:"delete_inline_points" yaml:"delete_inline_points"`
	// Propagate positions to elements without cut facets
	FindPositions bool `mapstructure:"find_positions" yaml:"find_positions"`
	CheckVolume   bool `mapstructure:"check_volume" yaml:"check_volume"`
	// Abort on the first failed element
	FailFast bool `mapstructure:"fail_fast" yaml:"fail_fast"`
	Workers  int  `mapstructure:"workers" yaml:"workers"`
	// block, roundrobin or graph
	Strategy    string `mapstructure:"strategy" yaml:"strategy"`
	GaussDegree int    `mapstructure:"gauss_degree" yaml:"gauss_degree"`
}

// DefaultOptions mirrors the defaults used for cut tests
func DefaultOptions() Options {
	return Options{
		PointTolerance:  1.e-10,
		VolumeTolerance: 1.e-8,
		GenQuad4:        true,
		SplitCutSides:   true,
		FindPositions:   true,
		CheckVolume:     true,
		Workers:         4,
		Strategy:        partitions.GraphPartition.String(),
		GaussDegree:     4,
	}
}

// Validate checks option ranges
func (o Options) Validate() error {
	if o.PointTolerance <= 0 || o.PointTolerance >= 1.e-2 {
		return fmt.Errorf("point tolerance %g out of range (0, 1e-2)", o.PointTolerance)
	}
	if o.CheckVolume && o.VolumeTolerance <= 0 {
		return fmt.Errorf("volume tolerance must be positive, got %g", o.VolumeTolerance)
	}
	if o.Workers < 1 {
		return fmt.Errorf("invalid worker count %d", o.Workers)
	}
	if o.GaussDegree < 0 {
		return fmt.Errorf("negative gauss degree %d", o.GaussDegree)
	}
	if _, err := partitions.ParseStrategy(o.Strategy); err != nil {
		return err
	}
	return nil
}

func (o Options) triangulation() triangulate.Options {
	return triangulate.Options{TriOnly: !o.GenQuad4, DeleteInlinePoints: o.DeleteInlinePoints}
}
