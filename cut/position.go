package cut

import (
	"fmt"
)

// Position of a point, facet or volume cell relative to the interface. The
// interface normal points to the outside.
type Position uint8

const (
	Undecided Position = iota
	Oncutsurface
	Inside
	Outside
)

var positionNames = [...]string{"undecided", "oncutsurface", "inside", "outside"}

func (p Position) String() string {
	if int(p) < len(positionNames) {
		return positionNames[p]
	}
	return fmt.Sprintf("Position(%d)", int(p))
}

func (p Position) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Position) UnmarshalText(text []byte) error {
	for i, name := range positionNames {
		if name == string(text) {
			*p = Position(i)
			return nil
		}
	}
	return fmt.Errorf("unknown position %q", text)
}

// Decided reports whether p is Inside or Outside
func (p Position) Decided() bool { return p == Inside || p == Outside }

// mergePosition combines two views on the same node. A point on the cut
// surface stays there, undecided views give way, opposite sides conflict.
func mergePosition(node int, have, next Position) (Position, error) {
	switch {
	case have == next:
		return have, nil
	case have == Oncutsurface || next == Oncutsurface:
		return Oncutsurface, nil
	case have == Undecided:
		return next, nil
	case next == Undecided:
		return have, nil
	default:
		return Undecided, fmt.Errorf("%w: node %d is %v and %v", ErrConflictingPosition, node, have, next)
	}
}
