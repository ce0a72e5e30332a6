// Package orient models sensor mounting orientation as a flip/flip/rotate
// triple and applies it to axis names and axis-aligned data.
package orient

import (
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Flags is a decomposed orientation. Rotate means a 90° clockwise rotation
// applied after the flips.
type Flags struct {
	FlipH  bool
	FlipV  bool
	Rotate bool
}

// Parse reads a producer orientation string such as "Normal",
// "FlipHorizontally", "Rotate90" or combined forms like
// "FlipHorizontallyRotate90".
func Parse(s string) Flags {
	return Flags{
		FlipH:  strings.Contains(s, "Horiz"),
		FlipV:  strings.Contains(s, "Vert"),
		Rotate: strings.Contains(s, "Rot"),
	}
}

func (f Flags) IsIdentity() bool {
	return !f.FlipH && !f.FlipV && !f.Rotate
}

func (f Flags) String() string {
	if f.IsIdentity() {
		return "Normal"
	}
	var parts []string
	if f.FlipH {
		parts = append(parts, "FlipHorizontally")
	}
	if f.FlipV {
		parts = append(parts, "FlipVertically")
	}
	if f.Rotate {
		parts = append(parts, "Rotate90")
	}
	return strings.Join(parts, "")
}

// ApplyNames maps logical axis names through the orientation: flips leave
// names in place, rotation swaps them.
func (f Flags) ApplyNames(x, y string) (string, string) {
	if f.Rotate {
		return y, x
	}
	return x, y
}

// ApplyAxes transforms per-axis coordinate vectors. FlipH reverses the x
// coordinates, FlipV the y coordinates; rotation then exchanges the axes,
// reversing the one that becomes horizontal. The slices are modified in
// place and the (x, y) pair after transformation is returned.
func (f Flags) ApplyAxes(x, y []float64) ([]float64, []float64) {
	if f.FlipH {
		floats.Reverse(x)
	}
	if f.FlipV {
		floats.Reverse(y)
	}
	if f.Rotate {
		floats.Reverse(y)
		return y, x
	}
	return x, y
}

// Mapping composes the transform that carries data stored under `from`
// into the `to` frame. Flips cancel pairwise; a rotation is needed exactly
// when the two disagree.
func Mapping(from, to Flags) Flags {
	return Flags{
		FlipH:  from.FlipH != to.FlipH,
		FlipV:  from.FlipV != to.FlipV,
		Rotate: from.Rotate != to.Rotate,
	}
}
