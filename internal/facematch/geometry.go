package facematch

import (
	"encoding/json"
	"fmt"
	"image"
	"math"
)

// Box is a face bounding box in pixel coordinates, [X0,X1) x [Y0,Y1).
// It serializes as [x0, y0, x1, y1].
type Box struct {
	X0, Y0, X1, Y1 int
}

// Width returns the box width (may be negative for inverted boxes).
func (b Box) Width() int { return b.X1 - b.X0 }

// Height returns the box height (may be negative for inverted boxes).
func (b Box) Height() int { return b.Y1 - b.Y0 }

// Empty reports whether the box has no area.
func (b Box) Empty() bool {
	return b.X1 <= b.X0 || b.Y1 <= b.Y0
}

// Area returns the box area, 0 for empty boxes.
func (b Box) Area() int {
	if b.Empty() {
		return 0
	}
	return b.Width() * b.Height()
}

// Rect converts the box to an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X0, b.Y0, b.X1, b.Y1)
}

// Clamp limits the box to [0,width] x [0,height].
func (b Box) Clamp(width, height int) Box {
	return Box{
		X0: clampInt(b.X0, 0, width),
		Y0: clampInt(b.Y0, 0, height),
		X1: clampInt(b.X1, 0, width),
		Y1: clampInt(b.Y1, 0, height),
	}
}

// BoxFromRelative converts relative [0,1] corner coordinates into a pixel box on a
// width x height frame, truncating toward zero and clamping to the frame.
// Non-finite coordinates produce an empty box.
func BoxFromRelative(x0, y0, x1, y1 float64, width, height int) Box {
	for _, v := range []float64{x0, y0, x1, y1} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Box{}
		}
	}
	w, h := float64(width), float64(height)
	raw := Box{
		X0: truncate(x0 * w),
		Y0: truncate(y0 * h),
		X1: truncate(x1 * w),
		Y1: truncate(y1 * h),
	}
	return raw.Clamp(width, height)
}

// MarshalJSON encodes the box as [x0, y0, x1, y1].
func (b Box) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]int{b.X0, b.Y0, b.X1, b.Y1})
}

// UnmarshalJSON decodes a [x0, y0, x1, y1] array.
func (b *Box) UnmarshalJSON(data []byte) error {
	var v []int
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if len(v) != 4 {
		return fmt.Errorf("box needs 4 coordinates, got %d", len(v))
	}
	*b = Box{X0: v[0], Y0: v[1], X1: v[2], Y1: v[3]}
	return nil
}

// String formats the box for logs and CLI output.
func (b Box) String() string {
	return fmt.Sprintf("[%d,%d,%d,%d]", b.X0, b.Y0, b.X1, b.Y1)
}

// truncate converts toward zero, saturating far outside the int32 range so huge
// model outputs cannot overflow before clamping.
func truncate(v float64) int {
	const limit = 1 << 30
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return int(v)
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
