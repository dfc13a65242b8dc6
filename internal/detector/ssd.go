package detector

import (
	"math"

	"github.com/kozaktomas/face-recognizer/internal/facematch"
)

// ssdRowSize is the number of values per SSD output row:
// [image_id, label, confidence, x0, y0, x1, y1] with relative corner coordinates.
const ssdRowSize = 7

// DecodeSSD turns the flattened 1x1xNx7 output of an SSD face detector into
// detections on a width x height frame. Rows below floor or with a non-finite
// confidence are ignored, boxes are rescaled to the frame and clamped, and boxes
// that clamp to zero area are dropped.
func DecodeSSD(raw []float32, width, height int, floor float64) []Detection {
	if width <= 0 || height <= 0 {
		return nil
	}

	rows := len(raw) / ssdRowSize
	result := make([]Detection, 0, rows)
	for i := range rows {
		row := raw[i*ssdRowSize : (i+1)*ssdRowSize]

		conf := float64(row[2])
		if math.IsNaN(conf) || conf < floor {
			continue
		}
		conf = min(conf, 1)

		box := facematch.BoxFromRelative(
			float64(row[3]), float64(row[4]), float64(row[5]), float64(row[6]),
			width, height,
		)
		if box.Empty() {
			continue
		}
		result = append(result, Detection{Box: box, Confidence: conf})
	}
	return result
}
