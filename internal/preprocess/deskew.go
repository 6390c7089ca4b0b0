/**
 * Deskew
 *
 * Estimates the dominant text angle from the minimum-area bounding rectangle
 * of the foreground pixels (convex hull + rotating calipers), normalizes it
 * to (-45, 45] degrees, and rotates the image to correct it. Rotation only
 * happens when the magnitude exceeds 0.5 degrees; sampling is bilinear with
 * replicated borders so no content is lost at the edges.
 */

package preprocess

import (
	"image"
	"math"
	"sort"
)

const (
	// Minimum foreground pixels needed for a meaningful skew estimate.
	minForegroundPixels = 10

	// Skew below this magnitude (degrees) is left alone.
	skewThresholdDegrees = 0.5
)

type point struct {
	x, y int
}

// deskew estimates and corrects image skew. Too little foreground makes the
// estimate meaningless; the image is then returned unchanged.
func deskew(img image.Image) (image.Image, error) {
	src, err := requireGray(img)
	if err != nil {
		return nil, err
	}

	extremes, count := foregroundExtremes(src)
	if count < minForegroundPixels {
		return src, nil
	}

	hull := convexHull(extremes)
	if len(hull) < 3 {
		return src, nil
	}

	angle := normalizeAngle(minAreaRectAngle(hull))
	if math.Abs(angle) <= skewThresholdDegrees {
		return src, nil
	}

	return rotate(src, -angle), nil
}

// foregroundExtremes collects the leftmost and rightmost foreground pixel of
// every row, plus the total foreground count. The per-row extremes are a
// superset of the convex hull vertices, which keeps the hull input small on
// large images.
func foregroundExtremes(src *image.Gray) ([]point, int) {
	b := src.Bounds()
	points := make([]point, 0, 2*b.Dy())
	count := 0

	for y := b.Min.Y; y < b.Max.Y; y++ {
		minX, maxX := -1, -1
		for x := b.Min.X; x < b.Max.X; x++ {
			if src.GrayAt(x, y).Y > 0 {
				count++
				if minX < 0 {
					minX = x
				}
				maxX = x
			}
		}
		if minX >= 0 {
			points = append(points, point{minX, y})
			if maxX != minX {
				points = append(points, point{maxX, y})
			}
		}
	}
	return points, count
}

// convexHull computes the hull with Andrew's monotone chain, returned in
// counter-clockwise order without the repeated first point.
func convexHull(points []point) []point {
	if len(points) <= 2 {
		return points
	}

	pts := append([]point(nil), points...)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].x != pts[j].x {
			return pts[i].x < pts[j].x
		}
		return pts[i].y < pts[j].y
	})

	cross := func(o, a, b point) int {
		return (a.x-o.x)*(b.y-o.y) - (a.y-o.y)*(b.x-o.x)
	}

	var lower []point
	for _, p := range pts {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], p) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, p)
	}

	var upper []point
	for i := len(pts) - 1; i >= 0; i-- {
		p := pts[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], p) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, p)
	}

	return append(lower[:len(lower)-1], upper[:len(upper)-1]...)
}

// minAreaRectAngle finds the rotation (degrees) of the minimum-area bounding
// rectangle over the hull by testing a rectangle aligned with every hull
// edge.
func minAreaRectAngle(hull []point) float64 {
	bestArea := math.Inf(1)
	bestAngle := 0.0

	for i := 0; i < len(hull); i++ {
		j := (i + 1) % len(hull)
		ex := float64(hull[j].x - hull[i].x)
		ey := float64(hull[j].y - hull[i].y)
		length := math.Hypot(ex, ey)
		if length == 0 {
			continue
		}
		ux, uy := ex/length, ey/length

		minU, maxU := math.Inf(1), math.Inf(-1)
		minV, maxV := math.Inf(1), math.Inf(-1)
		for _, p := range hull {
			// Project onto the edge direction and its normal.
			u := ux*float64(p.x) + uy*float64(p.y)
			v := -uy*float64(p.x) + ux*float64(p.y)
			minU = math.Min(minU, u)
			maxU = math.Max(maxU, u)
			minV = math.Min(minV, v)
			maxV = math.Max(maxV, v)
		}

		area := (maxU - minU) * (maxV - minV)
		if area < bestArea {
			bestArea = area
			bestAngle = math.Atan2(ey, ex) * 180 / math.Pi
		}
	}
	return bestAngle
}

// normalizeAngle folds an angle into (-45, 45] degrees; rectangle axes repeat
// every 90 degrees so this picks the smallest equivalent tilt.
func normalizeAngle(degrees float64) float64 {
	for degrees > 45 {
		degrees -= 90
	}
	for degrees <= -45 {
		degrees += 90
	}
	return degrees
}

// rotate rotates around the image center by the given angle in degrees,
// sampling bilinearly with replicated borders.
func rotate(src *image.Gray, degrees float64) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(b)

	rad := degrees * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	cx := float64(b.Min.X) + float64(b.Dx())/2
	cy := float64(b.Min.Y) + float64(b.Dy())/2

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			// Inverse mapping: where in the source does this pixel come from.
			dx := float64(x) - cx
			dy := float64(y) - cy
			sx := cos*dx + sin*dy + cx
			sy := -sin*dx + cos*dy + cy
			dst.SetGray(x, y, grayColor(bilinearSample(src, sx, sy)))
		}
	}
	return dst
}

// bilinearSample interpolates the four neighbors of a fractional coordinate,
// clamping out-of-bounds reads to the border.
func bilinearSample(src *image.Gray, x, y float64) uint8 {
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	fx := x - float64(x0)
	fy := y - float64(y0)

	v00 := float64(grayAt(src, x0, y0))
	v10 := float64(grayAt(src, x0+1, y0))
	v01 := float64(grayAt(src, x0, y0+1))
	v11 := float64(grayAt(src, x0+1, y0+1))

	top := v00*(1-fx) + v10*fx
	bottom := v01*(1-fx) + v11*fx
	return uint8(top*(1-fy) + bottom*fy + 0.5)
}
