/**
 * Image Preprocessor
 *
 * Applies a fixed, configurable chain of transforms to maximize OCR
 * legibility: grayscale -> upscale -> denoise -> deskew -> binarize. The
 * order never changes; switches only decide which steps run.
 *
 * Failure policy: a step that cannot be applied (e.g. a gray-only filter on a
 * color image when grayscale was disabled) is logged and skipped, and the
 * image passes through unmodified. Preprocessing never aborts the pipeline.
 */

package preprocess

import (
	"fmt"
	"image"
	"image/color"
	"log"
	"math"

	xdraw "golang.org/x/image/draw"
)

// Options holds the five independent preprocessing switches.
type Options struct {
	Grayscale bool `json:"grayscale"`
	Denoise   bool `json:"denoise"`
	Deskew    bool `json:"deskew"`
	Upscale   bool `json:"upscale"`
	Binarize  bool `json:"binarize"`
}

// DefaultOptions enables every step.
func DefaultOptions() Options {
	return Options{
		Grayscale: true,
		Denoise:   true,
		Deskew:    true,
		Upscale:   true,
		Binarize:  true,
	}
}

const (
	upscaleFactor = 2

	// 3x3 window for the median pass.
	medianRadius = 1

	// Bilateral smoothing parameters, 9-pixel diameter.
	bilateralRadius     = 4
	bilateralSigmaColor = 75.0
	bilateralSigmaSpace = 75.0

	// Adaptive threshold: 11x11 Gaussian-weighted neighborhood minus C.
	adaptiveBlockSize = 11
	adaptiveC         = 2
)

// Run applies the enabled transforms in the fixed order and returns the
// processed image together with the cumulative linear scale factor applied
// to it (2.0 when upscaling ran, otherwise 1.0). Callers use the factor to
// map OCR coordinates back to the original image.
func Run(img image.Image, opts Options) (image.Image, float64) {
	processed := img
	scale := 1.0

	if opts.Grayscale {
		processed = toGray(processed)
	}

	if opts.Upscale {
		processed = upscale(processed, upscaleFactor)
		scale *= upscaleFactor
	}

	if opts.Denoise {
		if out, err := denoise(processed); err != nil {
			log.Printf("preprocess: denoise skipped: %v", err)
		} else {
			processed = out
		}
	}

	if opts.Deskew {
		if out, err := deskew(processed); err != nil {
			log.Printf("preprocess: deskew skipped: %v", err)
		} else {
			processed = out
		}
	}

	if opts.Binarize {
		if out, err := binarize(processed); err != nil {
			log.Printf("preprocess: binarize skipped: %v", err)
		} else {
			processed = out
		}
	}

	return processed, scale
}

// toGray converts any image to 8-bit grayscale.
func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gray.Set(x, y, img.At(x, y))
		}
	}
	return gray
}

// upscale resizes by an integer factor using Catmull-Rom resampling, the
// cubic interpolator from golang.org/x/image.
func upscale(img image.Image, factor int) image.Image {
	b := img.Bounds()
	rect := image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor)

	var dst xdraw.Image
	if _, ok := img.(*image.Gray); ok {
		dst = image.NewGray(rect)
	} else {
		dst = image.NewRGBA(rect)
	}

	xdraw.CatmullRom.Scale(dst, rect, img, b, xdraw.Src, nil)
	return dst
}

// requireGray guards the gray-only filter steps.
func requireGray(img image.Image) (*image.Gray, error) {
	if g, ok := img.(*image.Gray); ok {
		return g, nil
	}
	return nil, fmt.Errorf("step requires a grayscale image, got %T", img)
}

// denoise runs a 3x3 median filter followed by edge-preserving bilateral
// smoothing.
func denoise(img image.Image) (image.Image, error) {
	src, err := requireGray(img)
	if err != nil {
		return nil, err
	}
	return bilateralFilter(medianFilter(src)), nil
}

// medianFilter replaces each pixel with the median of its 3x3 neighborhood.
// Borders are replicated.
func medianFilter(src *image.Gray) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(b)
	var window [9]uint8

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			n := 0
			for dy := -medianRadius; dy <= medianRadius; dy++ {
				for dx := -medianRadius; dx <= medianRadius; dx++ {
					window[n] = grayAt(src, x+dx, y+dy)
					n++
				}
			}
			// Insertion sort of 9 values; the median is index 4.
			for i := 1; i < 9; i++ {
				v := window[i]
				j := i - 1
				for j >= 0 && window[j] > v {
					window[j+1] = window[j]
					j--
				}
				window[j+1] = v
			}
			dst.SetGray(x, y, grayColor(window[4]))
		}
	}
	return dst
}

// bilateralFilter smooths while preserving edges: each output pixel is a
// weighted mean of its neighborhood where weights fall off with both spatial
// distance and intensity difference.
func bilateralFilter(src *image.Gray) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(b)

	// Precomputed spatial kernel and per-delta color weights.
	size := 2*bilateralRadius + 1
	spatial := make([]float64, size*size)
	for dy := -bilateralRadius; dy <= bilateralRadius; dy++ {
		for dx := -bilateralRadius; dx <= bilateralRadius; dx++ {
			d2 := float64(dx*dx + dy*dy)
			spatial[(dy+bilateralRadius)*size+(dx+bilateralRadius)] =
				math.Exp(-d2 / (2 * bilateralSigmaSpace * bilateralSigmaSpace))
		}
	}
	var colorWeight [256]float64
	for d := 0; d < 256; d++ {
		colorWeight[d] = math.Exp(-float64(d*d) / (2 * bilateralSigmaColor * bilateralSigmaColor))
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			center := grayAt(src, x, y)
			var sum, weightSum float64
			for dy := -bilateralRadius; dy <= bilateralRadius; dy++ {
				for dx := -bilateralRadius; dx <= bilateralRadius; dx++ {
					v := grayAt(src, x+dx, y+dy)
					delta := int(v) - int(center)
					if delta < 0 {
						delta = -delta
					}
					w := spatial[(dy+bilateralRadius)*size+(dx+bilateralRadius)] * colorWeight[delta]
					sum += w * float64(v)
					weightSum += w
				}
			}
			dst.SetGray(x, y, grayColor(uint8(sum/weightSum + 0.5)))
		}
	}
	return dst
}

// binarize applies adaptive local thresholding: a pixel becomes white when it
// exceeds the Gaussian-weighted mean of its block minus a small constant.
func binarize(img image.Image) (image.Image, error) {
	src, err := requireGray(img)
	if err != nil {
		return nil, err
	}

	local := gaussianBlur(src, adaptiveBlockSize)

	b := src.Bounds()
	dst := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			threshold := int(grayAt(local, x, y)) - adaptiveC
			if int(grayAt(src, x, y)) > threshold {
				dst.SetGray(x, y, grayColor(255))
			} else {
				dst.SetGray(x, y, grayColor(0))
			}
		}
	}
	return dst, nil
}

// gaussianBlur is a separable Gaussian with a kernel sized to the adaptive
// block. Borders are replicated.
func gaussianBlur(src *image.Gray, ksize int) *image.Gray {
	radius := ksize / 2
	sigma := 0.3*(float64(ksize-1)*0.5-1) + 0.8

	kernel := make([]float64, ksize)
	var kernelSum float64
	for i := -radius; i <= radius; i++ {
		v := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		kernel[i+radius] = v
		kernelSum += v
	}
	for i := range kernel {
		kernel[i] /= kernelSum
	}

	b := src.Bounds()

	// Horizontal pass.
	tmp := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var sum float64
			for i := -radius; i <= radius; i++ {
				sum += kernel[i+radius] * float64(grayAt(src, x+i, y))
			}
			tmp.SetGray(x, y, grayColor(uint8(sum + 0.5)))
		}
	}

	// Vertical pass.
	dst := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var sum float64
			for i := -radius; i <= radius; i++ {
				sum += kernel[i+radius] * float64(grayAt(tmp, x, y+i))
			}
			dst.SetGray(x, y, grayColor(uint8(sum + 0.5)))
		}
	}
	return dst
}

func grayColor(v uint8) color.Gray {
	return color.Gray{Y: v}
}

// grayAt samples with replicated borders.
func grayAt(img *image.Gray, x, y int) uint8 {
	b := img.Bounds()
	if x < b.Min.X {
		x = b.Min.X
	}
	if x >= b.Max.X {
		x = b.Max.X - 1
	}
	if y < b.Min.Y {
		y = b.Min.Y
	}
	if y >= b.Max.Y {
		y = b.Max.Y - 1
	}
	return img.GrayAt(x, y).Y
}
