package recognition

import (
	"bytes"
	"image"
	"math"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
)

// maxColorDistance is the RGB-space diagonal, sqrt(3*255^2).
const maxColorDistance = 441.67

// primaryColorPenalty is subtracted when the primary colors clearly differ:
// it suppresses false positives where silhouette and ratio coincide but
// color does not.
const primaryColorPenalty = 30.0

// primaryMismatchDistance is the RGB distance beyond which two primary
// colors count as clearly different.
const primaryMismatchDistance = 50.0

// colorWeights rank dominant colors primary/secondary/tertiary.
var colorWeights = []float64{0.5, 0.3, 0.2}

// RGB is one extracted color channel triple.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// VisualFeatures is the tier-2 fingerprint: aspect ratio plus up to three
// dominant colors, most dominant first.
type VisualFeatures struct {
	AspectRatio float64
	Colors      []RGB
}

// ExtractFeatures decodes image bytes and computes the visual fingerprint.
func ExtractFeatures(data []byte) (*VisualFeatures, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return nil, image.ErrFormat
	}

	// Downscale before sampling so dominant-color bucketing is cheap and
	// resolution independent.
	const sample = 64
	scaled := image.NewRGBA(image.Rect(0, 0, sample, sample))
	xdraw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, bounds, xdraw.Src, nil)

	return &VisualFeatures{
		AspectRatio: float64(width) / float64(height),
		Colors:      dominantColors(scaled, 3),
	}, nil
}

// dominantColors buckets pixels into a coarse RGB grid and returns the top
// n bucket centers by frequency.
func dominantColors(img *image.RGBA, n int) []RGB {
	const bucket = 32
	counts := map[[3]uint8]int{}

	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			key := [3]uint8{
				uint8(r>>8) / bucket,
				uint8(g>>8) / bucket,
				uint8(bl>>8) / bucket,
			}
			counts[key]++
		}
	}

	var colors []RGB
	for len(colors) < n && len(counts) > 0 {
		var bestKey [3]uint8
		best := -1
		for key, count := range counts {
			if count > best {
				best = count
				bestKey = key
			}
		}
		delete(counts, bestKey)
		colors = append(colors, RGB{
			R: bestKey[0]*bucket + bucket/2,
			G: bestKey[1]*bucket + bucket/2,
			B: bestKey[2]*bucket + bucket/2,
		})
	}
	return colors
}

// VisualScore blends color similarity (60%) and aspect-ratio similarity
// (40%) into a 0-100 score, minus a flat penalty when the primary colors
// clearly disagree.
func VisualScore(input, candidate VisualFeatures) float64 {
	if len(input.Colors) == 0 || len(candidate.Colors) == 0 {
		return 0
	}

	var colorScore, weightUsed float64
	for i, c := range input.Colors {
		if i >= len(colorWeights) {
			break
		}
		nearest := math.MaxFloat64
		for _, pc := range candidate.Colors {
			if d := colorDistance(c, pc); d < nearest {
				nearest = d
			}
		}
		similarity := (1 - nearest/maxColorDistance) * 100
		if similarity < 0 {
			similarity = 0
		}
		colorScore += similarity * colorWeights[i]
		weightUsed += colorWeights[i]
	}
	// Renormalize over the weights actually used: a fingerprint with fewer
	// than three dominant colors (a solid-color product photo) must still be
	// able to reach 100, not cap at the sum of the weights it covered.
	if weightUsed > 0 {
		colorScore /= weightUsed
	}

	aspectScore := math.Max(0, 1-math.Abs(input.AspectRatio-candidate.AspectRatio)) * 100

	total := colorScore*0.6 + aspectScore*0.4

	if colorDistance(input.Colors[0], candidate.Colors[0]) > primaryMismatchDistance {
		total -= primaryColorPenalty
	}

	if total < 0 {
		return 0
	}
	return total
}

func colorDistance(a, b RGB) float64 {
	dr := float64(a.R) - float64(b.R)
	dg := float64(a.G) - float64(b.G)
	db := float64(a.B) - float64(b.B)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}
