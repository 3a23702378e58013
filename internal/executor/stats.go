package executor

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/aliskhannn/imageforge/internal/model"
)

// localStats decodes the image and computes entropy, kurtosis and
// standard deviation from its grayscale histogram. Used when the filter
// tool's own statistics query is unavailable. Entropy is normalized by
// the 8 bits of a gray channel; luminance is normalized to [0, 1].
func localStats(path string) (model.ImageStats, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return model.ImageStats{}, fmt.Errorf("decode %s: %w", path, err)
	}

	return computeStats(img), nil
}

func computeStats(img image.Image) model.ImageStats {
	gray := imaging.Grayscale(img)
	bounds := gray.Bounds()
	total := float64(bounds.Dx() * bounds.Dy())
	if total == 0 {
		return model.ImageStats{}
	}

	var histogram [256]float64
	var sum float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			level := gray.NRGBAAt(x, y).R
			histogram[level]++
			sum += float64(level) / 255
		}
	}

	mean := sum / total

	var entropy, variance, fourth float64
	for level, count := range histogram {
		if count == 0 {
			continue
		}
		p := count / total
		entropy -= p * math.Log2(p)

		d := float64(level)/255 - mean
		variance += p * d * d
		fourth += p * d * d * d * d
	}

	stats := model.ImageStats{
		Entropy: entropy / 8,
		StdDev:  math.Sqrt(variance),
	}
	if variance > 0 {
		stats.Kurtosis = fourth/(variance*variance) - 3
	}

	return stats
}
