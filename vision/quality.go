package vision

import (
	"image"
	"math"
)

// Quality summarizes simple image statistics, each in [0,1].
type Quality struct {
	Brightness float64 `json:"brightness"`
	Contrast   float64 `json:"contrast"`
	Saturation float64 `json:"saturation"`
	Clarity    float64 `json:"clarity"`
	Overall    float64 `json:"overall"`
}

// QualityScore computes brightness (mean of RGB channels), contrast
// (population std of RGB channels), mean HSV saturation, clarity
// (contrast*2.5, capped at 1) and a weighted overall score. Values are
// rounded to three decimals.
func QualityScore(img image.Image) Quality {
	bounds := img.Bounds()
	n := float64(bounds.Dx() * bounds.Dy())
	if n == 0 {
		return Quality{}
	}

	var sum, sumSq, satSum float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b := rgb8(img, x, y)
			for _, v := range [3]float64{r, g, b} {
				sum += v
				sumSq += v * v
			}
			hi := math.Max(r, math.Max(g, b))
			lo := math.Min(r, math.Min(g, b))
			if hi > 0 {
				satSum += (hi - lo) / hi
			}
		}
	}

	samples := n * 3
	mean := sum / samples
	variance := math.Max(0, sumSq/samples-mean*mean)

	brightness := mean / 255
	contrast := math.Sqrt(variance) / 255
	saturation := satSum / n
	clarity := math.Min(1, contrast*2.5)
	overall := 0.4*clarity + 0.3*saturation + 0.3*(1-math.Abs(brightness-0.5))

	return Quality{
		Brightness: round3(brightness),
		Contrast:   round3(contrast),
		Saturation: round3(saturation),
		Clarity:    round3(clarity),
		Overall:    round3(overall),
	}
}

// rgb8 returns the pixel at (x, y) on a 0-255 scale, ignoring alpha.
func rgb8(img image.Image, x, y int) (float64, float64, float64) {
	if rgba, ok := img.(*image.RGBA); ok {
		i := rgba.PixOffset(x, y)
		p := rgba.Pix[i : i+3 : i+3]
		return float64(p[0]), float64(p[1]), float64(p[2])
	}
	r, g, b, _ := img.At(x, y).RGBA()
	return float64(r >> 8), float64(g >> 8), float64(b >> 8)
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
