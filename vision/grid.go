package vision

import (
	"errors"
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// ErrNoImages is returned by Grid for an empty input.
var ErrNoImages = errors.New("vision: no images for grid")

// GridOptions controls Grid layout.
type GridOptions struct {
	Rows       int
	Cols       int
	Padding    int
	Background color.Color
}

// DefaultGridOptions is a 2x3 grid with 10px white padding.
func DefaultGridOptions() GridOptions {
	return GridOptions{Rows: 2, Cols: 3, Padding: 10, Background: color.White}
}

// Grid tiles up to Rows*Cols images row by row. Cell size comes from the
// first image; the others are scaled to it.
func Grid(images []image.Image, opts GridOptions) (*image.RGBA, error) {
	if len(images) == 0 {
		return nil, ErrNoImages
	}
	if opts.Rows <= 0 || opts.Cols <= 0 || opts.Padding < 0 {
		return nil, ErrInvalidDimensions
	}
	if opts.Background == nil {
		opts.Background = color.White
	}

	cell := images[0].Bounds()
	w, h := cell.Dx(), cell.Dy()
	pad := opts.Padding
	gridW := opts.Cols*w + (opts.Cols+1)*pad
	gridH := opts.Rows*h + (opts.Rows+1)*pad

	dst := image.NewRGBA(image.Rect(0, 0, gridW, gridH))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(opts.Background), image.Point{}, draw.Src)

	limit := min(len(images), opts.Rows*opts.Cols)
	for i := 0; i < limit; i++ {
		row, col := i/opts.Cols, i%opts.Cols
		x := pad + col*(w+pad)
		y := pad + row*(h+pad)
		target := image.Rect(x, y, x+w, y+h)

		src := images[i]
		if src.Bounds().Dx() == w && src.Bounds().Dy() == h {
			draw.Draw(dst, target, src, src.Bounds().Min, draw.Src)
		} else {
			draw.CatmullRom.Scale(dst, target, src, src.Bounds(), draw.Src, nil)
		}
	}
	return dst, nil
}
