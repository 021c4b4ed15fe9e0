package image

import "comparison-controller/internal/raster"

// maxYIQDelta is the largest value colorDelta can return.
const maxYIQDelta = 35215

func rgb2y(r float64, g float64, b float64) float64 {
	return r*0.29889531 + g*0.58662247 + b*0.11448223
}

func rgb2i(r float64, g float64, b float64) float64 {
	return r*0.59597799 - g*0.27417610 - b*0.32180189
}

func rgb2q(r float64, g float64, b float64) float64 {
	return r*0.21147017 - g*0.52261711 + b*0.31114694
}

// blendWhite composites a channel with the given alpha over white.
func blendWhite(c float64, a float64) float64 {
	return 255 + (c-255)*a
}

// colorDelta returns the squared YIQ distance between the pixels at the two
// offsets. The sign tells whether the first pixel is brighter (negative).
// With yOnly set only the luma difference is returned.
func colorDelta(img1 *raster.Image, img2 *raster.Image, k int, m int, yOnly bool) float64 {
	r1 := float64(img1.Pix[k])
	g1 := float64(img1.Pix[k+1])
	b1 := float64(img1.Pix[k+2])
	a1 := float64(img1.Pix[k+3])

	r2 := float64(img2.Pix[m])
	g2 := float64(img2.Pix[m+1])
	b2 := float64(img2.Pix[m+2])
	a2 := float64(img2.Pix[m+3])

	if a1 == a2 && r1 == r2 && g1 == g2 && b1 == b2 {
		return 0
	}

	if a1 < 255 {
		a1 /= 255
		r1 = blendWhite(r1, a1)
		g1 = blendWhite(g1, a1)
		b1 = blendWhite(b1, a1)
	}
	if a2 < 255 {
		a2 /= 255
		r2 = blendWhite(r2, a2)
		g2 = blendWhite(g2, a2)
		b2 = blendWhite(b2, a2)
	}

	y1 := rgb2y(r1, g1, b1)
	y2 := rgb2y(r2, g2, b2)
	y := y1 - y2

	if yOnly {
		return y
	}

	i := rgb2i(r1, g1, b1) - rgb2i(r2, g2, b2)
	q := rgb2q(r1, g1, b1) - rgb2q(r2, g2, b2)

	delta := 0.5053*y*y + 0.299*i*i + 0.1957*q*q

	if y1 > y2 {
		return -delta
	}
	return delta
}

// antialiased reports whether the pixel at (x1, y1) of img looks like part of
// an anti-aliased edge: it sits between a darker and a brighter neighbour and
// one of those neighbours belongs to a flat region in both images.
func antialiased(img *raster.Image, x1 int, y1 int, img2 *raster.Image) bool {
	x0 := max(x1-1, 0)
	yy0 := max(y1-1, 0)
	x2 := min(x1+1, img.Width-1)
	yy2 := min(y1+1, img.Height-1)
	pos := img.PixOffset(x1, y1)

	zeroes := 0
	if x1 == x0 || x1 == x2 || y1 == yy0 || y1 == yy2 {
		zeroes = 1
	}

	var minDelta, maxDelta float64
	var minX, minY, maxX, maxY int

	for x := x0; x <= x2; x++ {
		for y := yy0; y <= yy2; y++ {
			if x == x1 && y == y1 {
				continue
			}

			delta := colorDelta(img, img, pos, img.PixOffset(x, y), true)

			if delta == 0 {
				zeroes++
				if zeroes > 2 {
					return false
				}
			} else if delta < minDelta {
				minDelta = delta
				minX = x
				minY = y
			} else if delta > maxDelta {
				maxDelta = delta
				maxX = x
				maxY = y
			}
		}
	}

	if minDelta == 0 || maxDelta == 0 {
		return false
	}

	return (hasManySiblings(img, minX, minY) && hasManySiblings(img2, minX, minY)) ||
		(hasManySiblings(img, maxX, maxY) && hasManySiblings(img2, maxX, maxY))
}

// hasManySiblings reports whether more than two neighbours share the exact
// color of the pixel at (x1, y1).
func hasManySiblings(img *raster.Image, x1 int, y1 int) bool {
	x0 := max(x1-1, 0)
	yy0 := max(y1-1, 0)
	x2 := min(x1+1, img.Width-1)
	yy2 := min(y1+1, img.Height-1)
	pos := img.PixOffset(x1, y1)

	zeroes := 0
	if x1 == x0 || x1 == x2 || y1 == yy0 || y1 == yy2 {
		zeroes = 1
	}

	for x := x0; x <= x2; x++ {
		for y := yy0; y <= yy2; y++ {
			if x == x1 && y == y1 {
				continue
			}

			pos2 := img.PixOffset(x, y)
			if img.Pix[pos] == img.Pix[pos2] &&
				img.Pix[pos+1] == img.Pix[pos2+1] &&
				img.Pix[pos+2] == img.Pix[pos2+2] &&
				img.Pix[pos+3] == img.Pix[pos2+3] {
				zeroes++
			}

			if zeroes > 2 {
				return true
			}
		}
	}

	return false
}
