package services

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/rand"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Render draws the challenge code as a PNG. The only contract is that a
// human can read it: glyphs are scaled, jittered, and sheared over a noisy
// background, with no machine-readable structure intended.
func (e *ChallengeEngine) Render(code string) ([]byte, error) {
	width := e.cfg.ImageWidth
	height := e.cfg.ImageHeight
	if width <= 0 {
		width = 180
	}
	if height <= 0 {
		height = 60
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	fillBackground(img)
	drawNoise(img, e.cfg.NoiseStrokes)

	cell := width / (len(code) + 1)
	for i, r := range code {
		glyph := renderGlyph(r)
		scaled := scaleGlyph(glyph, 3)
		x := cell/2 + i*cell + rand.Intn(cell/3+1)
		y := (height-scaled.Bounds().Dy())/2 + rand.Intn(9) - 4
		shearCopy(img, scaled, x, y, glyphColor())
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode challenge image: %w", err)
	}
	return buf.Bytes(), nil
}

func fillBackground(img *image.RGBA) {
	bounds := img.Bounds()
	base := color.RGBA{R: 244, G: 246, B: 248, A: 255}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			img.SetRGBA(x, y, base)
		}
	}
}

// drawNoise scatters dots and short strokes across the background
func drawNoise(img *image.RGBA, strokes int) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if strokes <= 0 {
		strokes = 24
	}

	for i := 0; i < strokes; i++ {
		c := noiseColor()
		x := rand.Intn(w)
		y := rand.Intn(h)
		length := 4 + rand.Intn(12)
		dx := rand.Intn(3) - 1
		dy := rand.Intn(3) - 1
		if dx == 0 && dy == 0 {
			dx = 1
		}
		for j := 0; j < length; j++ {
			px, py := x+j*dx, y+j*dy
			if px >= 0 && px < w && py >= 0 && py < h {
				img.SetRGBA(px, py, c)
			}
		}
	}

	for i := 0; i < w*h/60; i++ {
		img.SetRGBA(rand.Intn(w), rand.Intn(h), noiseColor())
	}
}

// renderGlyph draws one rune into a tight alpha mask using the basic face
func renderGlyph(r rune) *image.Alpha {
	face := basicfont.Face7x13
	mask := image.NewAlpha(image.Rect(0, 0, 7, 13))
	d := font.Drawer{
		Dst:  mask,
		Src:  image.NewUniform(color.Alpha{A: 255}),
		Face: face,
		Dot:  fixed.P(0, 11),
	}
	d.DrawString(string(r))
	return mask
}

// scaleGlyph enlarges the glyph mask with nearest-neighbor scaling
func scaleGlyph(mask *image.Alpha, factor int) *image.Alpha {
	b := mask.Bounds()
	out := image.NewAlpha(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	xdraw.NearestNeighbor.Scale(out, out.Bounds(), mask, b, xdraw.Src, nil)
	return out
}

// shearCopy stamps a glyph mask onto the image with a per-row horizontal
// shear, standing in for rotation.
func shearCopy(dst *image.RGBA, mask *image.Alpha, x, y int, c color.RGBA) {
	b := mask.Bounds()
	slant := rand.Float64()*0.4 - 0.2
	dstBounds := dst.Bounds()

	for my := b.Min.Y; my < b.Max.Y; my++ {
		offset := int(slant * float64(my))
		for mx := b.Min.X; mx < b.Max.X; mx++ {
			if mask.AlphaAt(mx, my).A < 128 {
				continue
			}
			px, py := x+mx+offset, y+my
			if px >= dstBounds.Min.X && px < dstBounds.Max.X && py >= dstBounds.Min.Y && py < dstBounds.Max.Y {
				dst.SetRGBA(px, py, c)
			}
		}
	}
}

func glyphColor() color.RGBA {
	return color.RGBA{
		R: uint8(30 + rand.Intn(90)),
		G: uint8(30 + rand.Intn(90)),
		B: uint8(60 + rand.Intn(120)),
		A: 255,
	}
}

func noiseColor() color.RGBA {
	return color.RGBA{
		R: uint8(150 + rand.Intn(80)),
		G: uint8(150 + rand.Intn(80)),
		B: uint8(150 + rand.Intn(80)),
		A: 255,
	}
}
