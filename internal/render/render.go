// Package render draws the PNG plots RIS Lab runs attach alongside their
// numeric artifacts (spec.md §6 "plots/"). No plotting library exists
// anywhere in the example corpus this project was grounded on, so this
// package is a stdlib image/png exception, documented in DESIGN.md.
package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
)

const (
	width  = 640
	height = 420
	margin = 48
)

var (
	colorAxis      = color.RGBA{60, 60, 60, 255}
	colorBG        = color.RGBA{255, 255, 255, 255}
	colorSeries    = color.RGBA{31, 119, 180, 255}
	colorReference = color.RGBA{214, 39, 40, 255}
)

func newCanvas() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, colorBG)
		}
	}
	return img
}

func encode(img image.Image) []byte {
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

// drawLine draws a 1px Bresenham line between two pixel coordinates.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.Color) {
	dx, dy := abs(x1-x0), abs(y1-y0)
	sx, sy := sign(x1-x0), sign(y1-y0)
	err := dx - dy
	x, y := x0, y0
	for {
		img.Set(x, y, c)
		if x == x1 && y == y1 {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x += sx
		}
		if e2 < dx {
			err += dx
			y += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func drawAxes(img *image.RGBA) {
	drawLine(img, margin, height-margin, width-margin, height-margin, colorAxis)
	drawLine(img, margin, margin, margin, height-margin, colorAxis)
}

func minMax(vals []float64) (min, max float64) {
	if len(vals) == 0 {
		return 0, 1
	}
	min, max = vals[0], vals[0]
	for _, v := range vals {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if max == min {
		max = min + 1
	}
	return min, max
}

func plotXY(img *image.RGBA, xs, ys []float64, c color.Color) {
	if len(xs) < 2 {
		return
	}
	xmin, xmax := minMax(xs)
	ymin, ymax := minMax(ys)
	toPixel := func(x, y float64) (int, int) {
		px := margin + int((x-xmin)/(xmax-xmin)*float64(width-2*margin))
		py := height - margin - int((y-ymin)/(ymax-ymin)*float64(height-2*margin))
		return px, py
	}
	px0, py0 := toPixel(xs[0], ys[0])
	for i := 1; i < len(xs); i++ {
		px1, py1 := toPixel(xs[i], ys[i])
		drawLine(img, px0, py0, px1, py1, c)
		px0, py0 = px1, py1
	}
}

// CartesianPattern renders theta (deg) vs. pattern (dB) as a rectangular
// line plot.
func CartesianPattern(thetaDeg, patternDB []float64) []byte {
	img := newCanvas()
	drawAxes(img)
	plotXY(img, thetaDeg, patternDB, colorSeries)
	return encode(img)
}

// PolarPattern renders the same sweep on a polar axis, radius mapped from
// the normalized dB value (the sweep's maximum at the rim, its minimum at center).
func PolarPattern(thetaDeg, patternDB []float64) []byte {
	img := newCanvas()
	cx, cy := width/2, height/2
	radius := float64(height/2 - margin)
	drawLine(img, cx-int(radius), cy, cx+int(radius), cy, colorAxis)
	drawLine(img, cx, cy-int(radius), cx, cy+int(radius), colorAxis)

	_, max := minMax(patternDB)
	min, _ := minMax(patternDB)
	if len(thetaDeg) < 2 {
		return encode(img)
	}
	prevX, prevY := 0, 0
	for i, theta := range thetaDeg {
		norm := (patternDB[i] - min) / (max - min)
		r := norm * radius
		rad := theta * math.Pi / 180
		x := cx + int(r*math.Sin(rad))
		y := cy - int(r*math.Cos(rad))
		if i > 0 {
			drawLine(img, prevX, prevY, x, y, colorSeries)
		}
		prevX, prevY = x, y
	}
	return encode(img)
}

// PhaseMap renders a [ny][nx] phase grid in (-pi, pi] as a grayscale image,
// nearest-neighbor scaled to the canvas.
func PhaseMap(phase [][]float64) []byte {
	img := newCanvas()
	ny := len(phase)
	if ny == 0 {
		return encode(img)
	}
	nx := len(phase[0])
	if nx == 0 {
		return encode(img)
	}
	plotW, plotH := width-2*margin, height-2*margin
	for row := 0; row < plotH; row++ {
		j := row * ny / plotH
		for col := 0; col < plotW; col++ {
			i := col * nx / plotW
			v := (phase[j][i] + math.Pi) / (2 * math.Pi)
			gray := uint8(clamp01(v) * 255)
			img.Set(margin+col, margin+row, color.RGBA{gray, gray, gray, 255})
		}
	}
	drawAxes(img)
	return encode(img)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ValidationOverlay renders the computed and peak-normalized reference
// patterns on the same cartesian axes for visual comparison.
func ValidationOverlay(thetaDeg, computedDB, referenceDB []float64) []byte {
	img := newCanvas()
	drawAxes(img)
	plotXY(img, thetaDeg, computedDB, colorSeries)
	plotXY(img, thetaDeg, referenceDB, colorReference)
	return encode(img)
}
