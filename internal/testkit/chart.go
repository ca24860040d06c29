package testkit

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
)

const (
	chartWidth   = 480
	chartHeight  = 300
	chartMargin  = 20
	maxBars      = 20
	histogramBin = 10
)

var (
	chartBackground = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	chartAxis       = color.RGBA{R: 0x44, G: 0x44, B: 0x44, A: 0xff}
	chartInk        = color.RGBA{R: 0x4c, G: 0x72, B: 0xb0, A: 0xff}
)

// RenderChart draws a small PNG for the column. Bar-like kinds draw value
// counts or histogram bins; line and scatter plot numeric values in row order.
func RenderChart(p ColumnProfile, kind string) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, chartWidth, chartHeight))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: chartBackground}, image.Point{}, draw.Src)
	drawAxes(img)

	switch {
	case p.Numeric && (kind == "line" || kind == "scatter"):
		drawPoints(img, p.Values, kind == "line")
	case p.Numeric:
		drawBars(img, histogram(p.Values, histogramBin))
	default:
		_, heights := categoryCounts(p.Raw)
		if len(heights) > maxBars {
			heights = heights[:maxBars]
		}
		drawBars(img, heights)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func histogram(values []float64, bins int) []float64 {
	if len(values) == 0 {
		return nil
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	counts := make([]float64, bins)
	width := (hi - lo) / float64(bins)
	for _, v := range values {
		i := 0
		if width > 0 {
			i = int((v - lo) / width)
		}
		if i >= bins {
			i = bins - 1
		}
		counts[i]++
	}
	return counts
}

func drawAxes(img *image.RGBA) {
	for x := chartMargin; x < chartWidth-chartMargin; x++ {
		img.Set(x, chartHeight-chartMargin, chartAxis)
	}
	for y := chartMargin; y <= chartHeight-chartMargin; y++ {
		img.Set(chartMargin, y, chartAxis)
	}
}

func drawBars(img *image.RGBA, heights []float64) {
	if len(heights) == 0 {
		return
	}
	peak := 0.0
	for _, h := range heights {
		peak = math.Max(peak, h)
	}
	if peak == 0 {
		return
	}
	plotW := chartWidth - 2*chartMargin
	plotH := chartHeight - 2*chartMargin
	slot := plotW / len(heights)
	for i, h := range heights {
		barH := int(float64(plotH) * h / peak)
		x0 := chartMargin + i*slot + 2
		x1 := chartMargin + (i+1)*slot - 2
		if x1 <= x0 {
			x1 = x0 + 1
		}
		rect := image.Rect(x0, chartHeight-chartMargin-barH, x1, chartHeight-chartMargin)
		draw.Draw(img, rect, &image.Uniform{C: chartInk}, image.Point{}, draw.Src)
	}
}

func drawPoints(img *image.RGBA, values []float64, connect bool) {
	if len(values) == 0 {
		return
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}
	plotW := float64(chartWidth - 2*chartMargin)
	plotH := float64(chartHeight - 2*chartMargin)
	step := plotW / math.Max(1, float64(len(values)-1))

	prevX, prevY := -1, -1
	for i, v := range values {
		x := chartMargin + int(float64(i)*step)
		y := chartHeight - chartMargin - int(plotH*(v-lo)/span)
		draw.Draw(img, image.Rect(x-1, y-1, x+2, y+2), &image.Uniform{C: chartInk}, image.Point{}, draw.Src)
		if connect && prevX >= 0 {
			drawLine(img, prevX, prevY, x, y)
		}
		prevX, prevY = x, y
	}
}

func drawLine(img *image.RGBA, x0, y0, x1, y1 int) {
	steps := int(math.Max(math.Abs(float64(x1-x0)), math.Abs(float64(y1-y0))))
	if steps == 0 {
		img.Set(x0, y0, chartInk)
		return
	}
	for s := 0; s <= steps; s++ {
		t := float64(s) / float64(steps)
		img.Set(x0+int(t*float64(x1-x0)), y0+int(t*float64(y1-y0)), chartInk)
	}
}
