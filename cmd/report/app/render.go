package app

import (
	"image"
	"image/color"
	"image/draw"
	"math"
)

const (
	marginLeft   = 70
	marginRight  = 60
	marginTop    = 30
	marginBottom = 90

	gridRows = 8
	gridCols = 10
)

var (
	backgroundColor = color.RGBA{R: 0x10, G: 0x12, B: 0x18, A: 0xff}
	gridColor       = color.RGBA{R: 0x2c, G: 0x30, B: 0x3c, A: 0xff}
	axisColor       = color.RGBA{R: 0x90, G: 0x96, B: 0xa4, A: 0xff}

	cinrColor  = color.RGBA{R: 0x4c, G: 0xc9, B: 0x60, A: 0xff}
	pdschColor = color.RGBA{R: 0xe8, G: 0x6a, B: 0x4a, A: 0xff}
	mcchColor  = color.RGBA{R: 0x4a, G: 0x9a, B: 0xe8, A: 0xff}

	// rotated through for the per-MCH series
	mchPalette = []color.RGBA{
		{R: 0xe8, G: 0xc5, B: 0x4a, A: 0xff},
		{R: 0xc2, G: 0x6a, B: 0xe8, A: 0xff},
		{R: 0x4a, G: 0xe8, B: 0xd4, A: 0xff},
		{R: 0xe8, G: 0x4a, B: 0x96, A: 0xff},
	}
)

// Renderer draws the measurement series into an RGBA image. The CINR series
// uses the left axis with an auto-scaled dB range; BLER series share the
// right axis fixed to [0, 1].
type Renderer struct {
	width  int
	height int

	cinrMin float64
	cinrMax float64
}

func NewRenderer(width, height int) *Renderer {
	return &Renderer{width: width, height: height}
}

func (r *Renderer) Render(data *ReportData) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	draw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, draw.Src)

	r.scaleCINR(data.CINR)
	r.drawGrid(img)

	plot := r.plotArea()
	span := data.TimestampEnd.Sub(data.TimestampStart).Seconds()
	if span <= 0 {
		span = 1
	}

	for i, s := range data.MCHBLER {
		r.drawSeries(img, plot, s, data, span, r.blerY, mchPalette[i%len(mchPalette)])
	}
	r.drawSeries(img, plot, data.PDSCHBLER, data, span, r.blerY, pdschColor)
	r.drawSeries(img, plot, data.MCCHBLER, data, span, r.blerY, mcchColor)
	r.drawSeries(img, plot, data.CINR, data, span, r.cinrY, cinrColor)

	return img
}

func (r *Renderer) plotArea() image.Rectangle {
	return image.Rect(marginLeft, marginTop, r.width-marginRight, r.height-marginBottom)
}

// scaleCINR picks the left-axis range with a little headroom so the line
// never touches the frame.
func (r *Renderer) scaleCINR(s Series) {
	r.cinrMin, r.cinrMax = math.Inf(1), math.Inf(-1)
	for _, p := range s.Points {
		r.cinrMin = math.Min(r.cinrMin, p.Value)
		r.cinrMax = math.Max(r.cinrMax, p.Value)
	}
	if math.IsInf(r.cinrMin, 1) {
		r.cinrMin, r.cinrMax = 0, 30
	}

	pad := (r.cinrMax - r.cinrMin) * 0.1
	if pad < 1 {
		pad = 1
	}
	r.cinrMin -= pad
	r.cinrMax += pad
}

func (r *Renderer) drawGrid(img *image.RGBA) {
	plot := r.plotArea()

	for row := 0; row <= gridRows; row++ {
		y := plot.Min.Y + row*plot.Dy()/gridRows
		for x := plot.Min.X; x <= plot.Max.X; x++ {
			img.Set(x, y, gridColor)
		}
	}
	for col := 0; col <= gridCols; col++ {
		x := plot.Min.X + col*plot.Dx()/gridCols
		for y := plot.Min.Y; y <= plot.Max.Y; y++ {
			img.Set(x, y, gridColor)
		}
	}

	// frame
	for x := plot.Min.X; x <= plot.Max.X; x++ {
		img.Set(x, plot.Min.Y, axisColor)
		img.Set(x, plot.Max.Y, axisColor)
	}
	for y := plot.Min.Y; y <= plot.Max.Y; y++ {
		img.Set(plot.Min.X, y, axisColor)
		img.Set(plot.Max.X, y, axisColor)
	}
}

func (r *Renderer) cinrY(plot image.Rectangle, v float64) int {
	norm := (v - r.cinrMin) / (r.cinrMax - r.cinrMin)
	return plot.Max.Y - int(norm*float64(plot.Dy()))
}

func (r *Renderer) blerY(plot image.Rectangle, v float64) int {
	norm := math.Max(0, math.Min(1, v))
	return plot.Max.Y - int(norm*float64(plot.Dy()))
}

func (r *Renderer) drawSeries(
	img *image.RGBA,
	plot image.Rectangle,
	s Series,
	data *ReportData,
	span float64,
	toY func(image.Rectangle, float64) int,
	c color.RGBA,
) {
	var prevX, prevY int
	for i, p := range s.Points {
		norm := p.Timestamp.Sub(data.TimestampStart).Seconds() / span
		x := plot.Min.X + int(norm*float64(plot.Dx()))
		y := toY(plot, p.Value)

		if i > 0 {
			drawLine(img, prevX, prevY, x, y, c)
		} else {
			img.Set(x, y, c)
		}
		prevX, prevY = x, y
	}
}

// drawLine draws a straight segment between two points.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}

	err := dx + dy
	for {
		img.Set(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
