package app

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"time"

	"github.com/golang/freetype"
	"golang.org/x/image/font"
)

const (
	dpi     float64 = 72
	size    float64 = 14
	spacing float64 = 1.2
)

type Annotator struct {
	context *freetype.Context
}

// NewAnnotator loads a TTF font from fontPath and prepares a drawing
// context for it.
func NewAnnotator(fontPath string) (*Annotator, error) {
	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("reading font: %w", err)
	}

	parsedFont, err := freetype.ParseFont(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	context := freetype.NewContext()
	context.SetDPI(dpi)
	context.SetFont(parsedFont)
	context.SetFontSize(size)
	context.SetSrc(image.White)
	context.SetHinting(font.HintingFull)

	return &Annotator{context: context}, nil
}

func (a *Annotator) Annotate(img *image.RGBA, renderer *Renderer, data *ReportData) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	ops := []struct {
		msg string
		fn  func(*image.RGBA, *Renderer, *ReportData) error
	}{
		{"drawing time scale", a.drawTimeScale},
		{"drawing value scales", a.drawValueScales},
		{"drawing legend", a.drawLegend},
	}
	for _, op := range ops {
		if err := op.fn(img, renderer, data); err != nil {
			return fmt.Errorf("%s: %w", op.msg, err)
		}
	}

	return nil
}

func (a *Annotator) drawTimeScale(img *image.RGBA, renderer *Renderer, data *ReportData) error {
	plot := renderer.plotArea()
	span := data.TimestampEnd.Sub(data.TimestampStart)

	count := plot.Dx() / 180
	if count < 1 {
		count = 1
	}

	for si := 0; si <= count; si++ {
		offset := time.Duration(int64(span) * int64(si) / int64(count))
		x := plot.Min.X + si*plot.Dx()/count

		for y := plot.Max.Y; y < plot.Max.Y+6; y++ {
			img.Set(x, y, image.White)
		}

		str := data.TimestampStart.Add(offset).Format("15:04:05")
		pt := freetype.Pt(x-28, plot.Max.Y+22)
		if _, err := a.context.DrawString(str, pt); err != nil {
			return err
		}
	}

	return nil
}

func (a *Annotator) drawValueScales(img *image.RGBA, renderer *Renderer, data *ReportData) error {
	plot := renderer.plotArea()

	for row := 0; row <= gridRows; row++ {
		y := plot.Min.Y + row*plot.Dy()/gridRows
		frac := float64(gridRows-row) / gridRows

		// left axis: CINR in dB
		db := renderer.cinrMin + frac*(renderer.cinrMax-renderer.cinrMin)
		pt := freetype.Pt(8, y+5)
		if _, err := a.context.DrawString(fmt.Sprintf("%5.1f dB", db), pt); err != nil {
			return err
		}

		// right axis: BLER
		pt = freetype.Pt(plot.Max.X+8, y+5)
		if _, err := a.context.DrawString(fmt.Sprintf("%.2f", frac), pt); err != nil {
			return err
		}
	}

	return nil
}

func (a *Annotator) drawLegend(img *image.RGBA, renderer *Renderer, data *ReportData) error {
	entries := []struct {
		name string
		c    color.RGBA
	}{
		{data.CINR.Name, cinrColor},
		{data.PDSCHBLER.Name, pdschColor},
		{data.MCCHBLER.Name, mcchColor},
	}
	for i, s := range data.MCHBLER {
		entries = append(entries, struct {
			name string
			c    color.RGBA
		}{s.Name, mchPalette[i%len(mchPalette)]})
	}

	imgSize := img.Bounds().Size()
	top := imgSize.Y - 50
	left := marginLeft

	for _, e := range entries {
		for x := left; x < left+18; x++ {
			for y := top - 5; y < top-1; y++ {
				img.Set(x, y, e.c)
			}
		}

		pt := freetype.Pt(left+24, top)
		if _, err := a.context.DrawString(e.name, pt); err != nil {
			return err
		}
		left += 24 + 9*len(e.name) + 20
	}

	info := fmt.Sprintf("Session %d: %s to %s",
		data.SessionID,
		data.TimestampStart.Format(time.DateTime),
		data.TimestampEnd.Format(time.DateTime))
	pt := freetype.Pt(marginLeft, imgSize.Y-22)
	_, err := a.context.DrawString(info, pt)
	return err
}
