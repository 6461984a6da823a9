package polls

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ChartSlice is one segment of a result chart.
type ChartSlice struct {
	Label string
	Count int
}

// ChartRenderer turns final vote counts into an image. The engine only
// needs the PNG bytes; the rendering backend is swappable.
type ChartRenderer interface {
	Render(title string, slices []ChartSlice) ([]byte, error)
}

// donutRenderer draws a donut chart with a basicfont legend.
type donutRenderer struct{}

// NewDonutRenderer returns the default chart renderer.
func NewDonutRenderer() ChartRenderer {
	return &donutRenderer{}
}

var palette = []color.RGBA{
	{0x5B, 0x8D, 0xEF, 0xFF},
	{0xEF, 0x5B, 0x5B, 0xFF},
	{0x5B, 0xEF, 0x8D, 0xFF},
	{0xEF, 0xC8, 0x5B, 0xFF},
	{0xB1, 0x5B, 0xEF, 0xFF},
	{0x5B, 0xE0, 0xEF, 0xFF},
	{0xEF, 0x5B, 0xC8, 0xFF},
	{0x8D, 0xEF, 0x5B, 0xFF},
}

const (
	chartSize   = 320
	legendWidth = 220
	outerRadius = 140.0
	innerRadius = 70.0
)

func (d *donutRenderer) Render(title string, slices []ChartSlice) ([]byte, error) {
	total := 0
	for _, slice := range slices {
		total += slice.Count
	}

	img := image.NewRGBA(image.Rect(0, 0, chartSize+legendWidth, chartSize))
	background := color.RGBA{0x2F, 0x31, 0x36, 0xFF}
	for y := 0; y < chartSize; y++ {
		for x := 0; x < chartSize+legendWidth; x++ {
			img.SetRGBA(x, y, background)
		}
	}

	if total > 0 {
		d.drawDonut(img, slices, total)
	}
	d.drawLegend(img, title, slices, total)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode chart: %w", err)
	}
	return buf.Bytes(), nil
}

// drawDonut paints the ring. Each pixel's angle decides its segment.
func (d *donutRenderer) drawDonut(img *image.RGBA, slices []ChartSlice, total int) {
	centerX, centerY := float64(chartSize)/2, float64(chartSize)/2

	// Cumulative fractions mark segment boundaries, starting at 12
	// o'clock and running clockwise.
	bounds := make([]float64, 0, len(slices)+1)
	bounds = append(bounds, 0)
	acc := 0.0
	for _, slice := range slices {
		acc += float64(slice.Count) / float64(total)
		bounds = append(bounds, acc)
	}

	for y := 0; y < chartSize; y++ {
		for x := 0; x < chartSize; x++ {
			dx, dy := float64(x)-centerX, float64(y)-centerY
			radius := math.Hypot(dx, dy)
			if radius < innerRadius || radius > outerRadius {
				continue
			}
			angle := math.Atan2(dx, -dy) // 0 at 12 o'clock, clockwise
			if angle < 0 {
				angle += 2 * math.Pi
			}
			fraction := angle / (2 * math.Pi)
			for i := 0; i < len(bounds)-1; i++ {
				if fraction >= bounds[i] && fraction < bounds[i+1] {
					img.SetRGBA(x, y, palette[i%len(palette)])
					break
				}
			}
		}
	}
}

func (d *donutRenderer) drawLegend(img *image.RGBA, title string, slices []ChartSlice, total int) {
	face := basicfont.Face7x13
	white := image.NewUniform(color.White)

	drawText := func(x, y int, text string) {
		drawer := &font.Drawer{
			Dst:  img,
			Src:  white,
			Face: face,
			Dot:  fixed.P(x, y),
		}
		drawer.DrawString(text)
	}

	drawText(chartSize+10, 24, title)
	y := 52
	for i, slice := range slices {
		swatch := palette[i%len(palette)]
		for sy := y - 9; sy < y; sy++ {
			for sx := chartSize + 10; sx < chartSize+19; sx++ {
				img.SetRGBA(sx, sy, swatch)
			}
		}
		percent := 0.0
		if total > 0 {
			percent = float64(slice.Count) / float64(total) * 100
		}
		drawText(chartSize+24, y, fmt.Sprintf("%s: %d (%.0f%%)", clip(slice.Label, 18), slice.Count, percent))
		y += 20
		if y > chartSize-10 {
			break
		}
	}
}

func clip(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
