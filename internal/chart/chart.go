// Package chart renders the live signal strip-chart as an image. The
// renderer is a pure function of the frame state handed to it, so it
// can be exercised without any display surface.
package chart

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	// Chart value range in dBm: floor at the bottom edge, zero at the top.
	floorDbm   = -100.0
	ceilingDbm = 0.0

	// Horizontal reference lines, top to bottom.
	referenceStepDbm = 25.0

	// Vertical time gridlines across the window.
	timeGridlines = 10

	fontSize = 13.0
	fontDPI  = 72.0
)

var (
	colorBackground = color.RGBA{R: 0x10, G: 0x14, B: 0x1a, A: 0xff}
	colorGrid       = color.RGBA{R: 0x2a, G: 0x31, B: 0x3c, A: 0xff}
	colorGridLabel  = color.RGBA{R: 0x6b, G: 0x75, B: 0x85, A: 0xff}
	colorSquelch    = color.RGBA{R: 0xd4, G: 0x9a, B: 0x2a, A: 0xff}
	colorSignal     = color.RGBA{R: 0x3f, G: 0xc6, B: 0x6e, A: 0xff}
	colorSignalFill = color.RGBA{R: 0x1b, G: 0x45, B: 0x2c, A: 0xff}
	colorMarker     = color.RGBA{R: 0xf2, G: 0xf5, B: 0xf9, A: 0xff}
	colorText       = color.RGBA{R: 0xd5, G: 0xdb, B: 0xe3, A: 0xff}
)

// LatestSample annotates the most recent point of the frame.
type LatestSample struct {
	FrequencyHz  float64
	StrengthDbm  float64
	FriendlyName string
}

// Frame is one render input: the rolling window's strengths (oldest
// first), the window capacity the x axis is scaled against, and the
// squelch threshold to draw.
type Frame struct {
	Strengths  []float64
	Capacity   int
	SquelchDbm float64
	Latest     *LatestSample
}

// Config sizes the rendered image. FontPath optionally points at a TTF
// for crisper labels; without one a built-in bitmap face is used.
type Config struct {
	Width    int
	Height   int
	FontPath string
}

// Renderer paints strip-chart frames. It is safe for repeated use from
// a single render loop.
type Renderer struct {
	width  int
	height int
	face   font.Face
}

// NewRenderer creates a renderer. Dimensions must be positive.
func NewRenderer(config Config) (*Renderer, error) {
	if config.Width <= 0 || config.Height <= 0 {
		return nil, fmt.Errorf("invalid chart size %dx%d", config.Width, config.Height)
	}

	face := font.Face(basicfont.Face7x13)
	if config.FontPath != "" {
		p, err := os.ReadFile(config.FontPath)
		if err != nil {
			return nil, fmt.Errorf("reading font: %w", err)
		}
		parsedFont, err := truetype.Parse(p)
		if err != nil {
			return nil, fmt.Errorf("parsing font: %w", err)
		}
		face = truetype.NewFace(parsedFont, &truetype.Options{
			Size: fontSize,
			DPI:  fontDPI,
		})
	}

	return &Renderer{
		width:  config.Width,
		height: config.Height,
		face:   face,
	}, nil
}

// Render paints one frame. An empty window renders a placeholder
// message instead of axes and data.
func (r *Renderer) Render(frame Frame) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	draw.Draw(img, img.Bounds(), image.NewUniform(colorBackground), image.Point{}, draw.Src)

	if len(frame.Strengths) == 0 {
		r.drawText(img, r.width/2-80, r.height/2, "Waiting for signal data...", colorGridLabel)
		return img
	}

	r.drawGrid(img)
	r.drawSquelch(img, frame.SquelchDbm)
	r.drawSignal(img, frame)
	r.drawMarker(img, frame)

	return img
}

// drawGrid paints the horizontal dBm reference lines and the vertical
// time gridlines.
func (r *Renderer) drawGrid(img *image.RGBA) {
	for dbm := ceilingDbm; dbm >= floorDbm; dbm -= referenceStepDbm {
		y := r.yFor(dbm)
		for x := 0; x < r.width; x++ {
			img.Set(x, y, colorGrid)
		}
		r.drawText(img, 4, y-3, fmt.Sprintf("%.0f dBm", dbm), colorGridLabel)
	}

	for i := 1; i < timeGridlines; i++ {
		x := i * r.width / timeGridlines
		for y := 0; y < r.height; y++ {
			img.Set(x, y, colorGrid)
		}
	}
}

// drawSquelch paints the threshold as a dashed horizontal line.
func (r *Renderer) drawSquelch(img *image.RGBA, squelchDbm float64) {
	y := r.yFor(squelchDbm)
	for x := 0; x < r.width; x++ {
		if x%8 < 5 {
			img.Set(x, y, colorSquelch)
		}
	}
}

// drawSignal plots the window as a connected line with a filled area
// beneath it. x scales by sample index over the window capacity, so a
// filling window grows rightwards until it starts scrolling.
func (r *Renderer) drawSignal(img *image.RGBA, frame Frame) {
	n := frame.Capacity
	if n < 2 {
		n = 2
	}

	prevX, prevY := -1, -1
	for i, v := range frame.Strengths {
		x := i * (r.width - 1) / (n - 1)
		y := r.yFor(v)

		// Fill from the curve down to the floor.
		for fy := max(y, 0); fy < r.height; fy++ {
			img.Set(x, fy, colorSignalFill)
		}

		if prevX >= 0 {
			drawLine(img, prevX, prevY, x, y, colorSignal)
		} else {
			img.Set(x, y, colorSignal)
		}
		prevX, prevY = x, y
	}
}

// drawMarker highlights the newest sample and labels it.
func (r *Renderer) drawMarker(img *image.RGBA, frame Frame) {
	if frame.Latest == nil || len(frame.Strengths) == 0 {
		return
	}

	n := frame.Capacity
	if n < 2 {
		n = 2
	}
	x := (len(frame.Strengths) - 1) * (r.width - 1) / (n - 1)
	y := r.yFor(frame.Latest.StrengthDbm)

	for dx := -2; dx <= 2; dx++ {
		for dy := -2; dy <= 2; dy++ {
			if dx*dx+dy*dy <= 4 {
				img.Set(x+dx, y+dy, colorMarker)
			}
		}
	}

	fract, suffix := humanize.ComputeSI(frame.Latest.FrequencyHz)
	label := fmt.Sprintf("%.3f %sHz  %.1f dBm", fract, suffix, frame.Latest.StrengthDbm)
	if frame.Latest.FriendlyName != "" {
		label = frame.Latest.FriendlyName + "  " + label
	}

	tx := x + 8
	if tx > r.width-160 {
		tx = r.width - 160
	}
	ty := y - 8
	if ty < 14 {
		ty = 14
	}
	r.drawText(img, tx, ty, label, colorText)
}

// yFor maps a dBm value onto the canvas: the floor at the bottom edge,
// zero at the top. Out-of-range values land off-canvas on purpose; the
// chart does not clamp what the engine did not.
func (r *Renderer) yFor(dbm float64) int {
	norm := (dbm - floorDbm) / (ceilingDbm - floorDbm)
	return int((1 - norm) * float64(r.height-1))
}

func (r *Renderer) drawText(img *image.RGBA, x, y int, s string, c color.Color) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: r.face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// drawLine paints a straight segment between two points.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.Color) {
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
