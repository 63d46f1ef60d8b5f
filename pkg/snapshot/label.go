package snapshot

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"conflictmap/pkg/config"
)

// LabelOptions controls the month caption drawn onto each frame
type LabelOptions struct {
	Size  float64
	Color color.Color
	// RightOffset is the distance of the text's left edge from the right border
	RightOffset int
	// Top is the y coordinate of the text's top
	Top int
}

// DefaultLabelOptions is white 40pt text at (width-400, 20)
func DefaultLabelOptions() LabelOptions {
	return LabelOptions{
		Size:        40,
		Color:       color.White,
		RightOffset: 400,
		Top:         20,
	}
}

// LabelOptionsFromConfig reads caption settings from the capture section
func LabelOptionsFromConfig(cc config.CaptureConfig) (LabelOptions, error) {
	c, err := ParseHexColor(cc.LabelColor)
	if err != nil {
		return LabelOptions{}, err
	}
	return LabelOptions{
		Size:        cc.LabelFontSize,
		Color:       c,
		RightOffset: cc.LabelRightOffset,
		Top:         cc.LabelTop,
	}, nil
}

// ParseHexColor parses "#rrggbb" or "#rgb"
func ParseHexColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

var (
	goFontOnce sync.Once
	goFont     *opentype.Font
	goFontErr  error
)

// newFace returns a Go Regular face at size, or basicfont when the font
// cannot be loaded. Faces are not safe for concurrent use so callers get
// their own.
func newFace(size float64) font.Face {
	goFontOnce.Do(func() {
		goFont, goFontErr = opentype.Parse(goregular.TTF)
	})
	if goFontErr != nil || goFont == nil || size <= 0 {
		return basicfont.Face7x13
	}
	face, err := opentype.NewFace(goFont, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return basicfont.Face7x13
	}
	return face
}

// Label copies img and draws text near its top right corner
func Label(img image.Image, text string, opts LabelOptions) *image.RGBA {
	bounds := img.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, img, bounds.Min, draw.Src)

	if opts.Color == nil {
		opts.Color = color.White
	}

	face := newFace(opts.Size)
	defer face.Close()

	x := bounds.Max.X - opts.RightOffset
	if x < bounds.Min.X {
		x = bounds.Min.X
	}
	y := bounds.Min.Y + opts.Top + face.Metrics().Ascent.Ceil()

	d := &font.Drawer{
		Dst:  out,
		Src:  image.NewUniform(opts.Color),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
	return out
}
