// Package animate assembles PNG frames into a looping GIF.
package animate

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"conflictmap/pkg/months"
	"conflictmap/pkg/storage"
)

// DefaultDelay is the display time of each frame
const DefaultDelay = 2 * time.Second

// ErrNoFrames is returned when there is nothing to animate
var ErrNoFrames = errors.New("no frames to animate")

// Result describes a written animation
type Result struct {
	Path   string
	Frames int
	Bytes  int64
}

type frameFile struct {
	path    string
	month   time.Time
	dated   bool
	modTime time.Time
}

// CollectFrames lists the PNG frames in dir in chronological order of the
// month in their name. Files whose name is not a month go last, oldest first.
// A non-nil keep limits the result to the names it accepts.
func CollectFrames(dir string, keep func(name string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading frames directory: %w", err)
	}

	var files []frameFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".png") {
			continue
		}
		if keep != nil && !keep(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		f := frameFile{path: filepath.Join(dir, entry.Name()), modTime: info.ModTime()}
		if m, err := months.ParseFrameName(entry.Name()); err == nil {
			f.month, f.dated = m, true
		}
		files = append(files, f)
	}

	sort.SliceStable(files, func(i, j int) bool {
		a, b := files[i], files[j]
		switch {
		case a.dated && b.dated:
			return a.month.Before(b.month)
		case a.dated != b.dated:
			return a.dated
		case !a.modTime.Equal(b.modTime):
			return a.modTime.Before(b.modTime)
		default:
			return a.path < b.path
		}
	})

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	return paths, nil
}

// Quantize maps img onto a 256 color palette with Floyd-Steinberg dithering
func Quantize(img image.Image) *image.Paletted {
	if p, ok := img.(*image.Paletted); ok {
		return p
	}
	bounds := img.Bounds()
	out := image.NewPaletted(bounds, palette.Plan9)
	draw.FloydSteinberg.Draw(out, bounds, img, bounds.Min)
	return out
}

// Encode writes frames as an endlessly looping GIF showing each frame for delay
func Encode(w io.Writer, frames []image.Image, delay time.Duration) error {
	if len(frames) == 0 {
		return ErrNoFrames
	}
	if delay <= 0 {
		delay = DefaultDelay
	}
	hundredths := int(delay / (10 * time.Millisecond))
	if hundredths < 1 {
		hundredths = 1
	}

	anim := &gif.GIF{LoopCount: 0}
	var canvas image.Rectangle
	for _, frame := range frames {
		p := Quantize(frame)
		canvas = canvas.Union(p.Bounds())
		anim.Image = append(anim.Image, p)
		anim.Delay = append(anim.Delay, hundredths)
		anim.Disposal = append(anim.Disposal, gif.DisposalNone)
	}
	anim.Config = image.Config{
		ColorModel: color.Palette(palette.Plan9),
		Width:      canvas.Dx(),
		Height:     canvas.Dy(),
	}

	if err := gif.EncodeAll(w, anim); err != nil {
		return fmt.Errorf("encoding gif: %w", err)
	}
	return nil
}

// LoadFrame decodes a PNG frame and quantizes it right away to keep memory low
func LoadFrame(path string) (*image.Paletted, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening frame: %w", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding frame %s: %w", filepath.Base(path), err)
	}
	return Quantize(img), nil
}

// Build collects the frames in dir accepted by keep and writes the animation
// to out. A nil keep takes every frame.
func Build(dir, out string, delay time.Duration, keep func(name string) bool) (*Result, error) {
	paths, err := CollectFrames(dir, keep)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoFrames, dir)
	}

	frames := make([]image.Image, 0, len(paths))
	for _, p := range paths {
		frame, err := LoadFrame(p)
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}

	var buf bytes.Buffer
	if err := Encode(&buf, frames, delay); err != nil {
		return nil, err
	}
	n, err := storage.WriteFileAtomic(out, &buf)
	if err != nil {
		return nil, fmt.Errorf("writing gif: %w", err)
	}

	return &Result{Path: out, Frames: len(frames), Bytes: n}, nil
}
