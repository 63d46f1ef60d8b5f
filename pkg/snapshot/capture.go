package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"net/url"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"conflictmap/pkg/config"
	errs "conflictmap/pkg/errors"
	"conflictmap/pkg/logger"
)

// Capturer turns a rendered map page into an image
type Capturer interface {
	Capture(ctx context.Context, htmlPath string) (image.Image, error)
}

// BrowserOptions configures the headless browser
type BrowserOptions struct {
	Width           int
	Height          int
	Delay           time.Duration
	NavigateTimeout time.Duration
	Headless        bool
	Bin             string
	ControlURL      string
	Logger          logger.Logger
}

// BrowserOptionsFromConfig reads browser settings from the capture section
func BrowserOptionsFromConfig(cc config.CaptureConfig, log logger.Logger) BrowserOptions {
	return BrowserOptions{
		Width:           cc.Width,
		Height:          cc.Height,
		Delay:           cc.Delay,
		NavigateTimeout: cc.NavigateTimeout,
		Headless:        cc.Headless,
		Bin:             cc.BrowserBin,
		ControlURL:      cc.ControlURL,
		Logger:          log,
	}
}

// Browser captures pages with a Chromium instance driven over CDP
type Browser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	opts     BrowserOptions
	logger   logger.Logger
}

const tilesLoadedJS = `() => window.tilesLoaded === true`

// NewBrowser connects to opts.ControlURL when set and launches a local
// Chromium otherwise
func NewBrowser(ctx context.Context, opts BrowserOptions) (*Browser, error) {
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.NavigateTimeout <= 0 {
		opts.NavigateTimeout = 30 * time.Second
	}

	b := &Browser{opts: opts, logger: log.WithField("component", "snapshot")}

	controlURL := opts.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(opts.Headless).NoSandbox(true)
		if opts.Bin != "" {
			l = l.Bin(opts.Bin)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, errs.Wrap(errs.ErrorTypeRender, "launch chromium", err)
		}
		controlURL = u
		b.launcher = l
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		b.kill()
		return nil, errs.Wrap(errs.ErrorTypeRender, "connect to chromium", err)
	}
	b.browser = browser

	b.logger.DebugWithFields("Browser ready", map[string]interface{}{
		"control_url": controlURL,
		"launched":    b.launcher != nil,
	})
	return b, nil
}

// Capture opens htmlPath at the configured viewport, waits for the tiles or
// the delay, whichever comes first, and returns a screenshot
func (b *Browser) Capture(ctx context.Context, htmlPath string) (image.Image, error) {
	abs, err := filepath.Abs(htmlPath)
	if err != nil {
		return nil, fmt.Errorf("resolve page path: %w", err)
	}
	pageURL := (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()

	page, err := b.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeRender, "open tab", err)
	}
	defer page.Close()

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             b.opts.Width,
		Height:            b.opts.Height,
		DeviceScaleFactor: 1,
		Mobile:            false,
	}).Call(page); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeRender, "set viewport", err)
	}

	if err := page.Timeout(b.opts.NavigateTimeout).Navigate(pageURL); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeRender, "navigate to "+pageURL, err)
	}
	if err := page.Timeout(b.opts.NavigateTimeout).WaitLoad(); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeRender, "wait for page load", err)
	}

	if b.opts.Delay > 0 {
		if err := page.Timeout(b.opts.Delay).Wait(rod.Eval(tilesLoadedJS)); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			b.logger.WithField("page", htmlPath).Debug("Tiles still loading after delay")
		}
	}

	data, err := page.Context(ctx).Screenshot(false, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeRender, "screenshot", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeRender, "decode screenshot", err)
	}
	return img, nil
}

// Close disconnects from the browser and stops it if it was launched here
func (b *Browser) Close() error {
	var err error
	if b.browser != nil {
		err = b.browser.Close()
	}
	b.kill()
	return err
}

func (b *Browser) kill() {
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher.Cleanup()
	}
}
