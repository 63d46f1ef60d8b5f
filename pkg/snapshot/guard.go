package snapshot

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/sony/gobreaker"

	errs "conflictmap/pkg/errors"
	"conflictmap/pkg/logger"
	"conflictmap/pkg/ratelimit"
)

// Guard paces captures and stops calling a failing browser. After
// maxFailures consecutive failed captures every further call fails fast
// with a render error.
type Guard struct {
	next    Capturer
	limiter ratelimit.Limiter
	circuit *gobreaker.CircuitBreaker
	logger  logger.Logger
}

// NewGuard wraps next. A nil limiter disables pacing.
func NewGuard(next Capturer, limiter ratelimit.Limiter, maxFailures int, log logger.Logger) *Guard {
	if log == nil {
		log = logger.GetLogger()
	}
	if maxFailures < 1 {
		maxFailures = 1
	}

	g := &Guard{next: next, limiter: limiter, logger: log}
	g.circuit = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "capture",
		MaxRequests: 1,
		Timeout:     10 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(maxFailures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.logger.WarnWithFields("Capture circuit changed state", map[string]interface{}{
				"from": from.String(),
				"to":   to.String(),
			})
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return g
}

// Capture waits for a pacing slot and captures through the circuit breaker
func (g *Guard) Capture(ctx context.Context, htmlPath string) (image.Image, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	out, err := g.circuit.Execute(func() (interface{}, error) {
		return g.next.Capture(ctx, htmlPath)
	})
	if err != nil {
		if IsCircuitOpen(err) {
			return nil, errs.Wrap(errs.ErrorTypeRender, "too many consecutive capture failures", err)
		}
		return nil, err
	}
	img, ok := out.(image.Image)
	if !ok || img == nil {
		return nil, errs.New(errs.ErrorTypeRender, "capture returned no image")
	}
	return img, nil
}

// State reports the breaker state, "closed", "half-open" or "open"
func (g *Guard) State() string {
	return g.circuit.State().String()
}

// IsCircuitOpen reports whether err came from a tripped capture breaker
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// Stub returns a fixed image for every page. It stands in for a browser in
// dry runs.
type Stub struct {
	Width, Height int
}

// Capture returns a blank frame of the stub's size
func (s Stub) Capture(ctx context.Context, htmlPath string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Width <= 0 || s.Height <= 0 {
		return nil, fmt.Errorf("stub capture size must be positive")
	}
	return image.NewRGBA(image.Rect(0, 0, s.Width, s.Height)), nil
}
