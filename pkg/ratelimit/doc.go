// Package ratelimit paces headless browser captures.
//
// Every frame capture pulls tiles from the configured provider. The sliding
// window limiter caps captures in any rolling window so that a long month
// range, or several render workers, stay within the provider's fair use:
//
//	limiter := ratelimit.PerMinute(cfg.Capture.CapturesPerMin)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
//	// capture the frame
package ratelimit
