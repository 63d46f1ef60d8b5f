// Package snapshot turns rendered map pages into labelled PNG frames.
//
// Browser drives headless Chromium through go-rod. Guard sits in front of
// any Capturer and adds pacing plus a circuit breaker, so a browser that
// keeps failing aborts the run instead of failing every remaining month.
// Label draws the month caption onto the screenshot.
package snapshot
