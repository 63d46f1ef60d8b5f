// Package present shows the result of a build.
//
// Summary prints go-pretty tables describing the run. Server serves a small
// page embedding the animation at a fixed size, alongside the raw GIF, a
// liveness probe and the Prometheus metrics of the process.
package present
