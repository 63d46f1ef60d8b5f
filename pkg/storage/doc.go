// Package storage manages the frames directory and atomic file writes.
//
// Every file the pipeline produces (the downloaded workbook, PNG frames, the
// GIF) is written to a temporary sibling and renamed into place, so an
// interrupted run never leaves a truncated file behind. Manager additionally
// remembers which frames exist, which lets resumed runs skip finished months.
//
// Usage:
//
//	frames, err := storage.NewManager("output/gif")
//	if err != nil {
//	    return err
//	}
//	if err := frames.Reset(); err != nil {
//	    return err
//	}
//	path, err := frames.SaveFrame("Jan_2015.png", img)
package storage
