package mapview

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"conflictmap/pkg/dataset"
)

// Marker colors by event type
const (
	ColorCivilians = "#fc3535"
	ColorProtests  = "#b903bf"
	ColorOther     = "#f79f25"
	colorDeaths    = "#af0f00"
)

// fatalityBins are the breakpoints marker radii are stepped on
var fatalityBins = []float64{0, 1, 5, 10, 20, 30, 50, 75, 100, 150, 200, 500, 1000, 2000}

// defaultRadius is used when the stepped radius would be zero
const defaultRadius = 3.0

// Radius returns the circle marker radius for a fatality count. The step is
// the number of bins at or below the count, squared and divided by 1.5.
func Radius(fatalities int, has bool) float64 {
	if !has {
		return defaultRadius
	}
	step := sort.Search(len(fatalityBins), func(i int) bool {
		return fatalityBins[i] > float64(fatalities)
	})
	r := float64(step*step) / 1.5
	if r == 0 {
		return defaultRadius
	}
	return r
}

// Color returns the marker color for an event type
func Color(eventType string) string {
	switch eventType {
	case "Violence against civilians":
		return ColorCivilians
	case "Riots/Protests":
		return ColorProtests
	default:
		return ColorOther
	}
}

// CleanNotes drops the "On <date>:" style prefix ACLED puts on notes,
// keeping the text between the first and second colon
func CleanNotes(notes string) string {
	if notes == "" {
		return ""
	}
	if parts := strings.Split(notes, ":"); len(parts) > 1 {
		return parts[1]
	}
	return notes
}

// Popup returns the popup HTML for an event. All inserted values are escaped.
func Popup(e dataset.Event) string {
	deaths := "unknown"
	if e.HasFatalities {
		deaths = fmt.Sprint(e.Fatalities)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<h4>%s</h4>", html.EscapeString(e.EventType))
	fmt.Fprintf(&b, "<p><i>%s</i></p>", html.EscapeString(e.Date.Format("02 Jan, 2006")))
	fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(CleanNotes(e.Notes)))
	fmt.Fprintf(&b, `<p style="color:%s"><i>%s fatalities</i></p>`, colorDeaths, html.EscapeString(deaths))
	return b.String()
}
