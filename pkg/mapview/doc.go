// Package mapview renders monthly event maps as standalone Leaflet pages.
//
// Each event becomes a filled circle marker whose radius steps with the
// fatality count and whose color depends on the event type. The page sets
// window.tilesLoaded once the base layer has finished loading so that a
// headless browser can wait for a complete map before taking a screenshot.
package mapview
