package mapview

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"

	"github.com/paulmach/orb"

	"conflictmap/pkg/config"
	"conflictmap/pkg/dataset"
	"conflictmap/pkg/storage"
)

// View holds everything about a map page except its markers
type View struct {
	Title       string
	Center      orb.Point
	Zoom        int
	TileURL     string
	Attribution string
	AccessToken string
	PopupWidth  int
	PopupHeight int
}

// NewView builds a view from the map configuration centered on center.
// token fills the {accessToken} placeholder of the tile URL.
func NewView(mc config.MapConfig, center orb.Point, token string) View {
	return View{
		Center:      center,
		Zoom:        mc.Zoom,
		TileURL:     mc.TileURL,
		Attribution: mc.TileAttribution,
		AccessToken: token,
		PopupWidth:  mc.PopupWidth,
		PopupHeight: mc.PopupHeight,
	}
}

// pageOptions is the map setup handed to the page script
type pageOptions struct {
	Center      [2]float64 `json:"center"`
	Zoom        int        `json:"zoom"`
	TileURL     string     `json:"tileURL"`
	Attribution string     `json:"attribution"`
	AccessToken string     `json:"accessToken"`
	PopupWidth  int        `json:"popupWidth"`
	PopupHeight int        `json:"popupHeight"`
}

func (v View) options() pageOptions {
	return pageOptions{
		Center:      [2]float64{v.Center.Lat(), v.Center.Lon()},
		Zoom:        v.Zoom,
		TileURL:     v.TileURL,
		Attribution: v.Attribution,
		AccessToken: v.AccessToken,
		PopupWidth:  v.PopupWidth,
		PopupHeight: v.PopupHeight,
	}
}

type marker struct {
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Radius float64 `json:"radius"`
	Color  string  `json:"color"`
	Popup  string  `json:"popup"`
}

func markers(events []dataset.Event) []marker {
	out := make([]marker, 0, len(events))
	for _, e := range events {
		out = append(out, marker{
			Lat:    e.Point.Lat(),
			Lon:    e.Point.Lon(),
			Radius: Radius(e.Fatalities, e.HasFatalities),
			Color:  Color(e.EventType),
			Popup:  Popup(e),
		})
	}
	return out
}

var pageTemplate = template.Must(template.New("map").Funcs(template.FuncMap{
	"toJSON": toJSON,
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8"/>
  <title>{{.View.Title}}</title>
  <link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css" />
  <script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
  <style>
    html, body { margin: 0; padding: 0; height: 100%; background-color: #121212; }
    #map { position: absolute; top: 0; bottom: 0; width: 100%; }
    .event-popup { overflow: auto; }
  </style>
</head>
<body>
  <div id="map"></div>
  <script>
    window.tilesLoaded = false;
    var opts = {{toJSON .Options}};
    var map = L.map('map', { zoomControl: false }).setView(opts.center, opts.zoom);
    var tiles = L.tileLayer(opts.tileURL, {
      attribution: opts.attribution,
      accessToken: opts.accessToken,
      maxZoom: 18
    });
    tiles.on('load', function () { window.tilesLoaded = true; });
    tiles.addTo(map);

    var markers = {{toJSON .Markers}};
    markers.forEach(function (m) {
      var content = '<div class="event-popup" style="width:' + opts.popupWidth + 'px;height:' + opts.popupHeight + 'px">' + m.popup + '</div>';
      L.circleMarker([m.lat, m.lon], {
        radius: m.radius,
        color: m.color,
        fill: true,
        fillColor: m.color,
        fillOpacity: 0.7,
        weight: 1
      }).bindPopup(L.popup({ maxWidth: opts.popupWidth }).setContent(content)).addTo(map);
    });
    window.markerCount = markers.length;
  </script>
</body>
</html>
`))

func toJSON(v interface{}) (template.JS, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return template.JS(b), nil
}

// Render writes a standalone Leaflet page with one circle marker per event
func Render(w io.Writer, v View, events []dataset.Event) error {
	data := struct {
		View    View
		Options pageOptions
		Markers []marker
	}{
		View:    v,
		Options: v.options(),
		Markers: markers(events),
	}
	if err := pageTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("rendering map page: %w", err)
	}
	return nil
}

// RenderFile renders the page to path
func RenderFile(path string, v View, events []dataset.Event) error {
	var buf bytes.Buffer
	if err := Render(&buf, v, events); err != nil {
		return err
	}
	if _, err := storage.WriteFileAtomic(path, &buf); err != nil {
		return fmt.Errorf("writing map page: %w", err)
	}
	return nil
}
