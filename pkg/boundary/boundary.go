package boundary

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	errs "conflictmap/pkg/errors"
)

// Boundary is the dissolved administrative outline read from a shapefile
type Boundary struct {
	// Name is the dissolve field value of the chosen group
	Name string
	// Geometry holds every polygon of the chosen group
	Geometry orb.MultiPolygon
	// Groups maps each dissolve field value to its polygons
	Groups map[string]orb.MultiPolygon
}

// Read loads every polygon record of the shapefile at path and dissolves them
// by the attribute named field. The group with the most polygons becomes the
// boundary.
func Read(path, field string) (*Boundary, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening shapefile: %w", err)
	}
	defer reader.Close()

	fieldIdx := -1
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00 "), field) {
			fieldIdx = i
			break
		}
	}
	if fieldIdx < 0 {
		return nil, errs.New(errs.ErrorTypeParsing, fmt.Sprintf("shapefile has no %q attribute", field))
	}

	groups := make(map[string]orb.MultiPolygon)
	for reader.Next() {
		n, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok || poly == nil {
			continue
		}

		key := strings.TrimSpace(strings.TrimRight(reader.ReadAttribute(n, fieldIdx), "\x00"))
		groups[key] = append(groups[key], polygonsFromParts(poly.Parts, poly.Points)...)
	}

	name, ok := largestGroup(groups)
	if !ok {
		return nil, errs.New(errs.ErrorTypeParsing, "shapefile contains no polygons")
	}

	return &Boundary{
		Name:     name,
		Geometry: groups[name],
		Groups:   groups,
	}, nil
}

// largestGroup picks the key with the most polygons, ties broken by name
func largestGroup(groups map[string]orb.MultiPolygon) (string, bool) {
	keys := make([]string, 0, len(groups))
	for k, g := range groups {
		if len(g) > 0 {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return "", false
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(groups[keys[i]]) != len(groups[keys[j]]) {
			return len(groups[keys[i]]) > len(groups[keys[j]])
		}
		return keys[i] < keys[j]
	})
	return keys[0], true
}

// polygonsFromParts splits a shapefile record into polygons. Clockwise rings
// start a new polygon and counter-clockwise rings are holes of the current one.
func polygonsFromParts(parts []int32, points []shp.Point) []orb.Polygon {
	var polys []orb.Polygon
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || start >= end || int(end) > len(points) {
			continue
		}

		ring := make(orb.Ring, 0, end-start)
		for _, p := range points[start:end] {
			ring = append(ring, orb.Point{p.X, p.Y})
		}
		if len(ring) < 4 {
			continue
		}

		if len(polys) == 0 || ring.Orientation() == orb.CW {
			polys = append(polys, orb.Polygon{ring})
			continue
		}
		last := len(polys) - 1
		polys[last] = append(polys[last], ring)
	}
	return polys
}

// Bound returns the bounding box of the boundary geometry
func (b *Boundary) Bound() orb.Bound {
	return b.Geometry.Bound()
}

// Center returns a point guaranteed to lie inside the largest polygon of
// the boundary. It falls back to the area centroid for degenerate shapes.
func (b *Boundary) Center() orb.Point {
	if len(b.Geometry) == 0 {
		return orb.Point{}
	}

	largest := b.Geometry[0]
	largestArea := math.Abs(planar.Area(largest))
	for _, poly := range b.Geometry[1:] {
		if a := math.Abs(planar.Area(poly)); a > largestArea {
			largest, largestArea = poly, a
		}
	}

	if p, ok := scanlinePoint(largest); ok {
		return p
	}
	centroid, _ := planar.CentroidArea(largest)
	return centroid
}

// scanlinePoint casts a horizontal line through the middle of the polygon's
// bounding box and returns the midpoint of the widest interior span
func scanlinePoint(poly orb.Polygon) (orb.Point, bool) {
	bound := poly.Bound()
	height := bound.Max.Y() - bound.Min.Y()
	if height <= 0 {
		return orb.Point{}, false
	}

	y := bound.Min.Y() + height/2
	step := height * 1e-6
	for i := 0; i < 8 && onVertexLatitude(poly, y); i++ {
		y += step
	}

	var xs []float64
	for _, ring := range poly {
		for i := 0; i+1 < len(ring); i++ {
			a, c := ring[i], ring[i+1]
			if (a.Y() > y) == (c.Y() > y) {
				continue
			}
			xs = append(xs, a.X()+(y-a.Y())*(c.X()-a.X())/(c.Y()-a.Y()))
		}
	}
	if len(xs) < 2 {
		return orb.Point{}, false
	}
	sort.Float64s(xs)

	best, bestWidth := -1, 0.0
	for i := 0; i+1 < len(xs); i += 2 {
		if w := xs[i+1] - xs[i]; w > bestWidth {
			best, bestWidth = i, w
		}
	}
	if best < 0 {
		return orb.Point{}, false
	}
	return orb.Point{(xs[best] + xs[best+1]) / 2, y}, true
}

func onVertexLatitude(poly orb.Polygon, y float64) bool {
	for _, ring := range poly {
		for _, p := range ring {
			if p.Y() == y {
				return true
			}
		}
	}
	return false
}
