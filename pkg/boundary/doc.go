// Package boundary reads country outlines from ESRI shapefiles.
//
// Records are grouped by an attribute (COUNTRY by default) into one
// MultiPolygon per value. Center returns a representative point that is
// always inside the outline, which is where the map view is centered.
package boundary
