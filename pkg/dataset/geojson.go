package dataset

import (
	"bytes"
	"fmt"

	"github.com/paulmach/orb/geojson"

	"conflictmap/pkg/storage"
)

// FeatureCollection converts events into GeoJSON point features. A nil
// slice exports every event of the table.
func (t *Table) FeatureCollection(events []Event) *geojson.FeatureCollection {
	if events == nil {
		events = t.Events
	}

	fc := geojson.NewFeatureCollection()
	for _, e := range events {
		f := geojson.NewFeature(e.Point)
		if e.ID != "" {
			f.ID = e.ID
		}
		f.Properties["event_type"] = e.EventType
		f.Properties["date"] = e.Date.Format("2006-01-02")
		f.Properties["notes"] = e.Notes
		if e.HasFatalities {
			f.Properties["fatalities"] = e.Fatalities
		} else {
			f.Properties["fatalities"] = nil
		}
		if e.Location != "" {
			f.Properties["location"] = e.Location
		}
		fc.Append(f)
	}
	return fc
}

// WriteGeoJSON writes the table's events to path as a FeatureCollection
func (t *Table) WriteGeoJSON(path string) error {
	data, err := t.FeatureCollection(nil).MarshalJSON()
	if err != nil {
		return fmt.Errorf("encoding geojson: %w", err)
	}
	if _, err := storage.WriteFileAtomic(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing geojson: %w", err)
	}
	return nil
}
