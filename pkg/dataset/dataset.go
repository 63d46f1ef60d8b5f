package dataset

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/xuri/excelize/v2"

	errs "conflictmap/pkg/errors"
)

// Column headers read from the workbook
const (
	ColEventID      = "EVENT_ID_CNTY"
	ColEventDate    = "EVENT_DATE"
	ColCountry      = "COUNTRY"
	ColAdmin1       = "ADMIN1"
	ColLocation     = "LOCATION"
	ColLatitude     = "LATITUDE"
	ColLongitude    = "LONGITUDE"
	ColEventType    = "EVENT_TYPE"
	ColSubEventType = "SUB_EVENT_TYPE"
	ColFatalities   = "FATALITIES"
	ColNotes        = "NOTES"
)

var requiredColumns = []string{
	ColEventDate, ColCountry, ColLatitude, ColLongitude, ColEventType, ColFatalities, ColNotes,
}

// Event is one row of the conflict dataset
type Event struct {
	ID            string
	Date          time.Time
	Country       string
	Admin1        string
	Location      string
	EventType     string
	SubEventType  string
	Fatalities    int
	HasFatalities bool
	Notes         string
	// Point is [longitude, latitude]
	Point orb.Point
}

// Table holds the events of one country ordered by date
type Table struct {
	Country string
	Events  []Event
	// Rows is the number of data rows in the sheet, any country
	Rows int
	// Skipped counts matching rows dropped for a bad date or coordinate
	Skipped int
}

// Load reads the first sheet of the workbook at path and keeps the rows
// whose COUNTRY equals country
func Load(path, country string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, errs.New(errs.ErrorTypeParsing, "no sheets found in workbook")
	}

	// Raw values keep date cells as serial numbers instead of locale text
	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, errs.New(errs.ErrorTypeParsing, "workbook is empty")
	}

	cols, err := indexHeader(rows[0])
	if err != nil {
		return nil, err
	}

	table := &Table{Country: country, Rows: len(rows) - 1}
	for _, row := range rows[1:] {
		if cols.get(row, ColCountry) != country {
			continue
		}
		event, ok := cols.event(row)
		if !ok {
			table.Skipped++
			continue
		}
		table.Events = append(table.Events, event)
	}

	sort.SliceStable(table.Events, func(i, j int) bool {
		return table.Events[i].Date.Before(table.Events[j].Date)
	})
	return table, nil
}

type columns map[string]int

func indexHeader(header []string) (columns, error) {
	cols := make(columns, len(header))
	for i, name := range header {
		name = strings.ToUpper(strings.TrimSpace(name))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}

	var missing []string
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, errs.New(errs.ErrorTypeParsing, "missing required columns: "+strings.Join(missing, ", "))
	}
	return cols, nil
}

// get returns the trimmed cell for name, or "" when the column or cell is absent.
// GetRows drops trailing empty cells so short rows are normal.
func (c columns) get(row []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (c columns) event(row []string) (Event, bool) {
	date, err := ParseDate(c.get(row, ColEventDate))
	if err != nil {
		return Event{}, false
	}
	lat, ok := parseCoordinate(c.get(row, ColLatitude), 90)
	if !ok {
		return Event{}, false
	}
	lon, ok := parseCoordinate(c.get(row, ColLongitude), 180)
	if !ok {
		return Event{}, false
	}

	e := Event{
		ID:           c.get(row, ColEventID),
		Date:         date,
		Country:      c.get(row, ColCountry),
		Admin1:       c.get(row, ColAdmin1),
		Location:     c.get(row, ColLocation),
		EventType:    c.get(row, ColEventType),
		SubEventType: c.get(row, ColSubEventType),
		Notes:        c.get(row, ColNotes),
		Point:        orb.Point{lon, lat},
	}
	e.Fatalities, e.HasFatalities = parseFatalities(c.get(row, ColFatalities))
	return e, true
}

// parseCoordinate parses a finite degree value within [-limit, limit]
func parseCoordinate(s string, limit float64) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > limit {
		return 0, false
	}
	return v, true
}

// maxFatalities bounds float counts so the int conversion is defined
const maxFatalities = 1 << 31

func parseFatalities(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) >= maxFatalities {
		return 0, false
	}
	return int(f), true
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"02 January 2006",
	"2 January 2006",
	"01-02-06",
	"1/2/2006",
	"1/2/06",
}

// ParseDate parses the date forms found in ACLED exports, including Excel
// serial day numbers. The result is midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncateDay(t), nil
		}
	}

	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid serial date %q: %w", s, err)
		}
		return truncateDay(t), nil
	}

	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
