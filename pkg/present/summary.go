package present

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// MaxMonthRows caps the per-month rows printed in the summary
const MaxMonthRows = 10

// MonthCount is the number of events drawn on one month's frame
type MonthCount struct {
	Label  string
	Events int
}

// StageTiming is the wall time of one pipeline stage
type StageTiming struct {
	Stage    string
	Duration time.Duration
}

// RunSummary describes a finished build
type RunSummary struct {
	RunID    string
	Country  string
	From     string
	Until    string
	Events   int
	Months   []MonthCount
	Rendered int
	Skipped  int
	Failed   int
	GIFPath  string
	GIFBytes int64
	GeoJSON  string
	Stages   []StageTiming
	Total    time.Duration
}

// Summary prints the run summary as tables
func Summary(w io.Writer, s RunSummary) {
	overview := table.NewWriter()
	overview.SetOutputMirror(w)
	overview.SetStyle(table.StyleRounded)
	overview.SetTitle(fmt.Sprintf("Conflict map: %s", s.Country))
	overview.AppendRows([]table.Row{
		{"Run", s.RunID},
		{"Range", fmt.Sprintf("%s .. %s", s.From, s.Until)},
		{"Events", s.Events},
		{"Frames", fmt.Sprintf("%d rendered, %d reused, %d failed", s.Rendered, s.Skipped, s.Failed)},
		{"Animation", fmt.Sprintf("%s (%s)", s.GIFPath, formatBytes(s.GIFBytes))},
	})
	if s.GeoJSON != "" {
		overview.AppendRow(table.Row{"GeoJSON", s.GeoJSON})
	}
	overview.AppendRow(table.Row{"Total time", s.Total.Round(time.Millisecond)})
	overview.Render()

	if len(s.Months) > 0 {
		busiest := make([]MonthCount, len(s.Months))
		copy(busiest, s.Months)
		sort.SliceStable(busiest, func(i, j int) bool {
			return busiest[i].Events > busiest[j].Events
		})

		months := table.NewWriter()
		months.SetOutputMirror(w)
		months.SetStyle(table.StyleRounded)
		months.Style().Format.Footer = text.FormatDefault
		months.SetTitle("Busiest months")
		months.AppendHeader(table.Row{"Month", "Events"})
		shown := busiest
		if len(shown) > MaxMonthRows {
			shown = shown[:MaxMonthRows]
		}
		for _, m := range shown {
			months.AppendRow(table.Row{m.Label, m.Events})
		}
		if rest := len(busiest) - len(shown); rest > 0 {
			months.AppendFooter(table.Row{fmt.Sprintf("+%d more", rest), ""})
		}
		months.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
		months.Render()
	}

	if len(s.Stages) > 0 {
		stages := table.NewWriter()
		stages.SetOutputMirror(w)
		stages.SetStyle(table.StyleRounded)
		stages.AppendHeader(table.Row{"Stage", "Duration"})
		for _, st := range s.Stages {
			stages.AppendRow(table.Row{st.Stage, st.Duration.Round(time.Millisecond)})
		}
		stages.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
		stages.Render()
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
