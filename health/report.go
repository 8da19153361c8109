package health

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Report is the aggregate of one check pass.
type Report struct {
	Status        Status
	RanOn         time.Time
	TotalDuration time.Duration
	Entries       []Entry
}

// OverallStatus returns Unhealthy if any entry is Unhealthy, else Degraded
// if any entry is Degraded, else Healthy. An empty set is Healthy.
func OverallStatus(entries []Entry) Status {
	hasDegraded := false
	for _, e := range entries {
		switch e.Outcome.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			hasDegraded = true
		}
	}
	if hasDegraded {
		return StatusDegraded
	}
	return StatusHealthy
}

// Aggregate builds a report stamped with the current time.
func Aggregate(entries []Entry, total time.Duration) Report {
	return AggregateAt(entries, total, time.Now())
}

// AggregateAt builds a report stamped with ranOn. The input slice is copied.
func AggregateAt(entries []Entry, total time.Duration, ranOn time.Time) Report {
	return Report{
		Status:        OverallStatus(entries),
		RanOn:         ranOn,
		TotalDuration: total,
		Entries:       slices.Clone(entries),
	}
}

// ReportView is the serialized layout of a report.
type ReportView struct {
	Status           string            `json:"Status"`
	RanOn            string            `json:"RanOn"`
	TotalDuration    string            `json:"TotalDuration"`
	DependencyStates []DependencyState `json:"DependencyStates"`
}

// DependencyState is one keyed entry of a ReportView.
type DependencyState struct {
	Key   string    `json:"Key"`
	Value EntryView `json:"Value"`
}

// EntryView is the serialized layout of one outcome.
type EntryView struct {
	Status      string         `json:"Status"`
	Description string         `json:"Description"`
	Duration    string         `json:"Duration"`
	Exception   *ErrorDisplay  `json:"Exception,omitempty"`
	Data        map[string]any `json:"Data,omitempty"`
}

// View renders the report. Blank descriptions default to the entry name
// and errors are flattened with NewErrorDisplay.
func (r Report) View() ReportView {
	states := make([]DependencyState, len(r.Entries))
	for i, e := range r.Entries {
		desc := e.Outcome.Description
		if strings.TrimSpace(desc) == "" {
			desc = e.Name
		}
		v := EntryView{
			Status:      e.Outcome.Status.String(),
			Description: desc,
			Duration:    FormatDuration(e.Outcome.Duration),
			Exception:   NewErrorDisplay(e.Outcome.Err),
		}
		if len(e.Outcome.Data) > 0 {
			v.Data = e.Outcome.Data
		}
		states[i] = DependencyState{Key: e.Name, Value: v}
	}
	return ReportView{
		Status:           r.Status.String(),
		RanOn:            r.RanOn.Format(time.RFC3339Nano),
		TotalDuration:    FormatDuration(r.TotalDuration),
		DependencyStates: states,
	}
}

const ticksPerSecond = int64(time.Second / 100)

// FormatDuration renders d as [-][d.]hh:mm:ss[.fffffff] with 100ns
// precision. The fraction is omitted when zero.
func FormatDuration(d time.Duration) string {
	var b strings.Builder
	ticks := int64(d / 100)
	if ticks < 0 {
		b.WriteByte('-')
		ticks = -ticks
	}

	frac := ticks % ticksPerSecond
	secs := ticks / ticksPerSecond
	days := secs / 86400
	hours := secs / 3600 % 24
	minutes := secs / 60 % 60
	secs %= 60

	if days > 0 {
		fmt.Fprintf(&b, "%d.", days)
	}
	fmt.Fprintf(&b, "%02d:%02d:%02d", hours, minutes, secs)
	if frac > 0 {
		fmt.Fprintf(&b, ".%07d", frac)
	}
	return b.String()
}
