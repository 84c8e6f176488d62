package domain

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// SortOrder selects how a station view is ordered.
type SortOrder string

const (
	SortInput    SortOrder = "input"
	SortName     SortOrder = "name"
	SortISPUDesc SortOrder = "ispu_desc"
	SortISPUAsc  SortOrder = "ispu_asc"
)

// ParseSortOrder maps a query value to a SortOrder. Unknown or empty values
// keep the input order.
func ParseSortOrder(s string) SortOrder {
	switch o := SortOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case SortName, SortISPUDesc, SortISPUAsc:
		return o
	default:
		return SortInput
	}
}

// Filter returns the stations whose name, code, province or city contains
// term, ignoring case. An empty term keeps every station. Order is preserved.
func Filter(stations []Station, term string) []Station {
	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(term))
	out := make([]Station, 0, len(stations))
	for _, s := range stations {
		if needle == "" || matchesStation(fold, s, needle) {
			out = append(out, s)
		}
	}
	return out
}

func matchesStation(fold cases.Caser, s Station, needle string) bool {
	for _, field := range []string{s.Name, s.Code, s.Province, s.City} {
		if field != "" && strings.Contains(fold.String(field), needle) {
			return true
		}
	}
	return false
}

// SortStations returns a sorted copy of stations. The sort is stable, so ties
// keep their input order.
func SortStations(stations []Station, order SortOrder) []Station {
	out := slices.Clone(stations)
	switch order {
	case SortName:
		fold := cases.Fold()
		slices.SortStableFunc(out, func(a, b Station) int {
			return cmp.Compare(fold.String(a.Name), fold.String(b.Name))
		})
	case SortISPUDesc:
		slices.SortStableFunc(out, func(a, b Station) int {
			return cmp.Compare(b.ISPU.Or(0), a.ISPU.Or(0))
		})
	case SortISPUAsc:
		slices.SortStableFunc(out, func(a, b Station) int {
			return cmp.Compare(a.ISPU.Or(0), b.ISPU.Or(0))
		})
	}
	return out
}

// Query describes a search and ordering over a snapshot.
type Query struct {
	Search string
	Sort   SortOrder
}

// View is the display-ready result of a Query.
type View struct {
	Stations  []Station `json:"stations"`
	Total     int       `json:"total"`
	Shown     int       `json:"shown"`
	FetchedAt time.Time `json:"fetched_at"`
}

// BuildView filters and sorts a snapshot. The snapshot itself is not modified.
func BuildView(snap Snapshot, q Query) View {
	stations := SortStations(Filter(snap.Stations, q.Search), q.Sort)
	return View{
		Stations:  stations,
		Total:     len(snap.Stations),
		Shown:     len(stations),
		FetchedAt: snap.FetchedAt,
	}
}

// PollutantLevel is one bar of a station's pollutant chart.
type PollutantLevel struct {
	Name       string  `json:"name"`
	Value      float64 `json:"value"`
	Rounded    int     `json:"rounded"`
	BarPercent float64 `json:"bar_percent"`
}

// Breakdown lists the station's pollutant readings in chart order. Missing
// readings are 0; bar heights are capped at 100 percent.
func Breakdown(s Station) []PollutantLevel {
	readings := []struct {
		name string
		n    Number
	}{
		{"PM10", s.PM10},
		{"PM2.5", s.PM25},
		{"SO2", s.SO2},
		{"CO", s.CO},
		{"O3", s.O3},
		{"NO2", s.NO2},
		{"HC", s.HC},
	}

	out := make([]PollutantLevel, len(readings))
	for i, r := range readings {
		v := r.n.Or(0)
		out[i] = PollutantLevel{
			Name:       r.name,
			Value:      v,
			Rounded:    int(math.Round(v)),
			BarPercent: math.Max(0, math.Min(v, 100)),
		}
	}
	return out
}

// CategoryCount is the number of stations in one band.
type CategoryCount struct {
	Category Category `json:"category"`
	Count    int      `json:"count"`
}

// Summarize counts stations per band in legend order, including empty bands.
func Summarize(stations []Station) []CategoryCount {
	out := make([]CategoryCount, len(categories))
	index := make(map[string]int, len(categories))
	for i, c := range categories {
		out[i] = CategoryCount{Category: c}
		index[c.Key] = i
	}
	for _, s := range stations {
		out[index[s.Classification().Key]].Count++
	}
	return out
}
