package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

const (
	notAvailable  = "N/A"
	statusActive  = "Aktif"
	statusPassive = "Tidak Aktif"
)

// Field is one named cell of an export record.
type Field struct {
	Name  string
	Value any
}

// Record is an ordered, flattened row ready for tabular output.
type Record []Field

// Keys returns the field names in order.
func (r Record) Keys() []string {
	keys := make([]string, len(r))
	for i, f := range r {
		keys[i] = f.Name
	}
	return keys
}

// Get returns the value stored under name.
func (r Record) Get(name string) (any, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// MarshalJSON encodes the record as an object, preserving field order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// column projects one export field from a source row. pos is the 0-based
// position of the row in the input.
type column[T any] struct {
	name  string
	value func(pos int, row T) any
}

func project[T any](rows []T, cols []column[T]) []Record {
	out := make([]Record, len(rows))
	for i, row := range rows {
		rec := make(Record, len(cols))
		for j, c := range cols {
			rec[j] = Field{Name: c.name, Value: c.value(i, row)}
		}
		out[i] = rec
	}
	return out
}

// stationColumns defines the station export layout.
var stationColumns = []column[Station]{
	{"No", func(pos int, _ Station) any { return pos + 1 }},
	{"ID Stasiun", func(_ int, s Station) any { return textOrNA(s.Identifier()) }},
	{"Nama", func(_ int, s Station) any { return textOrNA(s.Name) }},
	{"Provinsi", func(_ int, s Station) any { return textOrNA(s.Province) }},
	{"Kota", func(_ int, s Station) any { return textOrNA(s.City) }},
	{"Alamat", func(_ int, s Station) any { return textOrNA(s.Address) }},
	{"Tipe", func(_ int, s Station) any { return textOrNA(s.Type) }},
	{"ISPU", func(_ int, s Station) any { return s.ISPU.Or(0) }},
	{"Kategori", func(_ int, s Station) any { return categoryOrNA(s.ISPU) }},
	{"Latitude", func(_ int, s Station) any { return s.Latitude.Or(0) }},
	{"Longitude", func(_ int, s Station) any { return s.Longitude.Or(0) }},
	{"Status", func(_ int, s Station) any { return activeLabel(s.IsActive) }},
}

// StationExportHeaders lists the station export columns in order.
func StationExportHeaders() []string {
	return headersOf(stationColumns)
}

// ToExportRows flattens stations into export records, one per station in
// input order. Missing text becomes "N/A" and missing numbers become 0.
func ToExportRows(stations []Station) []Record {
	return project(stations, stationColumns)
}

// airQualityColumns defines the latest-readings export layout. The location
// is bound per call so timestamps render in the operator's zone.
func airQualityColumns(loc *time.Location) []column[AirQuality] {
	return []column[AirQuality]{
		{"No", func(pos int, _ AirQuality) any { return pos + 1 }},
		{"Stasiun", func(_ int, a AirQuality) any {
			if a.Station == nil {
				return notAvailable
			}
			return textOrNA(string(a.Station.Name))
		}},
		{"ISPU", func(_ int, a AirQuality) any { return a.ISPU.Or(0) }},
		{"PM2.5", func(_ int, a AirQuality) any { return a.PM25.Or(0) }},
		{"PM10", func(_ int, a AirQuality) any { return a.PM10.Or(0) }},
		{"SO2", func(_ int, a AirQuality) any { return a.SO2.Or(0) }},
		{"CO", func(_ int, a AirQuality) any { return a.CO.Or(0) }},
		{"O3", func(_ int, a AirQuality) any { return a.O3.Or(0) }},
		{"NO2", func(_ int, a AirQuality) any { return a.NO2.Or(0) }},
		{"HC", func(_ int, a AirQuality) any { return a.HC.Or(0) }},
		{"Waktu", func(_ int, a AirQuality) any { return formatLocalTime(a.Timestamp, loc) }},
	}
}

// ToAirQualityRows flattens latest air-quality readings into export records.
// Timestamps render as "2/1/2006, 15.04.05" in loc (UTC when nil).
func ToAirQualityRows(items []AirQuality, loc *time.Location) []Record {
	return project(items, airQualityColumns(loc))
}

func headersOf[T any](cols []column[T]) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.name
	}
	return out
}

func textOrNA(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}

func categoryOrNA(index Number) string {
	if !index.Valid {
		return notAvailable
	}
	return Classify(index.Value).Name
}

func activeLabel(active bool) string {
	if active {
		return statusActive
	}
	return statusPassive
}

func formatLocalTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return notAvailable
	}
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("2/1/2006, 15.04.05")
}
