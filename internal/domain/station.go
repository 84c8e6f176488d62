package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Number is an optional numeric reading. It decodes from JSON numbers and
// numeric strings; null, missing or malformed values leave it invalid.
type Number struct {
	Value float64
	Valid bool
}

// Num returns a valid Number holding v.
func Num(v float64) Number {
	return Number{Value: v, Valid: true}
}

// Or returns the value, or def when the number is absent.
func (n Number) Or(def float64) float64 {
	if !n.Valid {
		return def
	}
	return n.Value
}

func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	s := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return nil //nolint:nilerr // malformed readings degrade to absent
		}
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil //nolint:nilerr // malformed readings degrade to absent
	}
	*n = Num(v)
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, n.Value, 'f', -1, 64), nil
}

// Text is a string field that also accepts JSON numbers (station IDs are
// numeric on some upstream deployments). Booleans, objects and arrays decode
// as empty.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	*t = ""
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")):
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil //nolint:nilerr // malformed text degrades to empty
		}
		*t = Text(s)
	case data[0] == '-' || (data[0] >= '0' && data[0] <= '9'):
		*t = Text(data)
	}
	return nil
}

// Flag is a boolean field that also accepts 0/1 and "true"/"false" style
// strings. Anything else decodes as false.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	*f = false
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil //nolint:nilerr // malformed flags degrade to false
		}
		data = []byte(strings.TrimSpace(s))
	}
	if v, err := strconv.ParseBool(string(data)); err == nil {
		*f = Flag(v)
	}
	return nil
}

// Station is a fixed-location air-quality sensor as reported by the upstream API.
// Empty strings and invalid numbers mean "unknown".
type Station struct {
	ID        Text      `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	City      string    `json:"city"`
	Province  string    `json:"province"`
	Address   string    `json:"address"`
	Type      string    `json:"type"`
	Latitude  Number    `json:"latitude"`
	Longitude Number    `json:"longitude"`
	ISPU      Number    `json:"ispu"`
	PM10      Number    `json:"pm10"`
	PM25      Number    `json:"pm25"`
	SO2       Number    `json:"so2"`
	CO        Number    `json:"co"`
	O3        Number    `json:"o3"`
	NO2       Number    `json:"no2"`
	HC        Number    `json:"hc"`
	IsActive  bool      `json:"is_active"`
	Category  string    `json:"category,omitempty"` // upstream label, informational only
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// stationWire mirrors Station for decoding, adding the index_value alias.
type stationWire struct {
	ID         Text   `json:"id"`
	Code       Text   `json:"code"`
	Name       Text   `json:"name"`
	City       Text   `json:"city"`
	Province   Text   `json:"province"`
	Address    Text   `json:"address"`
	Type       Text   `json:"type"`
	Latitude   Number `json:"latitude"`
	Longitude  Number `json:"longitude"`
	ISPU       Number `json:"ispu"`
	IndexValue Number `json:"index_value"`
	PM10       Number `json:"pm10"`
	PM25       Number `json:"pm25"`
	SO2        Number `json:"so2"`
	CO         Number `json:"co"`
	O3         Number `json:"o3"`
	NO2        Number `json:"no2"`
	HC         Number `json:"hc"`
	IsActive   Flag   `json:"is_active"`
	Category   Text   `json:"category"`
	UpdatedAt  Text   `json:"updated_at"`
}

func (s *Station) UnmarshalJSON(data []byte) error {
	var w stationWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	index := w.ISPU
	if !index.Valid {
		index = w.IndexValue
	}

	*s = Station{
		ID:        w.ID,
		Code:      string(w.Code),
		Name:      string(w.Name),
		City:      string(w.City),
		Province:  string(w.Province),
		Address:   string(w.Address),
		Type:      string(w.Type),
		Latitude:  w.Latitude,
		Longitude: w.Longitude,
		ISPU:      index,
		PM10:      w.PM10,
		PM25:      w.PM25,
		SO2:       w.SO2,
		CO:        w.CO,
		O3:        w.O3,
		NO2:       w.NO2,
		HC:        w.HC,
		IsActive:  bool(w.IsActive),
		Category:  string(w.Category),
		UpdatedAt: parseTimestamp(string(w.UpdatedAt)),
	}
	return nil
}

// Identifier returns the station code, falling back to the upstream ID.
func (s Station) Identifier() string {
	if s.Code != "" {
		return s.Code
	}
	return string(s.ID)
}

// Classification returns the band for the station's ISPU value (0 when absent).
func (s Station) Classification() Category {
	return Classify(s.ISPU.Or(0))
}

// Envelope is the response wrapper used by the monitoring API.
type Envelope[T any] struct {
	Success bool      `json:"success"`
	Data    T         `json:"data"`
	Error   *APIError `json:"error,omitempty"`
}

// APIError carries the upstream failure message.
type APIError struct {
	Message string `json:"message"`
}

// Snapshot is the station set returned by one successful poll.
type Snapshot struct {
	Stations  []Station `json:"stations"`
	FetchedAt time.Time `json:"fetched_at"`
}

// AirQualityStation is the station reference embedded in an air-quality reading.
type AirQualityStation struct {
	ID   Text `json:"id"`
	Name Text `json:"name"`
}

// AirQuality is one row of the latest air-quality endpoint.
type AirQuality struct {
	Station   *AirQualityStation `json:"station"`
	ISPU      Number             `json:"ispu"`
	PM25      Number             `json:"pm25"`
	PM10      Number             `json:"pm10"`
	SO2       Number             `json:"so2"`
	CO        Number             `json:"co"`
	O3        Number             `json:"o3"`
	NO2       Number             `json:"no2"`
	HC        Number             `json:"hc"`
	Timestamp time.Time          `json:"-"`
}

func (a *AirQuality) UnmarshalJSON(data []byte) error {
	type alias AirQuality
	aux := struct {
		*alias
		Timestamp Text `json:"timestamp"`
	}{alias: (*alias)(a)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	a.Timestamp = parseTimestamp(string(aux.Timestamp))
	return nil
}

// parseTimestamp accepts RFC3339 with or without fractional seconds and
// returns the zero time for anything else.
func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
